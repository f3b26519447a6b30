package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"logdash/internal/models"
)

//go:embed schema.sql
var schema string

// statsCache caches one stats snapshot per window with a TTL
type statsCache struct {
	mu      sync.RWMutex
	entries map[int]cachedStats
}

type cachedStats struct {
	snapshot models.StatsSnapshot
	expires  time.Time
}

const statsCacheTTL = 2 * time.Second

const (
	defaultQueryLimit  = 1000
	DefaultSearchLimit = 500
	// DefaultDigestLimit bounds the error records grouped into a digest.
	DefaultDigestLimit = 1000
)

type DB struct {
	conn       *sql.DB
	statsCache statsCache
}

func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous=NORMAL", // Faster writes, still safe
		"PRAGMA cache_size=-64000",  // 64MB cache
		"PRAGMA busy_timeout=5000",  // Wait 5s on lock
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn, statsCache: statsCache{entries: map[int]cachedStats{}}}, nil
}

func initSchema(conn *sql.DB) error {
	_, err := conn.Exec(schema)
	return err
}

const insertAccess = `
	INSERT INTO access_logs (timestamp, method, path, status, bytes, client_ip, user_agent, referer)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const insertError = `
	INSERT INTO error_logs (timestamp, level, message)
	VALUES (?, ?, ?)`

func (db *DB) InsertAccessLog(ctx context.Context, entry *models.AccessLog) error {
	res, err := db.conn.ExecContext(ctx, insertAccess,
		entry.Timestamp.UTC(), entry.Method, entry.Path, entry.Status, entry.Bytes,
		entry.ClientIP, entry.UserAgent, entry.Referer,
	)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

func (db *DB) InsertAccessBatch(ctx context.Context, entries []models.AccessLog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertAccess)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		res, err := stmt.ExecContext(ctx, e.Timestamp.UTC(), e.Method, e.Path, e.Status, e.Bytes,
			e.ClientIP, e.UserAgent, e.Referer)
		if err != nil {
			return err
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) InsertErrorLog(ctx context.Context, entry *models.ErrorLog) error {
	res, err := db.conn.ExecContext(ctx, insertError, entry.Timestamp.UTC(), entry.Level, entry.Message)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

func (db *DB) InsertErrorBatch(ctx context.Context, entries []models.ErrorLog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertError)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		res, err := stmt.ExecContext(ctx, e.Timestamp.UTC(), e.Level, e.Message)
		if err != nil {
			return err
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// timeRange appends the filter's time bounds to a WHERE clause.
func timeRange(query string, args []interface{}, filter models.LogFilter) (string, []interface{}) {
	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime.UTC())
	}
	return query, args
}

func limitOf(filter models.LogFilter) int {
	if filter.Limit <= 0 {
		return defaultQueryLimit
	}
	return filter.Limit
}

// QueryAccessLogs returns matching access records, newest first. Search
// matches method, path, client IP and user agent case-insensitively.
func (db *DB) QueryAccessLogs(ctx context.Context, filter models.LogFilter) ([]models.AccessLog, error) {
	query := `SELECT id, timestamp, method, path, status, bytes, client_ip, user_agent, referer, created_at
              FROM access_logs WHERE 1=1`
	args := []interface{}{}

	query, args = timeRange(query, args, filter)
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query += ` AND (lower(method) LIKE ? OR lower(path) LIKE ? OR lower(client_ip) LIKE ?
		           OR lower(user_agent) LIKE ? OR CAST(status AS TEXT) LIKE ?)`
		args = append(args, like, like, like, like, like)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limitOf(filter))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AccessLog
	for rows.Next() {
		var l models.AccessLog
		err := rows.Scan(&l.ID, &l.Timestamp, &l.Method, &l.Path, &l.Status, &l.Bytes,
			&l.ClientIP, &l.UserAgent, &l.Referer, &l.CreatedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

// QueryErrorLogs returns matching error records, newest first. Search
// matches level and message case-insensitively.
func (db *DB) QueryErrorLogs(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, error) {
	query := `SELECT id, timestamp, level, message, created_at FROM error_logs WHERE 1=1`
	args := []interface{}{}

	query, args = timeRange(query, args, filter)
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query += " AND (lower(level) LIKE ? OR lower(message) LIKE ?)"
		args = append(args, like, like)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limitOf(filter))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ErrorLog
	for rows.Next() {
		var l models.ErrorLog
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

// Stats aggregates access records from the last hours hours. Status codes
// are keyed by the raw code. Results are cached per window for a short TTL.
func (db *DB) Stats(ctx context.Context, hours int) (models.StatsSnapshot, error) {
	db.statsCache.mu.RLock()
	if c, ok := db.statsCache.entries[hours]; ok && time.Now().Before(c.expires) {
		db.statsCache.mu.RUnlock()
		return c.snapshot, nil
	}
	db.statsCache.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).UTC()
	snap := models.StatsSnapshot{
		RequestsByPath: map[string]int{},
		StatusCodes:    map[string]int{},
		Methods:        map[string]int{},
		RequestsByIP:   map[string]int{},
	}

	breakdowns := []struct {
		column string
		into   map[string]int
	}{
		{"path", snap.RequestsByPath},
		{"CAST(status AS TEXT)", snap.StatusCodes},
		{"method", snap.Methods},
		{"client_ip", snap.RequestsByIP},
	}
	for _, b := range breakdowns {
		if err := db.countBy(ctx, b.column, cutoff, b.into); err != nil {
			return models.StatsSnapshot{}, err
		}
	}

	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(bytes), 0), COALESCE(SUM(CASE WHEN status >= 500 THEN 1 ELSE 0 END), 0)
		FROM access_logs WHERE timestamp >= ?`, cutoff,
	).Scan(&snap.TotalBytes, &snap.Errors)
	if err != nil {
		return models.StatsSnapshot{}, err
	}

	db.statsCache.mu.Lock()
	db.statsCache.entries[hours] = cachedStats{snapshot: snap, expires: time.Now().Add(statsCacheTTL)}
	db.statsCache.mu.Unlock()

	return snap, nil
}

// allowedGroupColumns defines the only expressions countBy may group on.
var allowedGroupColumns = map[string]bool{
	"path":                 true,
	"CAST(status AS TEXT)": true,
	"method":               true,
	"client_ip":            true,
}

func (db *DB) countBy(ctx context.Context, column string, cutoff time.Time, into map[string]int) error {
	if !allowedGroupColumns[column] {
		return fmt.Errorf("invalid group column: %s", column)
	}

	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM access_logs WHERE timestamp >= ? GROUP BY 1", column)
	rows, err := db.conn.QueryContext(ctx, query, cutoff)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}

// ErrorDigest groups the most recent limit error records by level, each
// group oldest first.
func (db *DB) ErrorDigest(ctx context.Context, limit int) (models.ErrorDigest, error) {
	if limit <= 0 {
		limit = DefaultDigestLimit
	}
	logs, err := db.QueryErrorLogs(ctx, models.LogFilter{Limit: limit})
	if err != nil {
		return nil, err
	}

	digest := models.ErrorDigest{}
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		digest[l.Level] = append(digest[l.Level], l.Entry())
	}
	return digest, nil
}

// Search returns up to limit matching raw log lines, oldest first.
func (db *DB) Search(ctx context.Context, q models.SearchQuery, limit int) ([]string, error) {
	if q.Blank() {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	filter := models.LogFilter{Search: q.Pattern, Limit: limit}

	lines := []string{}
	switch q.LogType {
	case models.LogTypeError:
		logs, err := db.QueryErrorLogs(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := len(logs) - 1; i >= 0; i-- {
			lines = append(lines, logs[i].Line())
		}
	default:
		logs, err := db.QueryAccessLogs(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := len(logs) - 1; i >= 0; i-- {
			lines = append(lines, logs[i].Line())
		}
	}
	return lines, nil
}

// RecentAccess returns the last n access events, oldest first.
func (db *DB) RecentAccess(ctx context.Context, n int) ([]models.LogEvent, error) {
	logs, err := db.QueryAccessLogs(ctx, models.LogFilter{Limit: n})
	if err != nil {
		return nil, err
	}
	events := make([]models.LogEvent, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		events = append(events, logs[i].Event())
	}
	return events, nil
}

// RecentErrors returns the last n error lines, oldest first.
func (db *DB) RecentErrors(ctx context.Context, n int) ([]string, error) {
	logs, err := db.QueryErrorLogs(ctx, models.LogFilter{Limit: n})
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		lines = append(lines, logs[i].Line())
	}
	return lines, nil
}

// DeleteOldLogs removes access and error records older than olderThan and
// reports how many rows went.
func (db *DB) DeleteOldLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	var total int64
	for _, table := range []string{"access_logs", "error_logs"} {
		result, err := db.conn.ExecContext(ctx, "DELETE FROM "+table+" WHERE timestamp < ?", cutoff)
		if err != nil {
			return total, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.conn.Close()
}

