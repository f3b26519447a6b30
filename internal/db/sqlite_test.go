package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"logdash/internal/models"
)

// newTestDB creates an in-memory SQLite database for testing.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// sampleAccess returns a sample access record for testing.
func sampleAccess(method, path string, status int) models.AccessLog {
	return models.AccessLog{
		Timestamp: time.Now(),
		Method:    method,
		Path:      path,
		Status:    status,
		Bytes:     512,
		ClientIP:  "10.0.0.1",
		UserAgent: "curl/8.0",
	}
}

func sampleError(level, message string) models.ErrorLog {
	return models.ErrorLog{Timestamp: time.Now(), Level: level, Message: message}
}

func TestNew(t *testing.T) {
	db := newTestDB(t)
	if db == nil {
		t.Fatal("expected non-nil database")
	}
	if db.conn == nil {
		t.Fatal("expected non-nil connection")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/to/db.sqlite")
	if err == nil {
		t.Error("expected error for invalid database path")
	}
}

func TestInsertAccessLog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := sampleAccess("GET", "/index.html", 200)
	entry.Referer = "https://example.com/"
	if err := db.InsertAccessLog(ctx, &entry); err != nil {
		t.Fatalf("InsertAccessLog failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("expected ID to be set after insert")
	}

	logs, err := db.QueryAccessLogs(ctx, models.LogFilter{})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Path != "/index.html" || got.Status != 200 || got.Bytes != 512 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Referer != "https://example.com/" {
		t.Errorf("expected referer to round-trip, got '%s'", got.Referer)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", entry.Timestamp, got.Timestamp)
	}
}

func TestInsertAccessBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	logs := []models.AccessLog{
		sampleAccess("GET", "/", 200),
		sampleAccess("POST", "/login", 401),
		sampleAccess("GET", "/missing", 404),
	}
	if err := db.InsertAccessBatch(ctx, logs); err != nil {
		t.Fatalf("InsertAccessBatch failed: %v", err)
	}
	for i, l := range logs {
		if l.ID == 0 {
			t.Errorf("expected ID to be set on batch entry %d", i)
		}
	}

	result, err := db.QueryAccessLogs(ctx, models.LogFilter{})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(result))
	}
}

func TestInsertAccessBatch_Empty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.InsertAccessBatch(ctx, []models.AccessLog{}); err != nil {
		t.Fatalf("InsertAccessBatch with empty slice failed: %v", err)
	}

	result, err := db.QueryAccessLogs(ctx, models.LogFilter{})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected 0 logs, got %d", len(result))
	}
}

func TestInsertErrorBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	logs := []models.ErrorLog{
		sampleError("error", "connect() failed"),
		sampleError("warn", "upstream response buffered"),
	}
	if err := db.InsertErrorBatch(ctx, logs); err != nil {
		t.Fatalf("InsertErrorBatch failed: %v", err)
	}

	single := sampleError("crit", "disk full")
	if err := db.InsertErrorLog(ctx, &single); err != nil {
		t.Fatalf("InsertErrorLog failed: %v", err)
	}

	result, err := db.QueryErrorLogs(ctx, models.LogFilter{})
	if err != nil {
		t.Fatalf("QueryErrorLogs failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(result))
	}
}

func TestQueryAccessLogs_TimeRangeFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	now := time.Now()
	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)

	old := sampleAccess("GET", "/old", 200)
	old.Timestamp = past.Add(-1 * time.Hour)
	current := sampleAccess("GET", "/current", 200)
	current.Timestamp = now
	later := sampleAccess("GET", "/future", 200)
	later.Timestamp = future.Add(1 * time.Hour)
	for _, l := range []*models.AccessLog{&old, &current, &later} {
		if err := db.InsertAccessLog(ctx, l); err != nil {
			t.Fatalf("InsertAccessLog failed: %v", err)
		}
	}

	logs, err := db.QueryAccessLogs(ctx, models.LogFilter{StartTime: &past, EndTime: &future})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Path != "/current" {
		t.Errorf("expected only /current in time range, got %+v", logs)
	}
}

func TestQueryAccessLogs_SearchIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/Users/42", 200)))
	db.InsertAccessLog(ctx, ptr(sampleAccess("POST", "/users", 201)))
	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/health", 200)))

	logs, err := db.QueryAccessLogs(ctx, models.LogFilter{Search: "USERS"})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("expected 2 logs matching 'USERS', got %d", len(logs))
	}
}

func TestQueryAccessLogs_OrderAndLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, path := range []string{"/second", "/first", "/third"} {
		l := sampleAccess("GET", path, 200)
		l.Timestamp = time.Now().Add(-time.Duration([]int{2, 3, 1}[i]) * time.Hour)
		db.InsertAccessLog(ctx, &l)
	}

	logs, err := db.QueryAccessLogs(ctx, models.LogFilter{})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	if logs[0].Path != "/third" || logs[1].Path != "/second" || logs[2].Path != "/first" {
		t.Errorf("expected newest first, got %s, %s, %s", logs[0].Path, logs[1].Path, logs[2].Path)
	}

	limited, err := db.QueryAccessLogs(ctx, models.LogFilter{Limit: 2})
	if err != nil {
		t.Fatalf("QueryAccessLogs failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 logs with limit, got %d", len(limited))
	}
}

func TestStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	logs := []models.AccessLog{
		sampleAccess("GET", "/", 200),
		sampleAccess("GET", "/", 200),
		sampleAccess("POST", "/login", 401),
		sampleAccess("GET", "/api", 502),
	}
	logs[3].ClientIP = "10.0.0.2"
	stale := sampleAccess("DELETE", "/old", 500)
	stale.Timestamp = time.Now().Add(-3 * time.Hour)
	logs = append(logs, stale)

	if err := db.InsertAccessBatch(ctx, logs); err != nil {
		t.Fatalf("InsertAccessBatch failed: %v", err)
	}

	snap, err := db.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if snap.RequestsByPath["/"] != 2 || snap.RequestsByPath["/login"] != 1 {
		t.Errorf("unexpected path counts: %v", snap.RequestsByPath)
	}
	if _, ok := snap.RequestsByPath["/old"]; ok {
		t.Error("record outside the window was counted")
	}
	if snap.StatusCodes["200"] != 2 || snap.StatusCodes["401"] != 1 || snap.StatusCodes["502"] != 1 {
		t.Errorf("unexpected status codes: %v", snap.StatusCodes)
	}
	if snap.Methods["GET"] != 3 || snap.Methods["POST"] != 1 {
		t.Errorf("unexpected methods: %v", snap.Methods)
	}
	if snap.RequestsByIP["10.0.0.1"] != 3 || snap.RequestsByIP["10.0.0.2"] != 1 {
		t.Errorf("unexpected ip counts: %v", snap.RequestsByIP)
	}
	if snap.TotalBytes != 4*512 {
		t.Errorf("expected total bytes %d, got %d", 4*512, snap.TotalBytes)
	}
	if snap.Errors != 1 {
		t.Errorf("expected 1 server error, got %d", snap.Errors)
	}

	wide, err := db.Stats(ctx, 24)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if wide.Methods["DELETE"] != 1 {
		t.Errorf("expected the 24h window to include the stale record, got %v", wide.Methods)
	}
}

func TestStats_Cache(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/", 200)))
	first, err := db.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/", 200)))
	cached, err := db.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if cached.RequestsByPath["/"] != first.RequestsByPath["/"] {
		t.Error("expected cached snapshot within TTL")
	}

	db.statsCache.mu.Lock()
	db.statsCache.entries[1] = cachedStats{snapshot: first, expires: time.Now().Add(-time.Second)}
	db.statsCache.mu.Unlock()

	fresh, err := db.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if fresh.RequestsByPath["/"] != 2 {
		t.Errorf("expected 2 requests after cache expiry, got %d", fresh.RequestsByPath["/"])
	}
}

func TestStats_Empty(t *testing.T) {
	db := newTestDB(t)

	snap, err := db.Stats(context.Background(), 1)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if snap.RequestsByPath == nil || snap.StatusCodes == nil || snap.Methods == nil {
		t.Error("expected non-nil breakdowns for an empty window")
	}
	if snap.TotalBytes != 0 || snap.Errors != 0 {
		t.Errorf("expected zero totals, got %d bytes %d errors", snap.TotalBytes, snap.Errors)
	}
}

func TestErrorDigest(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	logs := []models.ErrorLog{
		{Timestamp: base, Level: "error", Message: "first error"},
		{Timestamp: base.Add(time.Second), Level: "warn", Message: "a warning"},
		{Timestamp: base.Add(2 * time.Second), Level: "error", Message: "second error"},
	}
	if err := db.InsertErrorBatch(ctx, logs); err != nil {
		t.Fatalf("InsertErrorBatch failed: %v", err)
	}

	digest, err := db.ErrorDigest(ctx, 0)
	if err != nil {
		t.Fatalf("ErrorDigest failed: %v", err)
	}
	if len(digest["error"]) != 2 || len(digest["warn"]) != 1 {
		t.Fatalf("unexpected grouping: %v", digest)
	}
	if digest["error"][0].Message != "first error" {
		t.Errorf("expected entries oldest first, got '%s'", digest["error"][0].Message)
	}

	limited, err := db.ErrorDigest(ctx, 1)
	if err != nil {
		t.Fatalf("ErrorDigest failed: %v", err)
	}
	if len(limited) != 1 || len(limited["error"]) != 1 || limited["error"][0].Message != "second error" {
		t.Errorf("expected only the newest record, got %v", limited)
	}
}

func TestSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/Login", 200)))
	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/about", 200)))
	db.InsertErrorLog(ctx, ptr(sampleError("error", "Upstream timed out while reading /login")))

	tests := []struct {
		name  string
		query models.SearchQuery
		want  int
		match string
	}{
		{"access case-insensitive", models.SearchQuery{Pattern: "login", LogType: models.LogTypeAccess}, 1, `"GET /Login HTTP/1.1" 200`},
		{"error log", models.SearchQuery{Pattern: "UPSTREAM", LogType: models.LogTypeError}, 1, "[error] Upstream timed out"},
		{"no matches", models.SearchQuery{Pattern: "nothing-here", LogType: models.LogTypeAccess}, 0, ""},
		{"blank pattern", models.SearchQuery{Pattern: "  ", LogType: models.LogTypeAccess}, 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lines, err := db.Search(ctx, tc.query, 0)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if lines == nil {
				t.Fatal("expected empty slice, got nil")
			}
			if len(lines) != tc.want {
				t.Fatalf("expected %d lines, got %d: %v", tc.want, len(lines), lines)
			}
			if tc.match != "" && !strings.Contains(lines[0], tc.match) {
				t.Errorf("expected line to contain %q, got %q", tc.match, lines[0])
			}
		})
	}
}

func TestRecent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, path := range []string{"/a", "/b", "/c"} {
		l := sampleAccess("GET", path, 200)
		l.Timestamp = time.Now().Add(time.Duration(i-3) * time.Minute)
		db.InsertAccessLog(ctx, &l)
	}
	db.InsertErrorLog(ctx, ptr(sampleError("warn", "slow")))

	events, err := db.RecentAccess(ctx, 2)
	if err != nil {
		t.Fatalf("RecentAccess failed: %v", err)
	}
	if len(events) != 2 || events[0].Path != "/b" || events[1].Path != "/c" {
		t.Errorf("expected the last two events oldest first, got %+v", events)
	}

	lines, err := db.RecentErrors(ctx, 10)
	if err != nil {
		t.Fatalf("RecentErrors failed: %v", err)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "[warn] slow") {
		t.Errorf("unexpected error lines: %v", lines)
	}
}

func TestDeleteOldLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := sampleAccess("GET", "/old", 200)
	old.Timestamp = time.Now().Add(-48 * time.Hour)
	db.InsertAccessLog(ctx, &old)
	db.InsertAccessLog(ctx, ptr(sampleAccess("GET", "/new", 200)))

	oldErr := sampleError("error", "old")
	oldErr.Timestamp = time.Now().Add(-48 * time.Hour)
	db.InsertErrorLog(ctx, &oldErr)

	deleted, err := db.DeleteOldLogs(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOldLogs failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted rows, got %d", deleted)
	}

	logs, _ := db.QueryAccessLogs(ctx, models.LogFilter{})
	if len(logs) != 1 || logs[0].Path != "/new" {
		t.Errorf("expected only /new to remain, got %+v", logs)
	}
}

func TestCountBy_RejectsUnknownColumn(t *testing.T) {
	db := newTestDB(t)
	err := db.countBy(context.Background(), "user_agent; DROP TABLE access_logs", time.Now(), map[string]int{})
	if err == nil {
		t.Error("expected error for column outside the allowlist")
	}
}

func ptr[T any](v T) *T { return &v }
