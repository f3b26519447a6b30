package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"logdash/internal/models"
)

// maxBodySize is the maximum allowed request body size (10MB)
const maxBodySize = 10 << 20

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.limiter != nil && !s.limiter.getLimiter(getClientIP(r)).Allow() {
		rateLimitedTotal.Inc()
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	logType, err := models.ParseLogType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body or body too large", http.StatusBadRequest)
		return
	}

	var stored int
	switch logType {
	case models.LogTypeError:
		stored, err = s.ingestErrors(r, body)
	default:
		stored, err = s.ingestAccess(r, body)
	}
	if err != nil {
		var ie *ingestError
		if errors.As(err, &ie) {
			http.Error(w, ie.Error(), ie.status)
			return
		}
		slog.Error("failed to store records", "type", logType, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	ingestedTotal.WithLabelValues(string(logType)).Add(float64(stored))
	w.WriteHeader(http.StatusCreated)
}

// ingestError is a client error raised while decoding or validating a
// batch.
type ingestError struct {
	status int
	msg    string
}

func (e *ingestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &ingestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// decodeBatch accepts either a JSON array or a single object.
func decodeBatch[T any](body []byte) ([]T, error) {
	var batch []T
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, nil
	}
	var single T
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, badRequest("Invalid JSON")
	}
	return []T{single}, nil
}

func (s *server) ingestAccess(r *http.Request, body []byte) (int, error) {
	entries, err := decodeBatch[models.AccessLog](body)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
		if err := validateAccess(&entries[i]); err != nil {
			slog.Warn("invalid access record", "index", i, "error", err)
			return 0, badRequest("%s", err)
		}
	}

	switch len(entries) {
	case 0:
		return 0, nil
	case 1:
		err = s.db.InsertAccessLog(r.Context(), &entries[0])
	default:
		err = s.db.InsertAccessBatch(r.Context(), entries)
	}
	if err != nil {
		return 0, err
	}

	s.publish(entries)
	return len(entries), nil
}

func (s *server) ingestErrors(r *http.Request, body []byte) (int, error) {
	entries, err := decodeBatch[models.ErrorLog](body)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for i := range entries {
		if entries[i].Timestamp.IsZero() {
			entries[i].Timestamp = now
		}
		entries[i].Level = strings.ToLower(strings.TrimSpace(entries[i].Level))
		if err := validateError(&entries[i]); err != nil {
			slog.Warn("invalid error record", "index", i, "error", err)
			return 0, badRequest("%s", err)
		}
	}

	switch len(entries) {
	case 0:
		return 0, nil
	case 1:
		err = s.db.InsertErrorLog(r.Context(), &entries[0])
	default:
		err = s.db.InsertErrorBatch(r.Context(), entries)
	}
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func validateAccess(a *models.AccessLog) error {
	if strings.TrimSpace(a.Method) == "" {
		return fmt.Errorf("missing required field: method")
	}
	if strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("missing required field: path")
	}
	if a.Status < 100 || a.Status > 599 {
		return fmt.Errorf("invalid field: status %d", a.Status)
	}
	if a.Bytes < 0 {
		return fmt.Errorf("invalid field: bytes %d", a.Bytes)
	}
	return nil
}

func validateError(e *models.ErrorLog) error {
	if e.Level == "" {
		return fmt.Errorf("missing required field: level")
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("missing required field: message")
	}
	return nil
}
