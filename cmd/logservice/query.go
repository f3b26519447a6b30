package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"logdash/internal/models"
)

const (
	defaultRecentLines = 100
	maxRecentLines     = 1000
	maxStatsHours      = 24 * 365
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// handleStats serves aggregate counts for the last ?hours= hours (default 1).
func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	hours := 1
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxStatsHours {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		hours = n
	}

	snapshot, err := s.db.Stats(r.Context(), hours)
	if err != nil {
		slog.Error("stats query failed", "hours", hours, "error", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot)
}

// handleErrors serves recent error records grouped by level.
func (s *server) handleErrors(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	digest, err := s.db.ErrorDigest(r.Context(), 0)
	if err != nil {
		slog.Error("error digest query failed", "error", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, digest)
}

// handleSearch serves matching raw lines from the access or error log.
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	logType, err := models.ParseLogType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := models.SearchQuery{Pattern: r.URL.Query().Get("pattern"), LogType: logType}
	lines, err := s.db.Search(r.Context(), query, 0)
	if err != nil {
		slog.Error("search failed", "type", logType, "error", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, lines)
}

// handleRecent serves the last ?lines= access events or error lines.
func (s *server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	logType, err := models.ParseLogType(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lines := defaultRecentLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		lines = min(n, maxRecentLines)
	}

	var out interface{}
	switch logType {
	case models.LogTypeError:
		out, err = s.db.RecentErrors(r.Context(), lines)
	default:
		out, err = s.db.RecentAccess(r.Context(), lines)
	}
	if err != nil {
		slog.Error("recent query failed", "type", logType, "error", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, out)
}
