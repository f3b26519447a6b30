package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// StatsSnapshot is the aggregate view of traffic over a time window.
type StatsSnapshot struct {
	RequestsByPath map[string]int `json:"requests_by_path"`
	StatusCodes    map[string]int `json:"status_codes"`
	Methods        map[string]int `json:"methods"`

	// Optional extras; older backends omit them.
	RequestsByIP map[string]int `json:"requests_by_ip,omitempty"`
	TotalBytes   int64          `json:"total_bytes,omitempty"`
	Errors       int            `json:"errors,omitempty"`
}

// Normalize folds raw status codes ("404") into classes ("4xx") and makes
// sure every map is non-nil. Keys that are already classes are kept.
func (s StatsSnapshot) Normalize() StatsSnapshot {
	out := s
	out.RequestsByPath = nonNil(s.RequestsByPath)
	out.Methods = nonNil(s.Methods)
	out.RequestsByIP = nonNil(s.RequestsByIP)

	classes := make(map[string]int, len(s.StatusCodes))
	for key, count := range s.StatusCodes {
		classes[StatusClassOf(key)] += count
	}
	out.StatusCodes = classes
	return out
}

// Total is the number of requests in the snapshot.
func (s StatsSnapshot) Total() int {
	total := 0
	for _, n := range s.Methods {
		total += n
	}
	return total
}

// StatusClassOf maps "200" to "2xx". Unrecognized keys are returned as-is.
func StatusClassOf(key string) string {
	key = strings.TrimSpace(key)
	if len(key) == 3 && strings.HasSuffix(strings.ToLower(key), "xx") {
		return strings.ToLower(key)
	}
	code, err := strconv.Atoi(key)
	if err != nil || code < 100 || code > 599 {
		return key
	}
	return fmt.Sprintf("%dxx", code/100)
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

// Count is one labelled value of a breakdown.
type Count struct {
	Label string
	Value int
}

// SortedCounts orders a breakdown by descending value, then label.
func SortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ErrorEntry is one line of the error digest.
type ErrorEntry struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// ErrorDigest maps severity level to its entries.
type ErrorDigest map[string][]ErrorEntry

// SeverityGroup is one rendered block of the digest.
type SeverityGroup struct {
	Level   string
	Count   int
	Entries []ErrorEntry
}

// severityRank follows nginx error_log levels, most severe first.
var severityRank = map[string]int{
	"emerg":  0,
	"alert":  1,
	"crit":   2,
	"error":  3,
	"warn":   4,
	"notice": 5,
	"info":   6,
	"debug":  7,
}

// Groups returns the digest as severity groups ordered most severe first,
// with unknown levels after the known ones in alphabetical order. Levels
// without entries are omitted.
func (d ErrorDigest) Groups() []SeverityGroup {
	groups := make([]SeverityGroup, 0, len(d))
	for level, entries := range d {
		if len(entries) == 0 {
			continue
		}
		groups = append(groups, SeverityGroup{Level: level, Count: len(entries), Entries: entries})
	}
	sort.Slice(groups, func(i, j int) bool {
		ri, iKnown := severityRank[strings.ToLower(groups[i].Level)]
		rj, jKnown := severityRank[strings.ToLower(groups[j].Level)]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return groups[i].Level < groups[j].Level
		}
	})
	return groups
}

// ErrInvalidLogType is returned for log types other than access and error.
var ErrInvalidLogType = errors.New("invalid log type")

// LogType selects which log a search or recent query runs against.
type LogType string

const (
	LogTypeAccess LogType = "access"
	LogTypeError  LogType = "error"
)

// ParseLogType accepts "access" or "error", case-insensitively. An empty
// string selects access.
func ParseLogType(s string) (LogType, error) {
	switch LogType(strings.ToLower(strings.TrimSpace(s))) {
	case "", LogTypeAccess:
		return LogTypeAccess, nil
	case LogTypeError:
		return LogTypeError, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLogType, s)
}

// SearchQuery is a pattern search over one of the logs.
type SearchQuery struct {
	Pattern string
	LogType LogType
}

// Blank reports whether the pattern is empty or whitespace only.
func (q SearchQuery) Blank() bool {
	return strings.TrimSpace(q.Pattern) == ""
}
