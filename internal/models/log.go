package models

import (
	"fmt"
	"time"
)

// AccessLog is a stored HTTP access record.
type AccessLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Bytes     int64     `json:"bytes"`
	ClientIP  string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event converts the record to its live stream form.
func (a AccessLog) Event() LogEvent {
	return LogEvent{
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		Method:    a.Method,
		Path:      a.Path,
		Status:    a.Status,
	}
}

// Line renders the record in nginx combined log format.
func (a AccessLog) Line() string {
	referer := a.Referer
	if referer == "" {
		referer = "-"
	}
	return fmt.Sprintf(`%s - - [%s] "%s %s HTTP/1.1" %d %d "%s" "%s"`,
		a.ClientIP, a.Timestamp.Format("02/Jan/2006:15:04:05 -0700"),
		a.Method, a.Path, a.Status, a.Bytes, referer, a.UserAgent)
}

// ErrorLog is a stored server error record.
type ErrorLog struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Line renders the record in nginx error log format.
func (e ErrorLog) Line() string {
	return fmt.Sprintf("%s [%s] %s", e.Timestamp.Format("2006/01/02 15:04:05"), e.Level, e.Message)
}

// Entry converts the record to its digest form.
func (e ErrorLog) Entry() ErrorEntry {
	return ErrorEntry{
		Timestamp: e.Timestamp.Format("2006/01/02 15:04:05"),
		Message:   e.Message,
	}
}

type LogFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Search    string // case-insensitive substring match
}
