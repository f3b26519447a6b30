package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedEvent is returned for stream messages that are neither a
// keepalive nor a well-formed LogEvent.
var ErrMalformedEvent = errors.New("malformed log event")

// LogEvent is a single access-log entry as emitted by the live stream.
type LogEvent struct {
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
}

// StatusClass returns the status family of the event, e.g. "2xx".
func (e LogEvent) StatusClass() string {
	return fmt.Sprintf("%dxx", e.Status/100)
}

// Validate checks that the event carries every required field and that
// the timestamp is RFC 3339.
func (e LogEvent) Validate() error {
	if strings.TrimSpace(e.Timestamp) == "" {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedEvent)
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		return fmt.Errorf("%w: timestamp %q is not RFC 3339", ErrMalformedEvent, e.Timestamp)
	}
	if strings.TrimSpace(e.Method) == "" {
		return fmt.Errorf("%w: missing method", ErrMalformedEvent)
	}
	if e.Path == "" {
		return fmt.Errorf("%w: missing path", ErrMalformedEvent)
	}
	if e.Status < 100 || e.Status > 599 {
		return fmt.Errorf("%w: status %d out of range", ErrMalformedEvent, e.Status)
	}
	return nil
}

// streamMessage mirrors every shape the live stream may send. Status is kept
// raw so that non-integer values are rejected rather than coerced.
type streamMessage struct {
	Keepalive bool            `json:"keepalive"`
	Timestamp *string         `json:"timestamp"`
	Method    *string         `json:"method"`
	Path      *string         `json:"path"`
	Status    json.RawMessage `json:"status"`
}

// DecodeStreamMessage parses one raw stream message. It reports keepalive
// messages with keepalive=true and a zero event. Anything else must be a
// complete LogEvent or an error wrapping ErrMalformedEvent is returned.
func DecodeStreamMessage(data []byte) (event LogEvent, keepalive bool, err error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return LogEvent{}, false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if msg.Keepalive {
		return LogEvent{}, true, nil
	}

	if msg.Timestamp == nil || msg.Method == nil || msg.Path == nil || len(msg.Status) == 0 {
		return LogEvent{}, false, fmt.Errorf("%w: missing field", ErrMalformedEvent)
	}

	var status int
	dec := json.NewDecoder(bytes.NewReader(msg.Status))
	if err := dec.Decode(&status); err != nil {
		return LogEvent{}, false, fmt.Errorf("%w: status is not an integer", ErrMalformedEvent)
	}

	event = LogEvent{
		Timestamp: *msg.Timestamp,
		Method:    *msg.Method,
		Path:      *msg.Path,
		Status:    status,
	}
	if err := event.Validate(); err != nil {
		return LogEvent{}, false, err
	}
	return event, false, nil
}
