package main

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultKeepalive is the idle time after which the live stream sends a
// keepalive message.
const defaultKeepalive = 30 * time.Second

var keepaliveMessage = []byte(`{"keepalive":true}`)

func (s *server) keepaliveInterval() time.Duration {
	if s.keepalive <= 0 {
		return defaultKeepalive
	}
	return s.keepalive
}

// handleLive streams access events as server-sent events, one JSON object
// per event.
func (s *server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, ok := s.hub.subscribe("sse")
	if !ok {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	interval := s.keepaliveInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case message, ok := <-sub.send:
			if !ok {
				return
			}
			if err := writeEvent(w, message); err != nil {
				return
			}
			flusher.Flush()
			ticker.Reset(interval)

		case <-ticker.C:
			if err := writeEvent(w, keepaliveMessage); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
