// Package stream provides transports for the live log feed. A transport
// opens a connection that yields raw messages one at a time; decoding them
// is left to the consumer.
package stream

import (
	"context"
	"fmt"
	"strings"
)

// Conn is one open subscription. Recv blocks until the next message and
// returns an error once the connection has ended; a closed Conn cannot be
// reopened.
type Conn interface {
	Recv() ([]byte, error)
	Close() error
}

// Transport opens subscriptions to the live feed.
type Transport interface {
	Open(ctx context.Context) (Conn, error)
}

const (
	KindSSE       = "sse"
	KindWebSocket = "websocket"
)

// New returns the transport of the given kind for a backend base URL.
func New(kind, baseURL string) (Transport, error) {
	switch strings.ToLower(kind) {
	case "", KindSSE:
		return NewSSE(baseURL), nil
	case KindWebSocket, "ws":
		return NewWebSocket(baseURL), nil
	}
	return nil, fmt.Errorf("unknown transport %q", kind)
}
