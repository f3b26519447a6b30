package stream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketPath is the WebSocket endpoint of the backend.
const WebSocketPath = "/api/logs/ws"

const (
	// Time allowed to read the next message or ping from the server.
	pongWait = 60 * time.Second

	// Time allowed to write a control frame.
	writeWait = 10 * time.Second
)

// WebSocket subscribes to the live feed over a WebSocket connection. Each
// text frame carries exactly one stream message.
type WebSocket struct {
	url    string
	dialer *websocket.Dialer
}

// NewWebSocket creates a WebSocket transport for the given backend base URL.
func NewWebSocket(baseURL string) *WebSocket {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WebSocket{
		url: u + WebSocketPath,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (w *WebSocket) Open(ctx context.Context) (Conn, error) {
	header := http.Header{}
	header.Set("X-Request-ID", uuid.NewString())

	conn, resp, err := w.dialer.DialContext(ctx, w.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("open live websocket: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("open live websocket: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (c *wsConn) Recv() ([]byte, error) {
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind == websocket.TextMessage {
			return msg, nil
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.conn.Close()
	})
	return err
}
