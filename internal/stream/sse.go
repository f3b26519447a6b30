package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"
)

// LivePath is the server-sent events endpoint of the backend.
const LivePath = "/api/logs/live"

// maxEventSize bounds a single SSE event.
const maxEventSize = 1 << 20

// SSE subscribes to the live feed over server-sent events.
type SSE struct {
	url string
}

// NewSSE creates an SSE transport for the given backend base URL.
func NewSSE(baseURL string) *SSE {
	return &SSE{url: strings.TrimRight(baseURL, "/") + LivePath}
}

// Open issues the stream request and returns once the backend has accepted
// it. The underlying client never reconnects: when the stream ends, Recv
// reports the error and the Conn is spent.
func (s *SSE) Open(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	c := &sseConn{
		msgs:   make(chan []byte),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	connected := make(chan struct{})
	client := sse.NewClient(s.url, sse.ClientMaxBufferSize(maxEventSize))
	client.ReconnectStrategy = &backoff.StopBackOff{}
	client.Headers["X-Request-ID"] = uuid.NewString()
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		select {
		case <-connected:
		default:
			close(connected)
		}
		return nil
	}

	go func() {
		defer close(c.done)
		c.err = client.SubscribeRawWithContext(ctx, func(ev *sse.Event) {
			if len(ev.Data) == 0 {
				return
			}
			select {
			case c.msgs <- ev.Data:
			case <-ctx.Done():
			}
		})
		if c.err == nil {
			c.err = io.EOF
		}
	}()

	select {
	case <-connected:
		return c, nil
	case <-c.done:
		cancel()
		return nil, fmt.Errorf("open live stream: %w", c.err)
	}
}

type sseConn struct {
	msgs   chan []byte
	done   chan struct{}
	err    error
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Recv returns the data of the next event. Multi-line data fields arrive
// joined with newlines.
func (c *sseConn) Recv() ([]byte, error) {
	select {
	case msg := <-c.msgs:
		return msg, nil
	case <-c.done:
		return nil, c.err
	}
}

func (c *sseConn) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}
