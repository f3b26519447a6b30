package dashboard

import (
	"context"
	"log/slog"
	"sync"

	"logdash/internal/models"
	"logdash/internal/stream"
)

// LiveTail owns the single live stream subscription and the LiveBuffer it
// feeds. At most one subscription is open at a time.
type LiveTail struct {
	loop      *Loop
	transport stream.Transport
	sink      LiveSink
	logger    *slog.Logger

	buf     *LiveBuffer
	sub     *subscription
	gen     uint64
	dropped int
}

// subscription is the cancelable handle of one open stream. close may be
// called from the loop while the pump goroutine is still dialing.
type subscription struct {
	gen    uint64
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   stream.Conn
	closed bool
}

func (s *subscription) attach(conn stream.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
}

// NewLiveTail creates a stopped live tail.
func NewLiveTail(loop *Loop, transport stream.Transport, sink LiveSink, logger *slog.Logger) *LiveTail {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveTail{
		loop:      loop,
		transport: transport,
		sink:      sink,
		logger:    logger.With("component", "live"),
		buf:       NewLiveBuffer(LiveCapacity),
	}
}

// Start tears down any open subscription and opens a new one.
func (t *LiveTail) Start() { t.loop.Call(t.start) }

// Stop closes the subscription. Stopping a stopped tail is a no-op.
func (t *LiveTail) Stop() { t.loop.Call(t.stop) }

// Active reports whether a subscription is currently open.
func (t *LiveTail) Active() bool {
	var active bool
	t.loop.Call(func() { active = t.sub != nil })
	return active
}

// Entries returns a copy of the LiveBuffer, oldest first.
func (t *LiveTail) Entries() []models.LogEvent {
	var out []models.LogEvent
	t.loop.Call(func() { out = t.buf.Snapshot() })
	return out
}

// Dropped returns the number of malformed messages discarded so far.
func (t *LiveTail) Dropped() int {
	var n int
	t.loop.Call(func() { n = t.dropped })
	return n
}

func (t *LiveTail) start() {
	t.stop()

	t.gen++
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{gen: t.gen, cancel: cancel}
	t.sub = sub
	t.logger.Debug("opening live stream", "generation", sub.gen)

	go t.pump(ctx, sub)
}

func (t *LiveTail) stop() {
	if t.sub == nil {
		return
	}
	t.logger.Debug("closing live stream", "generation", t.sub.gen)
	t.sub.close()
	t.sub = nil
}

// pump reads the subscription until it ends and posts every message to
// the loop.
func (t *LiveTail) pump(ctx context.Context, sub *subscription) {
	conn, err := t.transport.Open(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.loop.Post(func() { t.failed(sub.gen, err) })
		}
		return
	}
	if !sub.attach(conn) {
		conn.Close()
		return
	}

	for {
		msg, err := conn.Recv()
		if err != nil {
			if ctx.Err() == nil {
				t.loop.Post(func() { t.failed(sub.gen, err) })
			}
			return
		}
		if !t.loop.Post(func() { t.receive(sub.gen, msg) }) {
			sub.close()
			return
		}
	}
}

func (t *LiveTail) current(gen uint64) bool {
	return t.sub != nil && t.sub.gen == gen
}

func (t *LiveTail) receive(gen uint64, raw []byte) {
	if !t.current(gen) {
		return
	}

	event, keepalive, err := models.DecodeStreamMessage(raw)
	if keepalive {
		return
	}
	if err != nil {
		t.dropped++
		t.logger.Warn("dropping malformed stream message", "error", err, "dropped", t.dropped)
		return
	}

	t.buf.Push(event)
	guard(t.logger, "live", func() error {
		t.sink.AppendEntry(event)
		return nil
	})
}

// failed handles the end of a subscription. Reconnecting is left to the
// caller re-activating the live section.
func (t *LiveTail) failed(gen uint64, err error) {
	if !t.current(gen) {
		return
	}
	t.logger.Error("live stream ended", "error", err)
	t.sub.close()
	t.sub = nil
	guard(t.logger, "live", func() error {
		t.sink.StreamFailed(err)
		return nil
	})
}
