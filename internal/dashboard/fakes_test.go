package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"logdash/internal/models"
	"logdash/internal/stream"
)

// fakeTransport hands out in-memory connections and counts how many are open.
type fakeTransport struct {
	mu      sync.Mutex
	opens   int
	closes  int
	conns   []*fakeConn
	openErr error
}

func (t *fakeTransport) Open(ctx context.Context) (stream.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return nil, t.openErr
	}
	t.opens++
	conn := &fakeConn{
		tr:     t,
		msgs:   make(chan []byte, 4096),
		closed: make(chan struct{}),
	}
	t.conns = append(t.conns, conn)
	return conn, nil
}

// open returns the number of connections opened and not yet closed.
func (t *fakeTransport) open() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens - t.closes
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

func (t *fakeTransport) last() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

type fakeConn struct {
	tr     *fakeTransport
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
	err    error
}

func (c *fakeConn) send(raw string) { c.msgs <- []byte(raw) }

// fail ends the connection with err as if the transport broke.
func (c *fakeConn) fail(err error) {
	c.err = err
	c.Close()
}

func (c *fakeConn) Recv() ([]byte, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case <-c.closed:
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.tr.mu.Lock()
		c.tr.closes++
		c.tr.mu.Unlock()
	})
	return nil
}

// fakeBackend records every request. A non-nil gate blocks requests until a
// value is sent on it.
type fakeBackend struct {
	mu sync.Mutex

	statsCalls []int
	stats      models.StatsSnapshot
	statsErr   error
	statsGate  chan struct{}

	errorsCalls int
	digest      models.ErrorDigest
	errorsErr   error
	errorsGate  chan struct{}

	searchCalls []models.SearchQuery
	searchFn    func(q models.SearchQuery) ([]string, error)
}

func (b *fakeBackend) Stats(ctx context.Context, hours int) (models.StatsSnapshot, error) {
	b.mu.Lock()
	b.statsCalls = append(b.statsCalls, hours)
	gate := b.statsGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats, b.statsErr
}

func (b *fakeBackend) statsCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.statsCalls)
}

func (b *fakeBackend) setStats(s models.StatsSnapshot, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats, b.statsErr = s, err
}

func (b *fakeBackend) Errors(ctx context.Context) (models.ErrorDigest, error) {
	b.mu.Lock()
	b.errorsCalls++
	gate := b.errorsGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.digest, b.errorsErr
}

func (b *fakeBackend) errorsCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errorsCalls
}

func (b *fakeBackend) Search(ctx context.Context, q models.SearchQuery) ([]string, error) {
	b.mu.Lock()
	b.searchCalls = append(b.searchCalls, q)
	fn := b.searchFn
	b.mu.Unlock()
	if fn == nil {
		return []string{}, nil
	}
	return fn(q)
}

func (b *fakeBackend) searchCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.searchCalls)
}

type liveRecorder struct {
	mu       sync.Mutex
	entries  []models.LogEvent
	failures []error
}

func (r *liveRecorder) AppendEntry(e models.LogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *liveRecorder) StreamFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *liveRecorder) appended() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *liveRecorder) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

type seriesRecorder struct {
	mu      sync.Mutex
	renders []Series
	err     error
	panics  bool
}

func (r *seriesRecorder) Render(s Series) error {
	if r.panics {
		panic("chart exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, s)
	return r.err
}

func (r *seriesRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.renders)
}

func (r *seriesRecorder) last() Series {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders[len(r.renders)-1]
}

type statusRecorder struct {
	mu        sync.Mutex
	failures  []error
	recovered int
}

func (r *statusRecorder) ReportFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *statusRecorder) ReportRecovered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovered++
}

func (r *statusRecorder) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

// listRecorder implements both DigestSink and SearchSink.
type listRecorder struct {
	mu       sync.Mutex
	groups   [][]models.SeverityGroup
	results  [][]string
	empties  int
	failures []error
}

func (r *listRecorder) RenderDigest(groups []models.SeverityGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = append(r.groups, groups)
}

func (r *listRecorder) RenderResults(lines []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, lines)
}

func (r *listRecorder) RenderEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.empties++
}

func (r *listRecorder) RenderFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func (r *listRecorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups) + len(r.results) + r.empties + len(r.failures)
}

// startLoop runs a loop for the duration of the test.
func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop()
	go loop.Run()
	t.Cleanup(loop.Stop)
	return loop
}

func accessEvent(i int) models.LogEvent {
	return models.LogEvent{
		Timestamp: fmt.Sprintf("2024-01-01T00:%02d:%02dZ", (i/60)%60, i%60),
		Method:    "GET",
		Path:      fmt.Sprintf("/items/%d", i),
		Status:    200 + i%4*100,
	}
}

func eventJSON(e models.LogEvent) string {
	return fmt.Sprintf(`{"timestamp":%q,"method":%q,"path":%q,"status":%d}`, e.Timestamp, e.Method, e.Path, e.Status)
}

var errBackendDown = errors.New("backend down")
