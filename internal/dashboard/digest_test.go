package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logdash/internal/models"
)

func newTestDigest(t *testing.T, backend *fakeBackend) (*ErrorDigest, *listRecorder) {
	t.Helper()
	loop := startLoop(t)
	sink := &listRecorder{}
	d := NewErrorDigest(loop, backend, sink, nil)
	loop.Call(func() { d.active = true })
	return d, sink
}

func TestErrorDigest_RendersGroupsBySeverity(t *testing.T) {
	backend := &fakeBackend{digest: models.ErrorDigest{
		"warn":  {{Timestamp: "2024/01/01 00:00:02", Message: "slow upstream"}},
		"error": {{Timestamp: "2024/01/01 00:00:00", Message: "connect() failed"}, {Timestamp: "2024/01/01 00:00:01", Message: "no live upstreams"}},
		"info":  {},
	}}
	d, sink := newTestDigest(t, backend)

	d.Load()
	require.Eventually(t, func() bool { return sink.calls() == 1 }, waitFor, tick)

	sink.mu.Lock()
	require.Len(t, sink.groups, 1)
	groups := sink.groups[0]
	sink.mu.Unlock()

	require.Len(t, groups, 2, "empty severities are not rendered")
	assert.Equal(t, "error", groups[0].Level)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, "connect() failed", groups[0].Entries[0].Message)
	assert.Equal(t, "warn", groups[1].Level)
	assert.Equal(t, groups, d.Groups())
}

func TestErrorDigest_EmptyDigestRendersEmptyState(t *testing.T) {
	d, sink := newTestDigest(t, &fakeBackend{digest: models.ErrorDigest{}})

	d.Load()
	require.Eventually(t, func() bool { return sink.calls() == 1 }, waitFor, tick)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.empties)
	assert.Empty(t, sink.failures)
}

func TestErrorDigest_FailureKeepsPreviousDigest(t *testing.T) {
	backend := &fakeBackend{digest: models.ErrorDigest{"crit": {{Message: "disk full"}}}}
	d, sink := newTestDigest(t, backend)

	d.Load()
	require.Eventually(t, func() bool { return sink.calls() == 1 }, waitFor, tick)

	backend.mu.Lock()
	backend.errorsErr = errBackendDown
	backend.mu.Unlock()

	d.Load()
	require.Eventually(t, func() bool { return sink.calls() == 2 }, waitFor, tick)

	sink.mu.Lock()
	require.Len(t, sink.failures, 1)
	assert.ErrorIs(t, sink.failures[0], errBackendDown)
	sink.mu.Unlock()

	groups := d.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "crit", groups[0].Level)
}

func TestErrorDigest_ResponseAfterDeactivationIgnored(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{digest: models.ErrorDigest{"error": {{Message: "late"}}}, errorsGate: gate}
	d, sink := newTestDigest(t, backend)

	d.Load()
	require.Eventually(t, func() bool { return backend.errorsCallCount() == 1 }, waitFor, tick)
	d.loop.Call(d.deactivate)
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, sink.calls())
}

func TestErrorDigest_LoadOutsideSectionRejected(t *testing.T) {
	backend := &fakeBackend{digest: models.ErrorDigest{"error": {{Message: "boom"}}}}
	d, sink := newTestDigest(t, backend)
	d.loop.Call(d.deactivate)

	assert.ErrorIs(t, d.Load(), ErrSectionInactive)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, backend.errorsCallCount())
	assert.Equal(t, 0, sink.calls())
}
