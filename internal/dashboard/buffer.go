package dashboard

import "logdash/internal/models"

// LiveCapacity is the number of entries kept by the live view.
const LiveCapacity = 1000

// LiveBuffer holds the most recent events in arrival order. When full, the
// oldest event is evicted before a new one is appended.
type LiveBuffer struct {
	entries []models.LogEvent
	limit   int
}

// NewLiveBuffer builds a buffer holding at most limit events.
func NewLiveBuffer(limit int) *LiveBuffer {
	if limit <= 0 {
		limit = LiveCapacity
	}
	return &LiveBuffer{limit: limit, entries: make([]models.LogEvent, 0, limit)}
}

// Push appends e and reports whether an older event was evicted.
func (b *LiveBuffer) Push(e models.LogEvent) (evicted bool) {
	if len(b.entries) >= b.limit {
		// Shift in place so the backing array does not creep forward.
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
		evicted = true
	}
	b.entries = append(b.entries, e)
	return evicted
}

// Len returns the number of buffered events.
func (b *LiveBuffer) Len() int { return len(b.entries) }

// Cap returns the capacity ceiling.
func (b *LiveBuffer) Cap() int { return b.limit }

// Snapshot returns a copy of the buffered events, oldest first.
func (b *LiveBuffer) Snapshot() []models.LogEvent {
	out := make([]models.LogEvent, len(b.entries))
	copy(out, b.entries)
	return out
}
