package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiveBuffer_FIFOEviction(t *testing.T) {
	b := NewLiveBuffer(3)

	for i := 0; i < 3; i++ {
		assert.False(t, b.Push(accessEvent(i)))
	}
	assert.True(t, b.Push(accessEvent(3)))
	assert.True(t, b.Push(accessEvent(4)))

	assert.Equal(t, 3, b.Len())
	got := b.Snapshot()
	assert.Equal(t, accessEvent(2), got[0])
	assert.Equal(t, accessEvent(4), got[2])
}

func TestLiveBuffer_DefaultCapacity(t *testing.T) {
	b := NewLiveBuffer(0)
	assert.Equal(t, LiveCapacity, b.Cap())

	for i := 0; i < 2500; i++ {
		b.Push(accessEvent(i))
		if b.Len() > LiveCapacity {
			t.Fatalf("buffer grew past capacity: %d", b.Len())
		}
	}
	got := b.Snapshot()
	assert.Len(t, got, LiveCapacity)
	assert.Equal(t, accessEvent(1500), got[0])
	assert.Equal(t, accessEvent(2499), got[LiveCapacity-1])
}

func TestLiveBuffer_SnapshotIsCopy(t *testing.T) {
	b := NewLiveBuffer(2)
	b.Push(accessEvent(1))

	snap := b.Snapshot()
	snap[0].Path = "/mutated"

	assert.Equal(t, accessEvent(1), b.Snapshot()[0])
}
