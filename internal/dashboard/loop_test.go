package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsCallbacksInOrder(t *testing.T) {
	loop := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, loop.Post(func() { got = append(got, i) }))
	}

	var n int
	require.True(t, loop.Call(func() { n = len(got) }))
	assert.Equal(t, 100, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_QueuesBeforeRun(t *testing.T) {
	loop := NewLoop()
	ran := false
	require.True(t, loop.Post(func() { ran = true }))

	go loop.Run()
	t.Cleanup(loop.Stop)

	var seen bool
	loop.Call(func() { seen = ran })
	assert.True(t, seen)
}

func TestLoop_StoppedRejectsWork(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	loop.Stop()
	loop.Stop()

	<-loop.Done()
	assert.False(t, loop.Post(func() {}))
	assert.False(t, loop.Call(func() {}))
}
