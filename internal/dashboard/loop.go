// Package dashboard is the client core of the live log dashboard: one event
// loop that owns the live tail, the periodic stats poller, the error digest,
// the search view, and the section controller switching between them.
//
// All component state is confined to the loop goroutine. Network calls,
// stream reads and timers run elsewhere and only ever post their results
// back onto the loop, so callbacks never run concurrently with each other.
package dashboard

import "sync"

// taskBacklog is the number of posted callbacks that can queue up before
// Post blocks.
const taskBacklog = 1024

// Loop runs posted callbacks one at a time in the order they were posted.
type Loop struct {
	tasks    chan func()
	quit     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a stopped loop. Callbacks posted before Run is called are
// queued and run once it starts.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), taskBacklog),
		quit:  make(chan struct{}),
	}
}

// Run executes callbacks until Stop is called.
func (l *Loop) Run() {
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Stop ends Run. Callbacks still queued are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.quit) })
}

// Done is closed once the loop has been stopped.
func (l *Loop) Done() <-chan struct{} { return l.quit }

// Post queues fn. It reports false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. It reports false if
// the loop stopped before fn ran. Call must not be used from the loop
// goroutine itself.
func (l *Loop) Call(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.quit:
		return false
	}
}
