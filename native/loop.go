package native

import (
	"sync"
	"time"
)

// eventLoop runs work requested by engine goroutines (dialers, TLS setup,
// trace hooks) on the goroutine that called Perform, so user callbacks
// never run concurrently with each other or outside Perform.
type eventLoop struct {
	calls chan func()
	quit  chan struct{}
	once  sync.Once
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		calls: make(chan func()),
		quit:  make(chan struct{}),
	}
}

func (l *eventLoop) stop() {
	l.once.Do(func() { close(l.quit) })
}

// post runs fn on the loop goroutine and waits for it. It reports false
// without running fn when the loop has stopped.
func (l *eventLoop) post(fn func()) bool {
	if l == nil {
		return false
	}

	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case l.calls <- wrapped:
		<-done
		return true
	case <-l.quit:
		return false
	}
}

// pollInterval is how often a paused transfer reports progress.
const pollInterval = 50 * time.Millisecond

// await serves posted calls until done yields a value. tick, when non-nil,
// is called every pollInterval and may end the wait early by returning
// false.
func await[T any](l *eventLoop, done <-chan T, tick func() bool) (T, bool) {
	var ticker <-chan time.Time
	if tick != nil {
		t := time.NewTicker(pollInterval)
		defer t.Stop()
		ticker = t.C
	}

	for {
		select {
		case fn := <-l.calls:
			fn()
		case v := <-done:
			return v, true
		case <-ticker:
			if !tick() {
				var zero T
				return zero, false
			}
		}
	}
}
