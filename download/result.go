package download

import (
	"context"
)

// Result represents an in-flight or completed async download.
type Result struct {
	ctx    context.Context
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	queue  *Queue
}

// Add queues another download in the same batch, sharing the context the
// first download was started with.
func (r *Result) Add(url, destPath string, optFns ...Option) *Result {
	return r.queue.Fetch(r.ctx, url, destPath, optFns...)
}

// Done returns a channel that is closed when the specific download completes.
func (r *Result) Done() <-chan struct{} { return r.done }

// Err blocks until this download completes and returns its error.
func (r *Result) Err() error {
	<-r.done
	return r.err
}

// Wait blocks until all downloads in the queue complete.
// Returns all errors joined.
func (r *Result) Wait() error {
	return r.queue.Wait()
}

// Cancel cancels this download's context.
func (r *Result) Cancel() {
	r.cancel()
}
