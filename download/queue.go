package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/native"
)

// WorkFunc is the signature for async work.
type WorkFunc func(ctx context.Context) error

// Queue manages a batch of concurrent async downloads. Each download runs
// on its own handle.
type Queue struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	sem      chan struct{}
	shutdown atomic.Bool
	errs     []error

	logger     *slog.Logger
	handleOpts []easy.Option
}

// NewQueue creates a Queue with the given concurrency limit. handleOpts
// configure every handle the queue creates for Fetch. If maxConcurrent <= 0,
// concurrency is unlimited.
func NewQueue(maxConcurrent int, logger *slog.Logger, handleOpts ...easy.Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		logger:     logger,
		handleOpts: append([]easy.Option{easy.WithLogger(logger)}, handleOpts...),
	}
	if maxConcurrent > 0 {
		q.sem = make(chan struct{}, maxConcurrent)
	}
	return q
}

// Wait blocks until all downloads in the queue complete.
// Returns all errors joined via errors.Join.
func (q *Queue) Wait() error {
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	return errors.Join(q.errs...)
}

// Shutdown prevents new work from executing in this queue.
func (q *Queue) Shutdown() {
	q.shutdown.Store(true)
}

// Fetch downloads url to destPath on a fresh handle that follows
// redirects.
func (q *Queue) Fetch(ctx context.Context, url, destPath string, optFns ...Option) *Result {
	return q.Start(ctx, func(ctx context.Context) error {
		e, err := easy.New(q.handleOpts...)
		if err != nil {
			return fmt.Errorf("creating handle: %w", err)
		}
		defer e.Close()

		if err := e.Set(native.OptURL, url); err != nil {
			return fmt.Errorf("setting url: %w", err)
		}
		if err := e.Set(native.OptFollowLocation, true); err != nil {
			return fmt.Errorf("enabling redirects: %w", err)
		}

		if err := Handle(ctx, e, destPath, q.logger, optFns...); err != nil {
			return fmt.Errorf("downloading %s: %w", url, err)
		}
		return nil
	})
}

// Start launches fn in a new goroutine managed by the queue
// and returns a Result for tracking the individual download.
func (q *Queue) Start(ctx context.Context, fn WorkFunc) *Result {
	r := &Result{
		ctx:   ctx,
		done:  make(chan struct{}),
		queue: q,
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			close(r.done)
			q.wg.Done()
		}()

		if q.sem != nil {
			select {
			case q.sem <- struct{}{}:
				defer func() {
					<-q.sem
				}()
			case <-ctx.Done():
				r.err = ctx.Err()
				q.recordErr(r.err)
				return
			}
		}

		if q.shutdown.Load() {
			r.err = ErrQueueShutdown
			q.recordErr(r.err)
			return
		}

		r.err = fn(ctx)
		if r.err != nil {
			q.recordErr(r.err)
		}
	}()

	return r
}

// recordErr appends err to the queue's error slice under the mutex.
func (q *Queue) recordErr(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, err)
}
