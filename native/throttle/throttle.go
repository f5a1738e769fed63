package throttle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// limiter charges byte counts against a token bucket whose burst equals one
// second of traffic.
type limiter struct {
	ctx     context.Context
	limiter *rate.Limiter
	bps     int64
	logFn   func() *slog.Logger
}

func newLimiter(ctx context.Context, bps int64, logFn func() *slog.Logger) (*limiter, error) {
	if bps <= 0 {
		return nil, fmt.Errorf("bytes per second[%d] %w", bps, ErrMustNotBeZero)
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	return &limiter{
		ctx:     ctx,
		limiter: rate.NewLimiter(rate.Limit(bps), int(bps)),
		bps:     bps,
		logFn:   logFn,
	}, nil
}

// chunk caps a single read or write so it never asks for more tokens than
// the bucket can hold.
func (l *limiter) chunk(n int) int {
	if int64(n) > l.bps {
		return int(l.bps)
	}
	return n
}

func (l *limiter) wait(n int) error {
	if n <= 0 {
		return nil
	}

	if err := l.ctx.Err(); err != nil {
		return fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	var waited time.Duration
	logger := l.logFn()
	if logger != nil && l.limiter.Tokens() < float64(n) {
		logger.Debug("throttle tokens exhausted", "rate", l.bps, "bytes", n)

		defer func() {
			logger.Debug("throttle wait complete", "waited", waited.String(), "rate", l.bps)
		}()
	}

	start := time.Now()
	err := l.limiter.WaitN(l.ctx, n)
	waited = time.Since(start)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := l.ctx.Err(); err != nil {
		return fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return nil
}

// Reader is an io.Reader limited to a fixed number of bytes per second.
type Reader struct {
	r io.Reader
	l *limiter
}

// NewReader returns a Reader that delivers at most bps bytes per second from
// r. logFn lazily resolves the logger at read time; a nil logFn or a nil
// logger disables logging.
func NewReader(ctx context.Context, r io.Reader, bps int64, logFn func() *slog.Logger) (*Reader, error) {
	l, err := newLimiter(ctx, bps, logFn)
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, l: l}, nil
}

func (t *Reader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p[:t.l.chunk(len(p))])
	if werr := t.l.wait(n); werr != nil {
		return n, werr
	}

	return n, err
}

// Writer is an io.Writer limited to a fixed number of bytes per second.
type Writer struct {
	w io.Writer
	l *limiter
}

// NewWriter returns a Writer that passes at most bps bytes per second to w.
func NewWriter(ctx context.Context, w io.Writer, bps int64, logFn func() *slog.Logger) (*Writer, error) {
	l, err := newLimiter(ctx, bps, logFn)
	if err != nil {
		return nil, err
	}

	return &Writer{w: w, l: l}, nil
}

func (t *Writer) Write(p []byte) (int, error) {
	var written int
	for len(p) > 0 {
		n := t.l.chunk(len(p))
		if err := t.l.wait(n); err != nil {
			return written, err
		}

		m, err := t.w.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}

	return written, nil
}
