package easy

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/adamwoolhether/xfer/native"
)

// keep snapshots opts and returns a func that puts them back without
// touching the handle's recorded status.
func (e *Easy) keep(opts ...native.Option) func() {
	s := e.s
	saved := make([]any, len(opts))
	for i, opt := range opts {
		saved[i] = s.Option(opt)
		if saved[i] != nil {
			continue
		}
		switch opt.Type() {
		case native.TypeLong:
			saved[i] = int64(0)
		case native.TypeOffT:
			saved[i] = native.Off(0)
		}
	}

	return func() {
		if s.Closed() {
			return
		}
		for i, opt := range opts {
			_ = setopt(s, opt, saved[i])
		}
	}
}

// WriteTo performs the transfer and copies the downloaded body to w. The
// write handler in place before the call is restored afterwards.
func (e *Easy) WriteTo(w io.Writer) (int64, error) {
	return e.WriteToContext(context.Background(), w)
}

// WriteToContext is WriteTo bounded by ctx.
func (e *Easy) WriteToContext(ctx context.Context, w io.Writer) (int64, error) {
	if e.st == nil {
		return 0, e.emptyErr("perform")
	}

	st := e.st
	prev := st.write
	restore := e.keep(native.OptWriteFunction, native.OptWriteData)
	defer func() {
		st.write = prev
		restore()
	}()

	var n int64
	var werr error
	err := e.OnWrite(func(p []byte, _ any) int {
		m, err := w.Write(p)
		n += int64(m)
		if err != nil {
			werr = err
			return 0
		}
		return m
	}, nil)
	if err != nil || !e.OK() {
		return 0, err
	}

	err = e.PerformContext(ctx)
	if err != nil && werr != nil {
		err = fmt.Errorf("%w: %w", err, werr)
	}
	return n, err
}

// ReadFrom uploads everything r yields. Unless a POST is configured the
// transfer is switched to upload mode. When r is an io.Seeker the engine
// can rewind it, and when it reports its Len while no size is configured
// the upload size is announced.
// Handlers and options touched here are restored afterwards.
func (e *Easy) ReadFrom(r io.Reader) (int64, error) {
	return e.ReadFromContext(context.Background(), r)
}

// ReadFromContext is ReadFrom bounded by ctx.
func (e *Easy) ReadFromContext(ctx context.Context, r io.Reader) (int64, error) {
	if e.st == nil {
		return 0, e.emptyErr("perform")
	}

	st := e.st
	prevRead, prevSeek := st.read, st.seek
	restore := []func(){e.keep(
		native.OptReadFunction, native.OptReadData,
		native.OptSeekFunction, native.OptSeekData,
		native.OptInFileSizeLarge,
	)}
	defer func() {
		st.read, st.seek = prevRead, prevSeek
		for _, fn := range restore {
			fn()
		}
	}()

	var n int64
	var rerr error
	err := e.OnRead(func(buf []byte, _ any) int {
		for {
			m, err := r.Read(buf)
			n += int64(m)
			switch {
			case m > 0:
				return m
			case errors.Is(err, io.EOF):
				return 0
			case err != nil:
				rerr = err
				return native.ReadFuncAbort
			}
		}
	}, nil)
	if err != nil || !e.OK() {
		return 0, err
	}

	if seeker, ok := r.(io.Seeker); ok {
		err = e.OnSeek(func(offset native.Off, origin int, _ any) int {
			pos, err := seeker.Seek(int64(offset), origin)
			if err != nil {
				return native.SeekFuncCantSeek
			}
			n = pos
			return native.SeekFuncOK
		}, nil)
		if err != nil || !e.OK() {
			return 0, err
		}
	}

	size, _ := e.s.Option(native.OptInFileSizeLarge).(native.Off)
	if sized, ok := r.(interface{ Len() int }); ok && size < 0 {
		if err = e.Set(native.OptInFileSizeLarge, native.Off(sized.Len())); err != nil || !e.OK() {
			return 0, err
		}
	}
	if post, _ := e.s.Option(native.OptPost).(int64); post == 0 {
		s, req := e.s, e.s.SaveRequest()
		restore = append(restore, e.keep(native.OptUpload), func() { s.RestoreRequest(req) })
		if err = e.Set(native.OptUpload, true); err != nil || !e.OK() {
			return 0, err
		}
	}

	err = e.PerformContext(ctx)
	if err != nil && rerr != nil {
		err = fmt.Errorf("%w: %w", err, rerr)
	}
	return n, err
}
