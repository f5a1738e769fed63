package easy

import (
	"errors"

	"github.com/adamwoolhether/xfer/native"
)

// ErrEmpty is reported by operations on a handle whose session was moved
// out, released or closed.
var ErrEmpty = errors.New("easy: handle holds no session")

// Error is a failed engine call. It unwraps to its [native.Code], so
// errors.Is(err, native.URLMalformat) reports the status, and to Err when
// the failure has a sentinel cause such as ErrEmpty.
type Error struct {
	Op     string
	Code   native.Code
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := native.Strerror(e.Code)
	if e.Detail != "" && e.Detail != msg {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Code, e.Err}
	}
	return []error{e.Code}
}
