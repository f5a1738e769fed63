// Package throttle limits the byte rate of a transfer using the token
// bucket from [golang.org/x/time/rate].
//
// # Usage
//
// Wrap the body being sent or received:
//
//	r, err := throttle.NewReader(ctx, body, 64<<10,
//		func() *slog.Logger { return slog.Default() })
//
// Reads block until enough tokens are available for the bytes returned,
// or until ctx is done.
package throttle
