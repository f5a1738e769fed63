package easy

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring an [Easy] via [New].
type Option func(*options) error
type options struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	lenient   bool
	userAgent *string
	userData  any
}

// WithLogger sets the logger used for transfer events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTracer records one client span per transfer on tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithLenientErrors starts the handle in lenient mode: failed calls return
// nil and the status is read back with [Easy.OK], [Easy.Code] and [Easy.Err].
func WithLenientErrors() Option {
	return func(o *options) error {
		o.lenient = true
		return nil
	}
}

// WithUserAgent replaces the default User-Agent. An empty string sends none.
func WithUserAgent(ua string) Option {
	return func(o *options) error {
		o.userAgent = &ua
		return nil
	}
}

// WithUserData attaches an arbitrary value to the handle, see [Easy.UserData].
func WithUserData(v any) Option {
	return func(o *options) error {
		o.userData = v
		return nil
	}
}
