package easy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/xfer/native"
)

// DefaultUserAgent is installed on every new handle unless replaced with
// [WithUserAgent].
const DefaultUserAgent = "xfer/" + native.LibraryVersion

const emptyDetail = "handle holds no session"

// initSession lets tests simulate a failed allocation.
var initSession = native.Init

// Easy owns one engine session together with the callbacks registered on
// it. The zero value is an empty handle; use [New].
//
// An Easy is not safe for concurrent use. Callbacks run on the goroutine
// that called Perform.
type Easy struct {
	s  *native.Session
	st *state
	id uuid.UUID

	strict bool
	code   native.Code
	detail string

	ua       string
	userData any
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New acquires a session and installs the default user agent. A session
// that cannot be allocated is always reported as a FailedInit error,
// regardless of the error mode.
func New(optFns ...Option) (*Easy, error) {
	o := options{}
	for _, fn := range optFns {
		if err := fn(&o); err != nil {
			return nil, fmt.Errorf("applying easy option: %w", err)
		}
	}

	s := initSession()
	if s == nil {
		return nil, &Error{Op: "init", Code: native.FailedInit}
	}

	e := &Easy{
		s:        s,
		st:       &state{},
		id:       uuid.New(),
		strict:   !o.lenient,
		ua:       DefaultUserAgent,
		userData: o.userData,
		logger:   o.logger,
		tracer:   o.tracer,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("xfer/easy")
	}
	if o.userAgent != nil {
		e.ua = *o.userAgent
	}

	if err := e.setUserAgent(); err != nil {
		s.Cleanup()
		return nil, err
	}

	return e, nil
}

func (e *Easy) setUserAgent() error {
	if e.ua == "" {
		return nil
	}
	return e.Set(native.OptUserAgent, e.ua)
}

// handle records the outcome of an engine call and turns a failure into an
// error when the handle is strict.
func (e *Easy) handle(op string, code native.Code, detail string) error {
	e.code = code
	e.detail = ""
	if code == native.OK {
		return nil
	}

	e.detail = detail
	if !e.strict {
		return nil
	}
	return &Error{Op: op, Code: code, Detail: detail}
}

func (e *Easy) emptyErr(op string) error {
	err := e.handle(op, native.BadFunctionArgument, emptyDetail)
	if ee, ok := err.(*Error); ok {
		ee.Err = ErrEmpty
	}
	return err
}

// Perform runs the configured transfer.
func (e *Easy) Perform() error {
	return e.PerformContext(context.Background())
}

// PerformContext runs the configured transfer, aborting when ctx is done.
func (e *Easy) PerformContext(ctx context.Context) error {
	if e.s == nil {
		return e.emptyErr("perform")
	}

	ctx, span := e.tracer.Start(ctx, "xfer.perform",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("xfer.handle", e.id.String())))
	defer span.End()

	url, _ := e.s.Option(native.OptURL).(string)
	e.logger.DebugContext(ctx, "transfer starting", "id", e.id, "url", url)

	start := time.Now()
	code := e.s.PerformContext(ctx)
	detail := e.s.LastError()

	var effective string
	var status int64
	_ = e.s.Getinfo(native.InfoEffectiveURL, &effective)
	_ = e.s.Getinfo(native.InfoResponseCode, &status)

	span.SetAttributes(
		attribute.String("url.full", effective),
		attribute.Int64("xfer.response_code", status),
	)
	if code != native.OK {
		span.SetStatus(codes.Error, native.Strerror(code))
	}

	e.logger.DebugContext(ctx, "transfer finished",
		"id", e.id,
		"code", int(code),
		"status", status,
		"elapsed", time.Since(start),
	)

	return e.handle("perform", code, detail)
}

// Send writes p on a connect only session. It returns the number of bytes
// sent, or zero on failure; native.Again means nothing could be sent yet.
func (e *Easy) Send(p []byte) (int, error) {
	if e.s == nil {
		return 0, e.emptyErr("send")
	}

	n, code := e.s.Send(p)
	if code != native.OK {
		n = 0
	}
	return n, e.handle("send", code, e.s.LastError())
}

// Recv reads from a connect only session. Zero bytes with a nil error means
// the peer closed the connection.
func (e *Easy) Recv(p []byte) (int, error) {
	if e.s == nil {
		return 0, e.emptyErr("recv")
	}

	n, code := e.s.Recv(p)
	if code != native.OK {
		n = 0
	}
	return n, e.handle("recv", code, e.s.LastError())
}

// Pause sets the pause state of the running transfer, see native.PauseAll.
func (e *Easy) Pause(mask int) error {
	if e.s == nil {
		return e.emptyErr("pause")
	}
	return e.handle("pause", e.s.Pause(mask), "")
}

// Reset restores the engine defaults and drops the read, write, header,
// progress and debug handlers. The handle's user agent is installed again.
func (e *Easy) Reset() error {
	if e.s == nil {
		return e.emptyErr("reset")
	}

	e.s.Reset()
	e.st.read = event[ReadHandler]{}
	e.st.write = event[WriteHandler]{}
	e.st.header = event[WriteHandler]{}
	e.st.progress = event[ProgressHandler]{}
	e.st.xferInfo = event[XferInfoHandler]{}
	e.st.debug = event[DebugHandler]{}
	e.code, e.detail = native.OK, ""

	return e.setUserAgent()
}

// Escape percent-encodes s.
func (e *Easy) Escape(s string) string { return native.Escape(s) }

// Unescape decodes percent-encoded s.
func (e *Easy) Unescape(s string) string { return native.Unescape(s) }

// Get returns the owned session without giving up ownership.
func (e *Easy) Get() *native.Session { return e.s }

// Release hands the session to the caller, who must call Cleanup on it.
// The handle is left empty. Registered callbacks keep working on the
// released session.
func (e *Easy) Release() *native.Session {
	s := e.s
	e.s, e.st = nil, nil
	return s
}

// Close releases the session. Closing an empty handle does nothing.
func (e *Easy) Close() error {
	if e.s == nil {
		return nil
	}
	if !e.s.Closed() {
		e.s.Cleanup()
	}
	e.s, e.st = nil, nil
	e.logger.Debug("easy handle closed", "id", e.id)
	return nil
}

// Move transfers the session and everything registered on it to a new
// handle, leaving e empty.
func (e *Easy) Move() *Easy {
	moved := *e
	e.s, e.st = nil, nil
	e.code, e.detail = native.OK, ""
	return &moved
}

// MoveFrom closes the session e holds and takes over src's, leaving src
// empty.
func (e *Easy) MoveFrom(src *Easy) {
	if src == e {
		return
	}
	_ = e.Close()
	*e = *src
	src.s, src.st = nil, nil
	src.code, src.detail = native.OK, ""
}

// OK reports whether the last call succeeded.
func (e *Easy) OK() bool { return e.code == native.OK }

// Code is the status of the last call.
func (e *Easy) Code() native.Code { return e.code }

// ErrorString describes the last call's status including the engine's
// detail message.
func (e *Easy) ErrorString() string {
	if e.code == native.OK {
		return native.Strerror(native.OK)
	}
	return (&Error{Code: e.code, Detail: e.detail}).Error()
}

// Err returns the last call's failure as an *Error, or nil.
func (e *Easy) Err() error {
	if e.code == native.OK {
		return nil
	}
	return &Error{Code: e.code, Detail: e.detail}
}

// Strict reports whether failed calls return errors.
func (e *Easy) Strict() bool { return e.strict }

// SetStrict switches between returning errors and only recording them.
func (e *Easy) SetStrict(strict bool) { e.strict = strict }

// UserData returns the value attached with SetUserData or WithUserData.
func (e *Easy) UserData() any { return e.userData }

// SetUserData attaches v to the handle.
func (e *Easy) SetUserData(v any) { e.userData = v }

// ID identifies the handle in log records and spans.
func (e *Easy) ID() uuid.UUID { return e.id }
