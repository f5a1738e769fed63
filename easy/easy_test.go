package easy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/xfer/native"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "hello")
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("User-Agent"))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s", r.Method, body)
	})
	mux.HandleFunc("/cookie", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "flavor", Value: "oat", Path: "/"})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func newEasy(t *testing.T, opts ...Option) *Easy {
	t.Helper()

	e, err := New(opts...)
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	return e
}

// countSetopt counts calls reaching the engine setter for the rest of t.
func countSetopt(t *testing.T) *int {
	t.Helper()

	var calls int
	orig := setopt
	t.Cleanup(func() { setopt = orig })
	setopt = func(s *native.Session, opt native.Option, v any) native.Code {
		calls++
		return orig(s, opt, v)
	}

	return &calls
}

func TestNew_DefaultUserAgent(t *testing.T) {
	ts := testServer(t)

	testCases := map[string]struct {
		opts []Option
		exp  string
	}{
		"default": {exp: DefaultUserAgent},
		"custom":  {opts: []Option{WithUserAgent("agent/1.0")}, exp: "agent/1.0"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			e := newEasy(t, tc.opts...)
			if err := e.Set(native.OptURL, ts.URL+"/ua"); err != nil {
				t.Fatalf("setting url: %v", err)
			}

			var buf bytes.Buffer
			if _, err := e.WriteTo(&buf); err != nil {
				t.Fatalf("performing: %v", err)
			}
			if buf.String() != tc.exp {
				t.Errorf("exp user agent %q; got: %q", tc.exp, buf.String())
			}
		})
	}
}

func TestNew_FailedInit(t *testing.T) {
	orig := initSession
	t.Cleanup(func() { initSession = orig })
	initSession = func() *native.Session { return nil }

	for _, opts := range [][]Option{nil, {WithLenientErrors()}} {
		e, err := New(opts...)
		if e != nil {
			t.Fatalf("exp nil handle; got: %v", e)
		}
		if !errors.Is(err, native.FailedInit) {
			t.Errorf("exp FailedInit; got: %v", err)
		}
	}
}

func TestNew_BadOption(t *testing.T) {
	if _, err := New(WithLogger(nil)); err == nil {
		t.Error("exp error for nil logger")
	}
}

func TestSet_Classification(t *testing.T) {
	testCases := []struct {
		name     string
		opt      native.Option
		value    any
		expCode  native.Code
		expCalls int
	}{
		{"bool", native.OptVerbose, true, native.OK, 1},
		{"int", native.OptVerbose, 1, native.OK, 1},
		{"uint8", native.OptVerbose, uint8(1), native.OK, 1},
		{"int64", native.OptMaxRedirs, int64(5), native.OK, 1},
		{"int constant", native.OptHTTPVersion, native.HTTPVersion1_1, native.OK, 1},
		{"named int", native.OptVerbose, native.DebugHeaderIn, native.OK, 1},
		{"string to long", native.OptVerbose, "1", native.BadFunctionArgument, 0},
		{"nil to long", native.OptVerbose, nil, native.BadFunctionArgument, 0},
		{"off to long", native.OptVerbose, native.Off(1), native.BadFunctionArgument, 0},
		{"float", native.OptVerbose, 1.5, native.BadFunctionArgument, 0},
		{"struct", native.OptVerbose, struct{}{}, native.BadFunctionArgument, 0},
		{"uint overflow", native.OptVerbose, uint64(math.MaxUint64), native.BadFunctionArgument, 0},
		{"string", native.OptURL, "http://example.com/", native.OK, 1},
		{"nil object", native.OptURL, nil, native.OK, 1},
		{"long to object", native.OptURL, 3, native.BadFunctionArgument, 0},
		{"off", native.OptResumeFromLarge, native.Off(5), native.OK, 1},
		{"long to off", native.OptResumeFromLarge, int64(5), native.BadFunctionArgument, 0},
		{"list", native.OptHTTPHeader, NewList("X-A: 1"), native.OK, 1},
		{"nil list", native.OptHTTPHeader, (*List)(nil), native.OK, 1},
		{"func to object", native.OptHTTPHeader, func() {}, native.BadFunctionArgument, 0},
		{"func literal", native.OptWriteFunction, func(p []byte, _, _ int, _ any) int { return len(p) }, native.OK, 1},
		{"func wrong shape", native.OptWriteFunction, func() {}, native.BadFunctionArgument, 1},
		{"string to func", native.OptWriteFunction, "x", native.BadFunctionArgument, 0},
		{"nil func", native.OptWriteFunction, nil, native.OK, 1},
		{"unknown option", native.Option(9999), 1, native.UnknownOption, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEasy(t, WithLenientErrors())
			calls := countSetopt(t)

			if err := e.Set(tc.opt, tc.value); err != nil {
				t.Fatalf("exp nil error in lenient mode; got: %v", err)
			}
			if e.Code() != tc.expCode {
				t.Errorf("exp code %v; got: %v (%s)", tc.expCode, e.Code(), e.ErrorString())
			}
			if *calls != tc.expCalls {
				t.Errorf("exp %d engine calls; got: %d", tc.expCalls, *calls)
			}
		})
	}
}

func TestSet_StrictMismatch(t *testing.T) {
	e := newEasy(t)

	err := e.Set(native.OptVerbose, "yes")
	if !errors.Is(err, native.BadFunctionArgument) {
		t.Fatalf("exp BadFunctionArgument; got: %v", err)
	}

	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("exp *Error; got: %T", err)
	}
	if xerr.Op != "set" {
		t.Errorf("exp op set; got: %q", xerr.Op)
	}
	if !strings.HasPrefix(err.Error(), "A library function was given a bad argument") {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if e.OK() {
		t.Error("exp failed status to be recorded")
	}

	if err := e.Set(native.OptVerbose, false); err != nil {
		t.Fatalf("setting verbose: %v", err)
	}
	if !e.OK() || e.Err() != nil {
		t.Errorf("exp status cleared; got: %v", e.Err())
	}
}

func TestPerform_MalformedURL(t *testing.T) {
	e := newEasy(t)
	if err := e.Set(native.OptURL, "http://[::1"); err != nil {
		t.Fatalf("setting url: %v", err)
	}

	err := e.Perform()
	if !errors.Is(err, native.URLMalformat) {
		t.Fatalf("exp URLMalformat; got: %v", err)
	}
	if !strings.Contains(err.Error(), native.Strerror(native.URLMalformat)) {
		t.Errorf("exp message to carry %q; got: %q", native.Strerror(native.URLMalformat), err.Error())
	}

	e.SetStrict(false)
	if err := e.Perform(); err != nil {
		t.Fatalf("exp nil error in lenient mode; got: %v", err)
	}
	if e.OK() || e.Code() != native.URLMalformat {
		t.Errorf("exp recorded URLMalformat; got: %v", e.Code())
	}
	if !errors.Is(e.Err(), native.URLMalformat) {
		t.Errorf("exp Err to unwrap to URLMalformat; got: %v", e.Err())
	}
	if !strings.Contains(e.ErrorString(), native.Strerror(native.URLMalformat)) {
		t.Errorf("unexpected error string: %q", e.ErrorString())
	}
}

func TestPerform_Recursive(t *testing.T) {
	ts := testServer(t)
	e := newEasy(t)

	var inner error
	if err := e.Set(native.OptURL, ts.URL+"/hello"); err != nil {
		t.Fatalf("setting url: %v", err)
	}
	if err := e.OnWrite(func(p []byte, _ any) int {
		inner = e.Perform()
		return len(p)
	}, nil); err != nil {
		t.Fatalf("registering write: %v", err)
	}

	if err := e.Perform(); err != nil {
		t.Fatalf("performing: %v", err)
	}
	if !errors.Is(inner, native.RecursiveAPICall) {
		t.Errorf("exp RecursiveAPICall from callback; got: %v", inner)
	}
}

func TestGetInfo(t *testing.T) {
	ts := testServer(t)
	e := newEasy(t)

	if err := e.Set(native.OptURL, ts.URL+"/cookie"); err != nil {
		t.Fatalf("setting url: %v", err)
	}
	if err := e.Set(native.OptCookieFile, ""); err != nil {
		t.Fatalf("enabling cookies: %v", err)
	}
	if _, err := e.WriteTo(io.Discard); err != nil {
		t.Fatalf("performing: %v", err)
	}

	status, err := GetInfo(e, native.InfoResponseCode, int64(-1))
	if err != nil || status != http.StatusOK {
		t.Errorf("exp status 200; got: %d, %v", status, err)
	}

	eff, err := GetInfo(e, native.InfoEffectiveURL, "")
	if err != nil || eff != ts.URL+"/cookie" {
		t.Errorf("exp effective url %q; got: %q, %v", ts.URL+"/cookie", eff, err)
	}

	total, err := GetInfo(e, native.InfoTotalTime, -1.0)
	if err != nil || total < 0 {
		t.Errorf("exp total time; got: %v, %v", total, err)
	}

	size, err := GetInfo(e, native.InfoSizeDownloadT, native.Off(-1))
	if err != nil || size != 0 {
		t.Errorf("exp empty body; got: %d, %v", size, err)
	}

	cookies, err := GetInfo(e, native.InfoCookieList, []string(nil))
	if err != nil || len(cookies) != 1 || !strings.HasSuffix(cookies[0], "flavor\toat") {
		t.Errorf("exp one cookie; got: %q, %v", cookies, err)
	}
}

func TestGetInfo_TypeMismatch(t *testing.T) {
	e := newEasy(t)

	var calls int
	orig := getinfo
	t.Cleanup(func() { getinfo = orig })
	getinfo = func(s *native.Session, key native.Info, out any) native.Code {
		calls++
		return orig(s, key, out)
	}

	got, err := GetInfo(e, native.InfoResponseCode, "fallback")
	if got != "fallback" {
		t.Errorf("exp default value; got: %q", got)
	}
	if !errors.Is(err, native.BadFunctionArgument) {
		t.Errorf("exp BadFunctionArgument; got: %v", err)
	}
	if calls != 0 {
		t.Errorf("exp no engine calls; got: %d", calls)
	}

	e.SetStrict(false)
	n, err := GetInfo(e, native.InfoEffectiveURL, int64(7))
	if err != nil || n != 7 {
		t.Errorf("exp default without error; got: %d, %v", n, err)
	}
	if e.Code() != native.BadFunctionArgument {
		t.Errorf("exp recorded BadFunctionArgument; got: %v", e.Code())
	}
}

func TestMove(t *testing.T) {
	ts := testServer(t)
	src := newEasy(t)

	var got bytes.Buffer
	if err := src.OnWrite(func(p []byte, data any) int {
		n, _ := data.(*bytes.Buffer).Write(p)
		return n
	}, &got); err != nil {
		t.Fatalf("registering write: %v", err)
	}
	if err := src.Set(native.OptURL, ts.URL+"/hello"); err != nil {
		t.Fatalf("setting url: %v", err)
	}
	src.SetUserData("tag")
	id := src.ID()

	dst := src.Move()
	t.Cleanup(func() { _ = dst.Close() })

	if src.Get() != nil {
		t.Fatal("exp source to be empty after move")
	}
	if err := src.Perform(); !errors.Is(err, native.BadFunctionArgument) {
		t.Errorf("exp BadFunctionArgument from empty handle; got: %v", err)
	}
	if dst.ID() != id || dst.UserData() != "tag" {
		t.Errorf("exp identity to move; got: %v %v", dst.ID(), dst.UserData())
	}

	if err := dst.Perform(); err != nil {
		t.Fatalf("performing moved handle: %v", err)
	}
	if got.String() != "hello" {
		t.Errorf("exp callbacks to survive the move; got: %q", got.String())
	}
}

func TestMoveFrom(t *testing.T) {
	a := newEasy(t)
	b := newEasy(t)

	old := a.Get()
	moved := b.Get()
	a.MoveFrom(b)

	if !old.Closed() {
		t.Error("exp previous session to be released")
	}
	if a.Get() != moved || b.Get() != nil {
		t.Error("exp session to move from b to a")
	}

	a.MoveFrom(a)
	if a.Get() != moved {
		t.Error("exp self move to be a no-op")
	}
}

func TestReleaseThenClose(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}

	s := e.Release()
	if s == nil || e.Get() != nil {
		t.Fatal("exp release to hand over the session")
	}

	if err := e.Close(); err != nil {
		t.Errorf("closing empty handle: %v", err)
	}
	if s.Closed() {
		t.Fatal("exp released session to stay open")
	}

	s.Cleanup()
	if err := e.Close(); err != nil {
		t.Errorf("closing twice: %v", err)
	}
}

func TestClosedHandle_ErrEmpty(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("closing handle: %v", err)
	}

	err = e.Set(native.OptURL, "http://example.com")
	if !errors.Is(err, ErrEmpty) {
		t.Errorf("exp ErrEmpty; got: %v", err)
	}
	if !errors.Is(err, native.BadFunctionArgument) {
		t.Errorf("exp BadFunctionArgument; got: %v", err)
	}

	var xerr *Error
	if !errors.As(err, &xerr) || xerr.Op != "set" {
		t.Errorf("exp *Error for set; got: %#v", err)
	}
	if err := e.Perform(); !errors.Is(err, ErrEmpty) {
		t.Errorf("exp ErrEmpty from perform; got: %v", err)
	}
}

func TestReset(t *testing.T) {
	ts := testServer(t)
	e := newEasy(t)

	noop := func(p []byte, _ any) int { return len(p) }
	if err := e.OnWrite(noop, nil); err != nil {
		t.Fatalf("registering write: %v", err)
	}
	if err := e.OnDebug(func(native.DebugType, []byte, any) int { return 0 }, nil); err != nil {
		t.Fatalf("registering debug: %v", err)
	}
	if err := e.OnSeek(func(native.Off, int, any) int { return native.SeekFuncOK }, nil); err != nil {
		t.Fatalf("registering seek: %v", err)
	}

	if err := e.Reset(); err != nil {
		t.Fatalf("resetting: %v", err)
	}
	if e.st.write.ok || e.st.debug.ok {
		t.Error("exp write and debug slots to be cleared")
	}
	if e.Get().Option(native.OptWriteFunction) != nil {
		t.Error("exp engine options to be reset")
	}

	if err := e.Set(native.OptURL, ts.URL+"/ua"); err != nil {
		t.Fatalf("setting url: %v", err)
	}
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		t.Fatalf("performing: %v", err)
	}
	if buf.String() != DefaultUserAgent {
		t.Errorf("exp user agent after reset %q; got: %q", DefaultUserAgent, buf.String())
	}
}

func TestSendRecv_RequireConnectOnly(t *testing.T) {
	e := newEasy(t)

	n, err := e.Send([]byte("x"))
	if n != 0 || !errors.Is(err, native.UnsupportedProtocol) {
		t.Errorf("exp UnsupportedProtocol from send; got: %d, %v", n, err)
	}

	n, err = e.Recv(make([]byte, 8))
	if n != 0 || !errors.Is(err, native.UnsupportedProtocol) {
		t.Errorf("exp UnsupportedProtocol from recv; got: %d, %v", n, err)
	}
}

func TestEscape(t *testing.T) {
	e := newEasy(t)

	for _, s := range []string{"", "plain", "a b&c=d", "100%", "é/ü?", "\x00\xff"} {
		if got := e.Unescape(e.Escape(s)); got != s {
			t.Errorf("exp round trip of %q; got: %q", s, got)
		}
	}
	if diff := cmp.Diff("a%20b", e.Escape("a b")); diff != "" {
		t.Errorf("unexpected escape (-want +got):\n%s", diff)
	}
}

func TestClear_KeepsStatus(t *testing.T) {
	e := newEasy(t, WithLenientErrors())

	headers := NewList("X-Test: 1")
	t.Cleanup(func() { _ = headers.Close() })
	if err := e.Set(native.OptHTTPHeader, headers); err != nil {
		t.Fatalf("setting headers: %v", err)
	}

	_ = e.Set(native.OptVerbose, "yes")
	if e.OK() {
		t.Fatal("exp failed status to be recorded")
	}

	if err := e.Clear(native.OptHTTPHeader, native.OptWriteFunction); err != nil {
		t.Fatalf("clearing: %v", err)
	}
	if v := e.Get().Option(native.OptHTTPHeader); v != nil {
		t.Errorf("exp header option cleared; got: %v", v)
	}
	if e.Code() != native.BadFunctionArgument {
		t.Errorf("exp recorded status kept; got: %v", e.Code())
	}

	err := e.Clear(native.OptVerbose)
	if !errors.Is(err, native.BadFunctionArgument) {
		t.Errorf("exp BadFunctionArgument for long option; got: %v", err)
	}
}
