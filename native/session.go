package native

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go/http3"
)

// request kinds selected by the method options; the last one set wins.
const (
	reqGet = iota
	reqPost
	reqPostForm
	reqPut
	reqHead
)

// Session is a single transfer context. It is not safe for concurrent use;
// callbacks always run on the goroutine that called Perform, Send or Recv.
type Session struct {
	opts    map[Option]any
	httpReq int
	info    transferInfo
	detail  string
	closed  bool

	// callbackDepth counts active user callbacks so that re-entrant calls
	// can be refused.
	callbackDepth int
	paused        int

	transport      *http.Transport
	h3             *http3.Transport
	transportDirty bool

	cookies      *cookieStore
	cookiesFrom  string
	conn         net.Conn
	xfer         *transfer
	loop         atomic.Pointer[eventLoop]
	pendingClose pendingCloses
}

// pendingCloses holds connections an engine goroutine closed while a
// CloseSocketFunc was installed; the callback runs for them on the next
// call into the session.
type pendingCloses struct {
	mu    sync.Mutex
	conns []*hookedConn
}

func (p *pendingCloses) add(c *hookedConn) {
	p.mu.Lock()
	p.conns = append(p.conns, c)
	p.mu.Unlock()
}

func (p *pendingCloses) take() []*hookedConn {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.conns
	p.conns = nil
	return out
}

// initHook lets tests simulate an allocation failure.
var initHook = func() bool { return true }

// Init returns a new session with default options, or nil if one cannot be
// allocated. Process wide state is initialized on first use.
func Init() *Session {
	if !initHook() {
		return nil
	}
	ensureGlobal()

	return &Session{
		opts:           make(map[Option]any),
		info:           newTransferInfo(),
		transportDirty: true,
	}
}

// Closed reports whether Cleanup has run.
func (s *Session) Closed() bool { return s.closed }

// Setopt stores value for opt. Long options take int64, large options take
// Off, string options take string and callbacks take the matching func
// type. A nil value clears any pointer or function option.
func (s *Session) Setopt(opt Option, value any) Code {
	if s == nil || s.closed {
		return BadFunctionArgument
	}

	spec, ok := options[opt]
	if !ok {
		return UnknownOption
	}

	var stored any
	if value != nil {
		if stored, ok = spec.store(value); !ok {
			return BadFunctionArgument
		}
	} else if t := opt.Type(); t == TypeLong || t == TypeOffT {
		return BadFunctionArgument
	}

	if code := checkRange(opt, stored); code != OK {
		return code
	}

	if stored == nil {
		delete(s.opts, opt)
	} else {
		s.opts[opt] = stored
	}
	s.track(opt, stored)

	return OK
}

func checkRange(opt Option, v any) Code {
	n, ok := v.(int64)
	if !ok {
		if o, isOff := v.(Off); isOff {
			if o < -1 {
				return BadFunctionArgument
			}
		}
		return OK
	}

	switch opt {
	case OptTimeout, OptTimeoutMS, OptConnectTimeout, OptConnectTimeoutMS,
		OptLowSpeedLimit, OptLowSpeedTime, OptMaxFileSize, OptExpect100TimeoutMS,
		OptResumeFrom, OptMaxConnects:
		if n < 0 {
			return BadFunctionArgument
		}
	case OptMaxRedirs:
		if n < -1 {
			return BadFunctionArgument
		}
	case OptPort:
		if n < 0 || n > 65535 {
			return BadFunctionArgument
		}
	case OptSSLVerifyHost:
		if n < 0 || n > 2 {
			return BadFunctionArgument
		}
	case OptHTTPVersion:
		switch n {
		case HTTPVersionNone, HTTPVersion1_0, HTTPVersion1_1, HTTPVersion2_0,
			HTTPVersion2TLS, HTTPVersion2PriorKnowledge, HTTPVersion3, HTTPVersion3Only:
		default:
			return UnsupportedProtocol
		}
	case OptIPResolve:
		if n < IPResolveWhatever || n > IPResolveV6 {
			return BadFunctionArgument
		}
	case OptUseSSL:
		if n < UseSSLNone || n > UseSSLAll {
			return BadFunctionArgument
		}
	case OptBufferSize:
		if n < 0 {
			return BadFunctionArgument
		}
	}

	return OK
}

// track updates derived state after an option changes.
func (s *Session) track(opt Option, v any) {
	on := func() bool { n, _ := v.(int64); return n != 0 }

	switch opt {
	case OptHTTPGet:
		if on() {
			s.httpReq = reqGet
		}
	case OptPost:
		if on() {
			s.httpReq = reqPost
		} else {
			s.httpReq = reqGet
		}
	case OptPostFields:
		if v != nil {
			s.httpReq = reqPost
		}
	case OptHTTPPost:
		if v != nil {
			s.httpReq = reqPostForm
		}
	case OptUpload:
		if on() {
			s.httpReq = reqPut
		} else {
			s.httpReq = reqGet
		}
	case OptNoBody:
		if on() {
			s.httpReq = reqHead
		} else if s.httpReq == reqHead {
			s.httpReq = reqGet
		}
	case OptCookieFile:
		s.cookiesFrom = ""
	}

	if transportOptions[opt] {
		s.transportDirty = true
	}
}

// transportOptions change how connections are made, so the pooled
// transport is rebuilt after any of them is set.
var transportOptions = map[Option]bool{
	OptProxy: true, OptNoProxy: true, OptProxyUserPwd: true,
	OptSSLVerifyPeer: true, OptSSLVerifyHost: true, OptCAInfo: true,
	OptSSLCert: true, OptSSLKey: true, OptSSLVersion: true,
	OptSSLCtxFunction: true, OptSSLCtxData: true,
	OptHTTPVersion: true, OptResolve: true, OptUnixSocketPath: true,
	OptIPResolve: true, OptTCPNoDelay: true, OptTCPKeepAlive: true,
	OptConnectTimeout: true, OptConnectTimeoutMS: true,
	OptOpenSocketFunction: true, OptSockOptFunction: true, OptCloseSocketFunction: true,
	OptMaxConnects: true, OptExpect100TimeoutMS: true,
}

// Option returns the current value of opt, or its default when unset.
func (s *Session) Option(opt Option) any {
	if v, ok := s.opts[opt]; ok {
		return v
	}
	return defaults[opt]
}

func (s *Session) long(opt Option) int64 {
	n, _ := s.Option(opt).(int64)
	return n
}

func (s *Session) off(opt Option) Off {
	n, _ := s.Option(opt).(Off)
	return n
}

// sizeOpt returns the large variant of a size option when set, else the
// long one.
func (s *Session) sizeOpt(large, small Option) Off {
	if v, ok := s.opts[large]; ok {
		return v.(Off)
	}
	if v, ok := s.opts[small]; ok {
		return Off(v.(int64))
	}
	if d, ok := defaults[large].(Off); ok {
		return d
	}
	return 0
}

func (s *Session) str(opt Option) string {
	v, _ := s.Option(opt).(string)
	return v
}

func (s *Session) isSet(opt Option) bool {
	_, ok := s.opts[opt]
	return ok
}

func (s *Session) list(opt Option) *SList {
	l, _ := s.Option(opt).(*SList)
	return l
}

// Getinfo copies the value of key into out, which must point to a string,
// int64, float64, Off or *SList matching the key's type.
func (s *Session) Getinfo(key Info, out any) Code {
	if s == nil || s.closed || out == nil {
		return BadFunctionArgument
	}

	v, ok := s.info.value(s, key)
	if !ok {
		return UnknownOption
	}

	switch p := out.(type) {
	case *string:
		sv, ok := v.(string)
		if !ok {
			return BadFunctionArgument
		}
		*p = sv
	case *int64:
		nv, ok := v.(int64)
		if !ok {
			return BadFunctionArgument
		}
		*p = nv
	case *float64:
		fv, ok := v.(float64)
		if !ok {
			return BadFunctionArgument
		}
		*p = fv
	case *Off:
		ov, ok := v.(Off)
		if !ok {
			return BadFunctionArgument
		}
		*p = ov
	case **SList:
		lv, ok := v.(*SList)
		if !ok {
			return BadFunctionArgument
		}
		*p = lv
	default:
		return BadFunctionArgument
	}

	return OK
}

// RequestState is the request kind chosen by the method options (GET,
// POST, form POST, upload, NOBODY). The last method option set wins, so a
// caller that flips one of them temporarily saves the state first and puts
// it back with RestoreRequest.
type RequestState struct{ kind int }

// SaveRequest returns the current request kind.
func (s *Session) SaveRequest() RequestState {
	if s == nil {
		return RequestState{}
	}
	return RequestState{kind: s.httpReq}
}

// RestoreRequest reinstates a kind returned by SaveRequest without touching
// any option.
func (s *Session) RestoreRequest(st RequestState) {
	if s == nil || s.closed {
		return
	}
	s.httpReq = st.kind
}

// Reset restores every option to its default while keeping live
// connections, cookies and the pooled transport.
func (s *Session) Reset() {
	if s == nil || s.closed {
		return
	}

	s.opts = make(map[Option]any)
	s.httpReq = reqGet
	s.info = newTransferInfo()
	s.detail = ""
	s.paused = 0
	s.transportDirty = true
	s.cookiesFrom = ""
}

// Cleanup releases the session. The cookie jar is written, pooled
// connections are closed and the session becomes unusable. Cleaning up a
// session twice panics.
func (s *Session) Cleanup() {
	if s.closed {
		panic("native: double cleanup of session")
	}

	s.writeCookieJar()
	s.closeTransports()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.flushCloses()

	s.closed = true
	s.opts = nil
}

// Pause changes the pause state of the running transfer. It may be called
// from inside a callback.
func (s *Session) Pause(mask int) Code {
	if s == nil || s.closed {
		return BadFunctionArgument
	}
	if mask&^PauseAll != 0 {
		return BadFunctionArgument
	}

	s.paused = mask
	return OK
}

// LastError returns the detail message of the last failed operation.
func (s *Session) LastError() string { return s.detail }

// fail records the detail for code and mirrors it into the error buffer.
func (s *Session) fail(code Code, detail string) Code {
	if code == OK {
		return OK
	}
	if detail == "" {
		detail = Strerror(code)
	}
	s.detail = detail
	if buf, ok := s.opts[OptErrorBuffer].(*string); ok {
		*buf = detail
	}

	return code
}

// enter marks the start of a user callback.
func (s *Session) enter() func() {
	s.callbackDepth++
	return func() { s.callbackDepth-- }
}

func (s *Session) inCallback() bool { return s.callbackDepth > 0 }

// Escape percent-encodes s; see the package level Escape.
func (s *Session) Escape(str string) string { return Escape(str) }

// Unescape decodes s; see the package level Unescape.
func (s *Session) Unescape(str string) string { return Unescape(str) }

// transferInfo is reset at the start of every transfer.
type transferInfo struct {
	effectiveURL  string
	responseCode  int64
	connectCode   int64
	httpVersion   int64
	scheme        string
	contentType   string
	redirectURL   string
	redirectCount int64
	primaryIP     string
	primaryPort   int64
	localIP       string
	localPort     int64
	headerSize    int64
	requestSize   int64
	sizeUp        Off
	sizeDown      Off
	lengthDown    Off
	lengthUp      Off
	fileTime      int64
	condUnmet     int64
	numConnects   int64
	osErrno       int64
	verifyResult  int64

	start         time.Time
	nameLookup    time.Duration
	connect       time.Duration
	appConnect    time.Duration
	preTransfer   time.Duration
	startTransfer time.Duration
	redirect      time.Duration
	total         time.Duration
}

func newTransferInfo() transferInfo {
	return transferInfo{lengthDown: -1, lengthUp: -1, fileTime: -1}
}

func (i *transferInfo) value(s *Session, key Info) (any, bool) {
	switch key {
	case InfoEffectiveURL:
		return i.effectiveURL, true
	case InfoResponseCode:
		return i.responseCode, true
	case InfoHTTPConnectCode:
		return i.connectCode, true
	case InfoHTTPVersion:
		return i.httpVersion, true
	case InfoScheme:
		return i.scheme, true
	case InfoContentType:
		return i.contentType, true
	case InfoRedirectURL:
		return i.redirectURL, true
	case InfoRedirectCount:
		return i.redirectCount, true
	case InfoPrimaryIP:
		return i.primaryIP, true
	case InfoPrimaryPort:
		return i.primaryPort, true
	case InfoLocalIP:
		return i.localIP, true
	case InfoLocalPort:
		return i.localPort, true
	case InfoHeaderSize:
		return i.headerSize, true
	case InfoRequestSize:
		return i.requestSize, true
	case InfoSSLVerifyResult:
		return i.verifyResult, true
	case InfoFileTime:
		return i.fileTime, true
	case InfoFileTimeT:
		return Off(i.fileTime), true
	case InfoConditionUnmet:
		return i.condUnmet, true
	case InfoNumConnects:
		return i.numConnects, true
	case InfoOSErrno:
		return i.osErrno, true
	case InfoSizeUpload:
		return float64(i.sizeUp), true
	case InfoSizeUploadT:
		return i.sizeUp, true
	case InfoSizeDownload:
		return float64(i.sizeDown), true
	case InfoSizeDownloadT:
		return i.sizeDown, true
	case InfoSpeedDownload:
		return i.speed(i.sizeDown), true
	case InfoSpeedDownloadT:
		return Off(i.speed(i.sizeDown)), true
	case InfoSpeedUpload:
		return i.speed(i.sizeUp), true
	case InfoSpeedUploadT:
		return Off(i.speed(i.sizeUp)), true
	case InfoContentLengthDownload:
		return float64(i.lengthDown), true
	case InfoContentLengthDownT:
		return i.lengthDown, true
	case InfoContentLengthUpload:
		return float64(i.lengthUp), true
	case InfoContentLengthUploadT:
		return i.lengthUp, true
	case InfoTotalTime:
		return i.total.Seconds(), true
	case InfoTotalTimeT:
		return Off(i.total.Microseconds()), true
	case InfoNameLookupTime:
		return i.nameLookup.Seconds(), true
	case InfoConnectTime:
		return i.connect.Seconds(), true
	case InfoAppConnectTime:
		return i.appConnect.Seconds(), true
	case InfoPretransferTime:
		return i.preTransfer.Seconds(), true
	case InfoStartTransferTime:
		return i.startTransfer.Seconds(), true
	case InfoRedirectTime:
		return i.redirect.Seconds(), true
	case InfoCookieList:
		if s.cookies == nil {
			return (*SList)(nil), true
		}
		return slistFrom(s.cookies.netscape()), true
	}

	return nil, false
}

func (i *transferInfo) speed(n Off) float64 {
	if i.total <= 0 {
		return 0
	}
	return float64(n) / i.total.Seconds()
}
