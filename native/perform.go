package native

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// codeError carries a status and its detail message through the Go error
// paths of the protocol libraries.
type codeError struct {
	code   Code
	detail string
}

func (e *codeError) Error() string { return e.detail }

func failure(code Code, format string, args ...any) error {
	return &codeError{code: code, detail: fmt.Sprintf(format, args...)}
}

// transfer is the per Perform state shared with engine goroutines.
type transfer struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	loop   *eventLoop
	moved  atomic.Int64
	trace  *traceTimes
}

// Perform runs the configured transfer and blocks until it completes.
func (s *Session) Perform() Code {
	return s.PerformContext(context.Background())
}

// PerformContext is Perform bounded by ctx in addition to the timeout
// options.
func (s *Session) PerformContext(ctx context.Context) Code {
	if s == nil || s.closed {
		return BadFunctionArgument
	}
	if s.inCallback() {
		return s.fail(RecursiveAPICall, "")
	}

	s.flushCloses()
	s.info = newTransferInfo()
	s.info.start = time.Now()
	s.detail = ""
	s.paused = 0

	x := s.begin(ctx)
	defer func() {
		x.loop.stop()
		x.cancel(nil)
		s.loop.Store(nil)
		s.xfer = nil
		s.info.total = time.Since(s.info.start)
		s.flushCloses()
	}()

	err := s.run(x)
	if err == nil {
		return OK
	}

	code, detail := s.classify(err)
	return s.fail(code, detail)
}

func (s *Session) begin(parent context.Context) *transfer {
	ctx, cancel := context.WithCancelCause(parent)
	if d := s.timeout(OptTimeoutMS, OptTimeout); d > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, d)
		inner := cancel
		cancel = func(cause error) { stop(); inner(cause) }
	}

	x := &transfer{
		ctx:    ctx,
		cancel: cancel,
		loop:   newEventLoop(),
		trace:  &traceTimes{},
	}
	s.xfer = x
	s.loop.Store(x.loop)

	if limit, secs := s.long(OptLowSpeedLimit), s.long(OptLowSpeedTime); limit > 0 && secs > 0 {
		go watchSpeed(x, limit, secs)
	}

	return x
}

func (s *Session) run(x *transfer) error {
	u, err := s.targetURL()
	if err != nil {
		return err
	}
	s.info.effectiveURL = u.String()
	s.info.scheme = strings.ToUpper(u.Scheme)

	if s.long(OptConnectOnly) != 0 {
		return s.performConnect(x, u)
	}

	switch u.Scheme {
	case "http", "https":
		return s.performHTTP(x, u)
	case "ftp", "ftps":
		return s.performFTP(x, u)
	case "file":
		return s.performFile(x, u)
	}

	return failure(UnsupportedProtocol, "Protocol %q not supported", u.Scheme)
}

// timeout returns the duration configured by a millisecond option, falling
// back to its seconds variant.
func (s *Session) timeout(ms, secs Option) time.Duration {
	if n := s.long(ms); n > 0 && s.isSet(ms) {
		return time.Duration(n) * time.Millisecond
	}
	if n := s.long(secs); n > 0 {
		return time.Duration(n) * time.Second
	}
	return 0
}

// watchSpeed aborts the transfer when fewer than limit bytes per second
// moved over a window of secs seconds. It never calls user code.
func watchSpeed(x *transfer, limit, secs int64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	window := make([]int64, 0, secs+1)
	for {
		select {
		case <-x.ctx.Done():
			return
		case <-t.C:
		}

		window = append(window, x.moved.Load())
		if int64(len(window)) <= secs {
			continue
		}
		window = window[1:]

		if window[len(window)-1]-window[0] < limit*secs {
			x.cancel(failure(OperationTimedout,
				"Operation too slow. Less than %d bytes/sec transferred the last %d seconds", limit, secs))
			return
		}
	}
}

var knownSchemes = map[string]bool{"http": true, "https": true, "ftp": true, "ftps": true, "file": true}

// targetURL parses the URL option and applies the scheme and port options.
func (s *Session) targetURL() (*url.URL, error) {
	raw := strings.TrimSpace(s.str(OptURL))
	if raw == "" {
		return nil, failure(URLMalformat, "No URL set")
	}

	if !strings.Contains(raw, "://") {
		scheme := strings.ToLower(s.str(OptDefaultProtocol))
		if scheme == "" {
			scheme = "http"
			if strings.HasPrefix(strings.ToLower(raw), "ftp.") {
				scheme = "ftp"
			}
		}
		raw = scheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, failure(URLMalformat, "URL rejected: Malformed input to a URL function")
	}
	u.Scheme = strings.ToLower(u.Scheme)

	if !knownSchemes[u.Scheme] {
		return nil, failure(UnsupportedProtocol, "Protocol %q not supported", u.Scheme)
	}
	if !protocolAllowed(s.str(OptProtocolsStr), u.Scheme) {
		return nil, failure(UnsupportedProtocol, "Protocol %q disabled", u.Scheme)
	}
	if u.Scheme != "file" && u.Hostname() == "" {
		return nil, failure(URLMalformat, "No host part in the URL")
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err != nil || n > 65535 {
			return nil, failure(URLMalformat, "Port number was not a decimal number between 0 and 65535")
		}
	}

	if port := s.long(OptPort); port > 0 && u.Scheme != "file" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.FormatInt(port, 10))
	}

	return u, nil
}

// protocolAllowed checks scheme against a comma separated allow list, where
// "all" or an empty list allows everything.
func protocolAllowed(list, scheme string) bool {
	if list == "" {
		return true
	}
	for p := range strings.SplitSeq(list, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "all" || p == scheme {
			return true
		}
	}
	return false
}

// classify maps an error from any protocol path to a status and detail.
func (s *Session) classify(err error) (Code, string) {
	if x := s.xfer; x != nil {
		if cause := context.Cause(x.ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			var ce *codeError
			if errors.As(cause, &ce) {
				return ce.code, ce.detail
			}
		}
	}

	var ce *codeError
	if errors.As(err, &ce) {
		return ce.code, ce.detail
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		s.info.osErrno = int64(errno)
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return OperationTimedout, fmt.Sprintf("Operation timed out after %d milliseconds with %d bytes received",
			time.Since(s.info.start).Milliseconds(), s.info.sizeDown)
	}
	if errors.Is(err, context.Canceled) {
		return AbortedByCallback, "Transfer canceled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if s.str(OptProxy) != "" {
			return CouldntResolveProxy, "Could not resolve proxy: " + dnsErr.Name
		}
		return CouldntResolveHost, "Could not resolve host: " + dnsErr.Name
	}

	var (
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		verifyErr   *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &unknownAuth), errors.As(err, &hostErr),
		errors.As(err, &invalidErr), errors.As(err, &verifyErr):
		s.info.verifyResult = 1
		return PeerFailedVerification, "SSL certificate problem: " + err.Error()
	}

	var (
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
	)
	if errors.As(err, &recordErr) || errors.As(err, &alertErr) {
		return SSLConnectError, err.Error()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return CouldntConnect, "Failed to connect: " + opErr.Err.Error()
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return PartialFile, "transfer closed with outstanding read data remaining"
	}

	return RecvError, err.Error()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// progress reports transfer counters to the progress callbacks. A non-zero
// return from either aborts the transfer.
func (s *Session) progress() error {
	if s.long(OptNoProgress) != 0 {
		return nil
	}

	i := &s.info
	dlTotal, ulTotal := max(i.lengthDown, 0), max(i.lengthUp, 0)
	data := s.Option(OptXferInfoData)

	var rc int
	switch {
	case s.opts[OptXferInfoFunction] != nil:
		fn := s.opts[OptXferInfoFunction].(XferInfoFunc)
		leave := s.enter()
		rc = fn(data, dlTotal, i.sizeDown, ulTotal, i.sizeUp)
		leave()
	case s.opts[OptProgressFunction] != nil:
		fn := s.opts[OptProgressFunction].(ProgressFunc)
		leave := s.enter()
		rc = fn(data, float64(dlTotal), float64(i.sizeDown), float64(ulTotal), float64(i.sizeUp))
		leave()
	default:
		return nil
	}

	if rc != 0 && rc != progressContinue {
		return failure(AbortedByCallback, "Callback aborted")
	}
	return nil
}

// progressContinue lets a progress callback continue without an opinion.
const progressContinue = 0x10000001

// waitUnpause blocks while bit is paused, reporting progress so a callback
// can resume the transfer.
func (s *Session) waitUnpause(bit int) error {
	var err error
	tick := func() bool {
		if err = s.progress(); err != nil {
			return false
		}
		return s.paused&bit != 0
	}
	if !tick() {
		return err
	}

	x := s.xfer
	if _, done := await(x.loop, x.ctx.Done(), tick); done {
		return context.Cause(x.ctx)
	}
	return err
}

func (s *Session) callWrite(data []byte) int {
	if fn, ok := s.opts[OptWriteFunction].(WriteFunc); ok {
		leave := s.enter()
		defer leave()
		return fn(data, 1, len(data), s.Option(OptWriteData))
	}

	w, ok := s.Option(OptWriteData).(io.Writer)
	if !ok {
		w = os.Stdout
	}
	n, _ := w.Write(data)
	return n
}

// deliver hands received body bytes to the write callback.
func (s *Session) deliver(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if limit := s.sizeOpt(OptMaxFileSizeLarge, OptMaxFileSize); limit > 0 && s.info.sizeDown+Off(len(data)) > limit {
		return failure(FilesizeExceeded, "Exceeded the maximum allowed file size (%d)", limit)
	}

	s.debug(DebugDataIn, data)

	for {
		rc := s.callWrite(data)
		if rc == WriteFuncPause {
			s.paused |= PauseRecv
			if err := s.waitUnpause(PauseRecv); err != nil {
				return err
			}
			continue
		}
		if rc != len(data) {
			return failure(WriteError, "Failure writing output to destination, passed %d returned %d", len(data), rc)
		}
		break
	}

	s.info.sizeDown += Off(len(data))
	if s.xfer != nil {
		s.xfer.moved.Add(int64(len(data)))
	}

	return s.progress()
}

// header hands one received header line, including its line ending, to
// the header callback.
func (s *Session) header(line string) error {
	s.info.headerSize += int64(len(line))
	s.debug(DebugHeaderIn, []byte(line))

	data := []byte(line)
	if fn, ok := s.opts[OptHeaderFunction].(WriteFunc); ok {
		for {
			leave := s.enter()
			rc := fn(data, 1, len(data), s.Option(OptHeaderData))
			leave()

			if rc == WriteFuncPause {
				s.paused |= PauseRecv
				if err := s.waitUnpause(PauseRecv); err != nil {
					return err
				}
				continue
			}
			if rc != len(data) {
				return failure(WriteError, "Failed writing header")
			}
			break
		}
	} else if w, ok := s.Option(OptHeaderData).(io.Writer); ok {
		if _, err := w.Write(data); err != nil {
			return failure(WriteError, "Failed writing header")
		}
	}

	if s.long(OptHeader) != 0 {
		if rc := s.callWrite(data); rc != len(data) {
			return failure(WriteError, "Failed writing header")
		}
	}

	return nil
}

func (s *Session) callRead(buf []byte) int {
	if fn, ok := s.opts[OptReadFunction].(ReadFunc); ok {
		leave := s.enter()
		defer leave()
		return fn(buf, 1, len(buf), s.Option(OptReadData))
	}

	r, ok := s.Option(OptReadData).(io.Reader)
	if !ok {
		r = os.Stdin
	}
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return ReadFuncAbort
	}
	return n
}

// readChunk pulls the next piece of upload data from the read callback.
func (s *Session) readChunk(buf []byte) (int, error) {
	for {
		n := s.callRead(buf)
		switch {
		case n == ReadFuncAbort:
			return 0, failure(AbortedByCallback, "operation aborted by callback")
		case n == ReadFuncPause:
			s.paused |= PauseSend
			if err := s.waitUnpause(PauseSend); err != nil {
				return 0, err
			}
			continue
		case n < 0 || n > len(buf):
			return 0, failure(ReadError, "read function returned funny value")
		case n == 0:
			return 0, io.EOF
		}

		s.debug(DebugDataOut, buf[:n])
		s.info.sizeUp += Off(n)
		if s.xfer != nil {
			s.xfer.moved.Add(int64(n))
		}
		if err := s.progress(); err != nil {
			return 0, err
		}

		return n, nil
	}
}

// uploadReader adapts the read callback to io.Reader for protocol code that
// runs on the Perform goroutine.
type uploadReader struct{ s *Session }

func (r uploadReader) Read(p []byte) (int, error) { return r.s.readChunk(p) }

func (s *Session) bufferSize() int {
	n := s.long(OptBufferSize)
	if n <= 0 {
		return 16 << 10
	}
	return int(min(max(n, 1024), 10<<20))
}

// rewind restarts the upload source before data is sent again.
func (s *Session) rewind() error {
	if fn, ok := s.opts[OptSeekFunction].(SeekFunc); ok {
		leave := s.enter()
		rc := fn(s.Option(OptSeekData), 0, io.SeekStart)
		leave()

		switch rc {
		case SeekFuncOK:
			s.info.sizeUp = 0
			return nil
		case SeekFuncCantSeek:
		default:
			return failure(SendFailRewind, "seek callback returned error %d", rc)
		}
	}

	if fn, ok := s.opts[OptIoctlFunction].(IoctlFunc); ok {
		leave := s.enter()
		rc := fn(s, IOCmdRestartRead, s.Option(OptIoctlData))
		leave()

		if rc != IOEOK {
			return failure(SendFailRewind, "ioctl callback returned error %d", rc)
		}
		s.info.sizeUp = 0
		return nil
	}

	if _, custom := s.opts[OptReadFunction]; !custom {
		if sk, ok := s.Option(OptReadData).(io.Seeker); ok {
			if _, err := sk.Seek(0, io.SeekStart); err == nil {
				s.info.sizeUp = 0
				return nil
			}
		}
	}

	return failure(SendFailRewind, "necessary data rewind wasn't possible")
}
