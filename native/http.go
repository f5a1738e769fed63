package native

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/adamwoolhether/xfer/native/throttle"
)

// Bodies above this size, or of unknown size, are sent with
// "Expect: 100-continue" over HTTP/1.1.
const expectThreshold = 1 << 20

const defaultAcceptEncoding = "gzip, deflate, zstd"

// bodySource describes the request body. data is used for in-memory
// bodies; stream bodies are pulled through the read callback.
type bodySource struct {
	data   []byte
	stream bool
	size   int64
	ctype  string
}

// httpStep is one request of a possibly redirected transfer.
type httpStep struct {
	method  string
	u       *url.URL
	body    *bodySource
	referer string
	auth    bool
}

func (s *Session) requestBody() (*bodySource, error) {
	switch s.httpReq {
	case reqPost:
		size := int64(s.sizeOpt(OptPostFieldSizeLarge, OptPostFieldSize))
		fields, ok := s.opts[OptPostFields].(string)
		if !ok {
			return &bodySource{stream: true, size: size, ctype: "application/x-www-form-urlencoded"}, nil
		}
		data := []byte(fields)
		if size >= 0 && size < int64(len(data)) {
			data = data[:size]
		}
		return &bodySource{data: data, size: int64(len(data)), ctype: "application/x-www-form-urlencoded"}, nil

	case reqPostForm:
		var buf bytes.Buffer
		form, _ := s.opts[OptHTTPPost].(*HTTPPost)
		ctype, err := writeForm(form, &buf, formBoundary)
		if err != nil {
			return nil, failure(ReadError, "%v", err)
		}
		return &bodySource{data: buf.Bytes(), size: int64(buf.Len()), ctype: ctype}, nil

	case reqPut:
		return &bodySource{stream: true, size: int64(s.sizeOpt(OptInFileSizeLarge, OptInFileSize))}, nil
	}

	return nil, nil
}

func (s *Session) method() string {
	if m := s.str(OptCustomRequest); m != "" {
		return m
	}
	switch s.httpReq {
	case reqPost, reqPostForm:
		return http.MethodPost
	case reqPut:
		return http.MethodPut
	case reqHead:
		return http.MethodHead
	}
	return http.MethodGet
}

func (s *Session) performHTTP(x *transfer, u *url.URL) error {
	if err := s.ensureTransport(); err != nil {
		return err
	}
	if s.long(OptFreshConnect) != 0 {
		s.transport.CloseIdleConnections()
	}
	s.enableCookies()

	body, err := s.requestBody()
	if err != nil {
		return err
	}
	if body != nil {
		s.info.lengthUp = Off(body.size)
	}

	step := httpStep{method: s.method(), u: u, body: body, referer: s.str(OptReferer), auth: true}
	authHost := u.Host

	for {
		resp, err := s.exchange(x, step)
		if err != nil {
			return err
		}

		if err := s.responseHeaders(x, step.u, resp); err != nil {
			_ = resp.Body.Close()
			return err
		}

		next, follow, err := s.redirect(step, resp)
		if err != nil {
			_ = resp.Body.Close()
			return err
		}
		if !follow {
			return s.consume(x, step, resp)
		}

		_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)
		_ = resp.Body.Close()

		next.auth = next.u.Host == authHost || s.long(OptUnrestrictedAuth) != 0
		step = next
		s.info.effectiveURL = step.u.String()
		s.info.redirect = time.Since(s.info.start)
	}
}

// redirect decides whether resp is followed and builds the next request.
func (s *Session) redirect(step httpStep, resp *http.Response) (httpStep, bool, error) {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return step, false, nil
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return step, false, nil
	}
	target, err := step.u.Parse(loc)
	if err != nil {
		return step, false, nil
	}

	if s.long(OptFollowLocation) == 0 {
		s.info.redirectURL = target.String()
		return step, false, nil
	}

	if limit := s.long(OptMaxRedirs); limit != -1 && s.info.redirectCount >= limit {
		return step, false, failure(TooManyRedirects, "Maximum (%d) redirects followed", limit)
	}

	allowed := s.str(OptRedirProtocolsStr)
	if allowed == "" {
		allowed = "http,https,ftp,ftps"
	}
	if !protocolAllowed(allowed, target.Scheme) || (target.Scheme != "http" && target.Scheme != "https") {
		return step, false, failure(UnsupportedProtocol, "Protocol %q not supported or disabled", target.Scheme)
	}

	s.info.redirectCount++
	s.infof("Issue another request to this URL: '%s'", target)

	next := step
	next.u = target
	if s.long(OptAutoReferer) != 0 {
		next.referer = step.u.String()
	}

	postRedir := s.long(OptPostRedir)
	switch resp.StatusCode {
	case http.StatusMovedPermanently:
		if step.method == http.MethodPost && postRedir&Redirect301 == 0 {
			next.method, next.body = http.MethodGet, nil
		}
	case http.StatusFound:
		if step.method == http.MethodPost && postRedir&Redirect302 == 0 {
			next.method, next.body = http.MethodGet, nil
		}
	case http.StatusSeeOther:
		if step.method != http.MethodHead && postRedir&Redirect303 == 0 {
			next.method, next.body = http.MethodGet, nil
		}
	}

	if next.body != nil && next.body.stream {
		if err := s.rewind(); err != nil {
			return step, false, err
		}
	}

	return next, true, nil
}

// exchange sends one request and returns the response with headers read.
func (s *Session) exchange(x *transfer, step httpStep) (*http.Response, error) {
	line := fmt.Sprintf("%s %s HTTP/1.1", step.method, step.u.RequestURI())
	req, err := http.NewRequestWithContext(x.trace.withTrace(x.ctx, line), step.method, step.u.String(), nil)
	if err != nil {
		return nil, failure(URLMalformat, "%v", err)
	}

	if err := s.prepareRequest(req, step); err != nil {
		return nil, err
	}

	if s.h3 != nil {
		resp, err := s.roundTrip(x, s.h3, req, step.body)
		if err == nil || s.long(OptHTTPVersion) == HTTPVersion3Only {
			return resp, err
		}

		s.infof("HTTP/3 failed, falling back to TCP: %v", err)
		if step.body != nil && step.body.stream {
			if err := s.rewind(); err != nil {
				return nil, err
			}
		}
		req = req.Clone(req.Context())
	}

	return s.roundTrip(x, s.transport, req, step.body)
}

func (s *Session) prepareRequest(req *http.Request, step httpStep) error {
	h := req.Header
	h.Set("User-Agent", s.str(OptUserAgent))
	h.Set("Accept", "*/*")

	if step.referer != "" {
		h.Set("Referer", step.referer)
	}
	if enc, ok := s.opts[OptAcceptEncoding].(string); ok {
		if enc == "" {
			enc = defaultAcceptEncoding
		}
		h.Set("Accept-Encoding", enc)
	}

	var cookies []string
	if c := s.str(OptCookie); c != "" {
		cookies = append(cookies, c)
	}
	if s.cookies != nil {
		if c := s.cookies.header(step.u); c != "" {
			cookies = append(cookies, c)
		}
	}
	if len(cookies) > 0 {
		h.Set("Cookie", strings.Join(cookies, "; "))
	}

	if r := s.str(OptRange); r != "" {
		h.Set("Range", "bytes="+r)
	} else if from := s.sizeOpt(OptResumeFromLarge, OptResumeFrom); from > 0 {
		h.Set("Range", fmt.Sprintf("bytes=%d-", from))
	}

	if cond := s.long(OptTimeCondition); cond != TimeCondNone {
		at := time.Unix(int64(s.sizeOpt(OptTimeValueLarge, OptTimeValue)), 0).UTC().Format(http.TimeFormat)
		switch cond {
		case TimeCondIfModSince:
			h.Set("If-Modified-Since", at)
		case TimeCondIfUnmodSince:
			h.Set("If-Unmodified-Since", at)
		}
	}

	if v := s.long(OptHTTPVersion); v == HTTPVersion1_0 || s.long(OptForbidReuse) != 0 {
		req.Close = true
	}

	if b := step.body; b != nil {
		if b.ctype != "" {
			h.Set("Content-Type", b.ctype)
		}
		req.ContentLength = b.size
		if b.size < 0 || b.size > expectThreshold {
			h.Set("Expect", "100-continue")
		}
	}

	if err := s.applyHeaderList(req); err != nil {
		return err
	}

	if step.auth {
		return s.authorize(req, step)
	}
	return nil
}

// applyHeaderList merges the custom header option into req. "Name: value"
// replaces, "Name:" removes and "Name;" sends the header with no value.
func (s *Session) applyHeaderList(req *http.Request) error {
	for _, line := range s.list(OptHTTPHeader).Strings() {
		if name, ok := strings.CutSuffix(line, ";"); ok && !strings.Contains(name, ":") {
			req.Header[http.CanonicalHeaderKey(strings.TrimSpace(name))] = []string{""}
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)

		switch {
		case strings.EqualFold(name, "Transfer-Encoding"):
			if strings.EqualFold(value, "chunked") {
				req.ContentLength = -1
				req.TransferEncoding = []string{"chunked"}
			}
		case strings.EqualFold(name, "Host"):
			if value != "" {
				req.Host = value
			}
		case strings.EqualFold(name, "Content-Length"):
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				req.ContentLength = n
			}
		case value == "":
			if strings.EqualFold(name, "User-Agent") {
				req.Header.Set("User-Agent", "")
				continue
			}
			req.Header.Del(name)
		default:
			req.Header.Set(name, value)
		}
	}

	return nil
}

// roundResult is what a RoundTrip goroutine hands back.
type roundResult struct {
	resp *http.Response
	err  error
}

var errExchangeDone = errors.New("exchange finished")

// roundTrip runs rt on an engine goroutine while the calling goroutine
// feeds the request body from the read callback and serves posted hooks.
func (s *Session) roundTrip(x *transfer, rt http.RoundTripper, req *http.Request, body *bodySource) (*http.Response, error) {
	done := make(chan roundResult, 1)

	if body == nil || !body.stream {
		if body != nil && body.data != nil {
			var r io.Reader = bytes.NewReader(body.data)
			if bps := s.off(OptMaxSendSpeedLarge); bps > 0 {
				tr, err := throttle.NewReader(x.ctx, r, int64(bps), nil)
				if err != nil {
					return nil, failure(BadFunctionArgument, "%v", err)
				}
				r = tr
			}
			req.Body = io.NopCloser(r)
			s.debug(DebugDataOut, body.data)
			s.info.sizeUp = Off(len(body.data))
		}

		go func() {
			resp, err := rt.RoundTrip(req)
			done <- roundResult{resp, err}
		}()

		r, _ := await(x.loop, done, nil)
		s.afterExchange(x)
		return r.resp, r.err
	}

	pr, pw := io.Pipe()
	var reqBody io.Reader = pr
	if bps := s.off(OptMaxSendSpeedLarge); bps > 0 {
		tr, err := throttle.NewReader(x.ctx, pr, int64(bps), nil)
		if err != nil {
			return nil, failure(BadFunctionArgument, "%v", err)
		}
		reqBody = tr
	}
	req.Body = io.NopCloser(reqBody)
	if body.size == 0 {
		req.Body = http.NoBody
	}

	go func() {
		resp, err := rt.RoundTrip(req)
		pr.CloseWithError(errExchangeDone)
		done <- roundResult{resp, err}
	}()

	chunks := make(chan []byte)
	acks := make(chan error, 1)
	go func() {
		for b := range chunks {
			_, err := pw.Write(b)
			acks <- err
		}
	}()
	defer close(chunks)

	buf := make([]byte, s.bufferSize())
	var (
		readErr  error
		finished = body.size == 0
		inflight bool
	)
	for {
		if !finished && !inflight {
			n, err := s.readChunk(buf)
			switch {
			case errors.Is(err, io.EOF):
				finished = true
				_ = pw.Close()
			case err != nil:
				finished, readErr = true, err
				_ = pw.CloseWithError(err)
			default:
				chunks <- bytes.Clone(buf[:n])
				inflight = true
			}
		}

		select {
		case fn := <-x.loop.calls:
			fn()
		case err := <-acks:
			inflight = false
			if err != nil {
				finished = true
			}
		case r := <-done:
			s.afterExchange(x)
			if readErr != nil {
				if r.resp != nil {
					_ = r.resp.Body.Close()
				}
				return nil, readErr
			}
			return r.resp, r.err
		}
	}
}

func (s *Session) afterExchange(x *transfer) {
	s.settle(x.trace)
	for _, block := range x.trace.takeInformational() {
		for line := range strings.SplitAfterSeq(block, "\r\n") {
			if line != "" {
				_ = s.header(line)
			}
		}
	}
}

func statusLine(resp *http.Response) string {
	if resp.ProtoMajor >= 2 {
		return fmt.Sprintf("HTTP/%d %d \r\n", resp.ProtoMajor, resp.StatusCode)
	}
	return fmt.Sprintf("%s %s\r\n", resp.Proto, resp.Status)
}

func versionCode(resp *http.Response) int64 {
	switch resp.ProtoMajor {
	case 1:
		if resp.ProtoMinor == 0 {
			return HTTPVersion1_0
		}
		return HTTPVersion1_1
	case 2:
		return HTTPVersion2_0
	case 3:
		return HTTPVersion3
	}
	return HTTPVersionNone
}

// responseHeaders records response info and passes the header block to the
// header callback line by line.
func (s *Session) responseHeaders(x *transfer, u *url.URL, resp *http.Response) error {
	i := &s.info
	i.responseCode = int64(resp.StatusCode)
	i.httpVersion = versionCode(resp)
	i.contentType = resp.Header.Get("Content-Type")
	i.lengthDown = -1
	if resp.ContentLength >= 0 {
		i.lengthDown = Off(resp.ContentLength)
	}

	if s.long(OptFileTime) != 0 {
		if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
			i.fileTime = lm.Unix()
		}
	}

	if s.cookies != nil {
		s.cookies.receive(u, resp)
	}

	var b strings.Builder
	writeHeaderLines(&b, resp.Header)
	if err := s.header(statusLine(resp)); err != nil {
		return err
	}
	for line := range strings.SplitAfterSeq(b.String(), "\r\n") {
		if line == "" {
			continue
		}
		if err := s.header(line); err != nil {
			return err
		}
	}
	if err := s.header("\r\n"); err != nil {
		return err
	}

	return s.progress()
}

// consume checks the final response and streams its body to the write
// callback.
func (s *Session) consume(x *transfer, step httpStep, resp *http.Response) error {
	defer resp.Body.Close()

	code := resp.StatusCode
	if s.long(OptFailOnError) != 0 && code >= 400 {
		return failure(HTTPReturnedError, "The requested URL returned error: %d", code)
	}

	if s.conditionUnmet(resp) {
		s.info.condUnmet = 1
		return nil
	}

	if limit := s.sizeOpt(OptMaxFileSizeLarge, OptMaxFileSize); limit > 0 && resp.ContentLength > int64(limit) {
		return failure(FilesizeExceeded, "Maximum file size exceeded")
	}

	if from := s.sizeOpt(OptResumeFromLarge, OptResumeFrom); from > 0 && s.str(OptRange) == "" &&
		code == http.StatusOK && step.method == http.MethodGet {
		return failure(RangeError, "HTTP server doesn't seem to support byte ranges. Cannot resume.")
	}

	if step.method == http.MethodHead {
		return nil
	}

	var r io.Reader = resp.Body
	if bps := s.off(OptMaxRecvSpeedLarge); bps > 0 {
		tr, err := throttle.NewReader(x.ctx, r, int64(bps), nil)
		if err != nil {
			return failure(BadFunctionArgument, "%v", err)
		}
		r = tr
	}

	r, err := s.decoder(resp, r)
	if err != nil {
		return err
	}

	return s.drain(r)
}

// drain copies r into the write callback in buffer sized pieces.
func (s *Session) drain(r io.Reader) error {
	buf := make([]byte, s.bufferSize())
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := s.deliver(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) conditionUnmet(resp *http.Response) bool {
	cond := s.long(OptTimeCondition)
	if cond == TimeCondNone {
		return false
	}
	if resp.StatusCode == http.StatusNotModified || resp.StatusCode == http.StatusPreconditionFailed {
		return true
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}

	lm, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		return false
	}
	at := int64(s.sizeOpt(OptTimeValueLarge, OptTimeValue))
	if cond == TimeCondIfModSince {
		return lm.Unix() <= at
	}
	return lm.Unix() > at
}

// decoder undoes the Content-Encoding of resp when decoding is enabled.
func (s *Session) decoder(resp *http.Response, r io.Reader) (io.Reader, error) {
	if !s.isSet(OptAcceptEncoding) || s.long(OptHTTPContentDecoding) == 0 {
		return r, nil
	}

	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var (
		dec io.Reader
		err error
	)
	switch enc {
	case "", "identity":
		return r, nil
	case "gzip", "x-gzip":
		dec, err = gzip.NewReader(r)
	case "deflate":
		dec, err = zlib.NewReader(r)
	case "zstd":
		var zr *zstd.Decoder
		if zr, err = zstd.NewReader(r); err == nil {
			dec = zr.IOReadCloser()
		}
	default:
		return r, nil
	}

	// The header length counts encoded bytes; the decoded size is unknown.
	s.info.lengthDown = -1

	if err != nil {
		if errors.Is(err, io.EOF) {
			return bytes.NewReader(nil), nil
		}
		return nil, failure(BadContentEncoding, "Error while processing content unencoding: %v", err)
	}

	return decodeReader{dec}, nil
}

// decodeReader reports stream corruption as a content encoding failure.
type decodeReader struct{ r io.Reader }

func (d decodeReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err == nil || errors.Is(err, io.EOF) || isTimeout(err) {
		return n, err
	}

	var ce *codeError
	if errors.As(err, &ce) {
		return n, err
	}
	return n, failure(BadContentEncoding, "Error while processing content unencoding: %v", err)
}
