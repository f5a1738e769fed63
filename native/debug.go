package native

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/textproto"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// debug reports data to the debug callback, or to the stderr option when
// verbose output is on without one.
func (s *Session) debug(typ DebugType, data []byte) {
	if s.long(OptVerbose) == 0 {
		return
	}

	if fn, ok := s.opts[OptDebugFunction].(DebugFunc); ok {
		leave := s.enter()
		fn(s, typ, data, s.Option(OptDebugData))
		leave()
		return
	}

	var prefix string
	switch typ {
	case DebugText:
		prefix = "* "
	case DebugHeaderIn:
		prefix = "< "
	case DebugHeaderOut:
		prefix = "> "
	default:
		return
	}

	w, ok := s.Option(OptStderr).(io.Writer)
	if !ok {
		w = os.Stderr
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fmt.Fprintf(w, "%s%s\n", prefix, bytes.TrimRight(sc.Bytes(), "\r"))
	}
}

func (s *Session) infof(format string, args ...any) {
	if s.long(OptVerbose) == 0 {
		return
	}
	s.debug(DebugText, []byte(fmt.Sprintf(format, args...)+"\n"))
}

type debugMsg struct {
	typ  DebugType
	data []byte
}

// traceTimes collects connection events from engine goroutines. Nothing in
// here calls user code; queued debug messages are flushed by the Perform
// goroutine.
type traceTimes struct {
	mu sync.Mutex

	dnsDone      time.Time
	connectDone  time.Time
	tlsDone      time.Time
	gotConn      time.Time
	wroteRequest time.Time
	firstByte    time.Time

	remote    net.Addr
	local     net.Addr
	newConns  int
	reqHeader bytes.Buffer
	sentBytes int
	queued    []debugMsg

	// informational holds the header blocks of 1xx responses in arrival
	// order.
	informational []string
}

func (t *traceTimes) queue(typ DebugType, format string, args ...any) {
	t.mu.Lock()
	t.queued = append(t.queued, debugMsg{typ: typ, data: []byte(fmt.Sprintf(format, args...))})
	t.mu.Unlock()
}

func (t *traceTimes) mark(at *time.Time) {
	t.mu.Lock()
	*at = time.Now()
	t.mu.Unlock()
}

// clientTrace builds the hooks that feed t. requestLine is the first line
// of the outgoing request used for header debug output.
func (t *traceTimes) clientTrace(requestLine string) *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			t.queue(DebugText, "Resolving %s\n", info.Host)
		},
		DNSDone: func(httptrace.DNSDoneInfo) { t.mark(&t.dnsDone) },
		ConnectStart: func(network, addr string) {
			t.queue(DebugText, "Trying %s...\n", addr)
		},
		ConnectDone: func(network, addr string, err error) {
			if err != nil {
				return
			}
			t.mark(&t.connectDone)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			t.mark(&t.tlsDone)
			t.queue(DebugText, "SSL connection using %s / %s\n",
				tls.VersionName(state.Version), tls.CipherSuiteName(state.CipherSuite))
		},
		GotConn: func(info httptrace.GotConnInfo) {
			t.mu.Lock()
			defer t.mu.Unlock()

			t.gotConn = time.Now()
			t.remote = info.Conn.RemoteAddr()
			t.local = info.Conn.LocalAddr()
			msg := fmt.Sprintf("Connected to %s\n", t.remote)
			if info.Reused {
				msg = fmt.Sprintf("Re-using existing connection with %s\n", t.remote)
			} else {
				t.newConns++
			}
			t.queued = append(t.queued, debugMsg{typ: DebugText, data: []byte(msg)})
			t.reqHeader.Reset()
			t.reqHeader.WriteString(requestLine + "\r\n")
		},
		WroteHeaderField: func(key string, value []string) {
			t.mu.Lock()
			defer t.mu.Unlock()

			for _, v := range value {
				fmt.Fprintf(&t.reqHeader, "%s: %s\r\n", key, v)
			}
		},
		WroteHeaders: func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			t.reqHeader.WriteString("\r\n")
			t.sentBytes += t.reqHeader.Len()
			t.queued = append(t.queued, debugMsg{typ: DebugHeaderOut, data: bytes.Clone(t.reqHeader.Bytes())})
		},
		Got1xxResponse: func(code int, header textproto.MIMEHeader) error {
			var b strings.Builder
			fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
			writeHeaderLines(&b, http.Header(header))
			b.WriteString("\r\n")

			t.mu.Lock()
			t.informational = append(t.informational, b.String())
			t.mu.Unlock()
			return nil
		},
		WroteRequest:         func(httptrace.WroteRequestInfo) { t.mark(&t.wroteRequest) },
		GotFirstResponseByte: func() { t.mark(&t.firstByte) },
	}
}

// withTrace attaches t to ctx.
func (t *traceTimes) withTrace(ctx context.Context, requestLine string) context.Context {
	return httptrace.WithClientTrace(ctx, t.clientTrace(requestLine))
}

// settle drains queued debug output and copies timings into the session.
func (s *Session) settle(t *traceTimes) {
	t.mu.Lock()
	queued := t.queued
	t.queued = nil

	since := func(at time.Time) time.Duration {
		if at.IsZero() {
			return 0
		}
		return at.Sub(s.info.start)
	}

	i := &s.info
	i.nameLookup = since(t.dnsDone)
	i.connect = max(since(t.connectDone), i.nameLookup)
	i.appConnect = since(t.tlsDone)
	i.preTransfer = max(since(t.wroteRequest), since(t.gotConn))
	i.startTransfer = since(t.firstByte)
	i.numConnects = int64(t.newConns)
	i.requestSize += int64(t.sentBytes)
	t.sentBytes = 0
	remote, local := t.remote, t.local
	t.mu.Unlock()

	if remote != nil {
		i.primaryIP, i.primaryPort = splitAddr(remote)
	}
	if local != nil {
		i.localIP, i.localPort = splitAddr(local)
	}

	for _, m := range queued {
		s.debug(m.typ, m.data)
	}
}

func splitAddr(a net.Addr) (string, int64) {
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return a.String(), 0
	}
	n, _ := strconv.ParseInt(port, 10, 64)
	return host, n
}

// takeInformational returns and clears the queued 1xx header blocks.
func (t *traceTimes) takeInformational() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.informational
	t.informational = nil
	return out
}

// writeHeaderLines writes h with sorted names, one "Name: value" line per
// value.
func writeHeaderLines(b *strings.Builder, h http.Header) {
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[name] {
			fmt.Fprintf(b, "%s: %s\r\n", name, v)
		}
	}
}
