package native

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

const defaultConnectTimeout = 300 * time.Second

// tlsConfig builds the client TLS configuration from the SSL options and
// runs the SSL context callback over it.
func (s *Session) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	switch s.long(OptSSLVersion) & 0xffff {
	case SSLVersionTLSv1, SSLVersionTLSv1_0:
		cfg.MinVersion = tls.VersionTLS10
	case SSLVersionTLSv1_1:
		cfg.MinVersion = tls.VersionTLS11
	case SSLVersionTLSv1_2:
		cfg.MinVersion = tls.VersionTLS12
	case SSLVersionTLSv1_3:
		cfg.MinVersion = tls.VersionTLS13
	}

	if path := s.str(OptCAInfo); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, failure(SSLCACertBadFile, "error setting certificate file: %s", path)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, failure(SSLCACertBadFile, "error setting certificate file: %s", path)
		}
		cfg.RootCAs = pool
	}

	if certFile := s.str(OptSSLCert); certFile != "" {
		keyFile := s.str(OptSSLKey)
		if keyFile == "" {
			keyFile = certFile
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, failure(SSLCertProblem, "could not load PEM client certificate from %s: %v", certFile, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	verifyPeer := s.long(OptSSLVerifyPeer) != 0
	verifyHost := s.long(OptSSLVerifyHost) != 0
	switch {
	case !verifyPeer:
		cfg.InsecureSkipVerify = true
	case !verifyHost:
		// Verify the chain but accept any host name.
		roots := cfg.RootCAs
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return errors.New("no peer certificate")
			}
			inter := x509.NewCertPool()
			for _, c := range cs.PeerCertificates[1:] {
				inter.AddCert(c)
			}
			_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{Roots: roots, Intermediates: inter})
			return err
		}
	}

	if fn, ok := s.opts[OptSSLCtxFunction].(SSLCtxFunc); ok {
		leave := s.enter()
		code := fn(s, cfg, s.Option(OptSSLCtxData))
		leave()
		if code != OK {
			return nil, failure(code, "SSL context callback failed")
		}
	}

	return cfg, nil
}

// proxyFunc selects the proxy for a request. An unset proxy option falls
// back to the environment, an empty one disables proxying.
func (s *Session) proxyFunc() (func(*http.Request) (*url.URL, error), error) {
	raw, set := s.opts[OptProxy].(string)
	if !set {
		return http.ProxyFromEnvironment, nil
	}
	if raw == "" {
		return nil, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	pu, err := url.Parse(raw)
	if err != nil || pu.Host == "" {
		return nil, failure(CouldntResolveProxy, "Unsupported proxy syntax in '%s'", raw)
	}
	if up := s.str(OptProxyUserPwd); up != "" {
		user, pass, _ := strings.Cut(up, ":")
		pu.User = url.UserPassword(Unescape(user), Unescape(pass))
	}

	noProxy := s.str(OptNoProxy)
	return func(r *http.Request) (*url.URL, error) {
		if bypassProxy(noProxy, r.URL.Hostname()) {
			return nil, nil
		}
		return pu, nil
	}, nil
}

func bypassProxy(list, host string) bool {
	host = strings.ToLower(host)
	for entry := range strings.SplitSeq(list, ",") {
		entry = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(entry), "."))
		switch {
		case entry == "":
		case entry == "*":
			return true
		case host == entry, strings.HasSuffix(host, "."+entry):
			return true
		}
	}
	return false
}

// socketHooks is a snapshot of the connection options taken on the Perform
// goroutine so that dialer goroutines never read the option map.
type socketHooks struct {
	open        OpenSocketFunc
	openData    any
	sockopt     SockOptFunc
	sockoptData any
	closeFn     CloseSocketFunc
	closeData   any

	resolve   map[string][]string
	unix      string
	network   string
	timeout   time.Duration
	noDelay   bool
	keepAlive bool
}

func (s *Session) socketHooks() socketHooks {
	h := socketHooks{
		openData:    s.Option(OptOpenSocketData),
		sockoptData: s.Option(OptSockOptData),
		closeData:   s.Option(OptCloseSocketData),
		resolve:     parseResolve(s.list(OptResolve)),
		unix:        s.str(OptUnixSocketPath),
		network:     "tcp",
		timeout:     s.timeout(OptConnectTimeoutMS, OptConnectTimeout),
		noDelay:     s.long(OptTCPNoDelay) != 0,
		keepAlive:   s.long(OptTCPKeepAlive) != 0,
	}
	h.open, _ = s.opts[OptOpenSocketFunction].(OpenSocketFunc)
	h.sockopt, _ = s.opts[OptSockOptFunction].(SockOptFunc)
	h.closeFn, _ = s.opts[OptCloseSocketFunction].(CloseSocketFunc)

	switch s.long(OptIPResolve) {
	case IPResolveV4:
		h.network = "tcp4"
	case IPResolveV6:
		h.network = "tcp6"
	}
	if h.timeout <= 0 {
		h.timeout = defaultConnectTimeout
	}

	return h
}

// parseResolve reads "host:port:addr[,addr]" entries. Entries starting
// with '-' remove an earlier mapping.
func parseResolve(l *SList) map[string][]string {
	m := make(map[string][]string)
	for _, e := range l.Strings() {
		if rest, ok := strings.CutPrefix(e, "-"); ok {
			delete(m, strings.ToLower(rest))
			continue
		}
		e = strings.TrimPrefix(e, "+")

		host, rest, ok := strings.Cut(e, ":")
		if !ok {
			continue
		}
		port, addrs, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}

		var list []string
		for a := range strings.SplitSeq(addrs, ",") {
			list = append(list, strings.Trim(strings.TrimSpace(a), "[]"))
		}
		m[strings.ToLower(net.JoinHostPort(host, port))] = list
	}
	return m
}

// dialer connects sockets for the protocol libraries. When direct is false
// the dial runs on an engine goroutine and user hooks are posted to the
// Perform goroutine.
type dialer struct {
	s      *Session
	hooks  socketHooks
	direct bool
}

func (d *dialer) run(fn func()) bool {
	if d.direct {
		fn()
		return true
	}
	return d.s.loop.Load().post(fn)
}

func (d *dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	h := d.hooks
	targets := []string{addr}

	switch {
	case h.unix != "":
		network, targets = "unix", []string{h.unix}
	case strings.HasPrefix(network, "tcp"):
		network = h.network
		if addrs, ok := h.resolve[strings.ToLower(addr)]; ok {
			_, port, _ := net.SplitHostPort(addr)
			targets = targets[:0]
			for _, a := range addrs {
				targets = append(targets, net.JoinHostPort(a, port))
			}
		}
	}

	var (
		conn net.Conn
		err  error
	)
	for _, target := range targets {
		if conn, err = d.connect(ctx, network, target); err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(h.noDelay)
		if h.keepAlive {
			_ = tcp.SetKeepAlive(true)
		}
	}

	if h.sockopt != nil {
		var rc int
		if !d.run(func() { rc = h.sockopt(h.sockoptData, conn, SockTypeIPCXN) }) || rc == SockOptError {
			_ = conn.Close()
			return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("setsockopt callback returned error")}
		}
	}

	if h.closeFn == nil {
		return conn, nil
	}

	return &hookedConn{Conn: conn, s: d.s, fn: h.closeFn, data: h.closeData}, nil
}

func (d *dialer) connect(ctx context.Context, network, addr string) (net.Conn, error) {
	h := d.hooks
	if h.open == nil {
		nd := net.Dialer{Timeout: h.timeout}
		if !h.keepAlive {
			nd.KeepAlive = -1
		}
		return nd.DialContext(ctx, network, addr)
	}

	var conn net.Conn
	ok := d.run(func() {
		conn = h.open(h.openData, SockTypeIPCXN, &SockAddr{Network: network, Address: addr})
	})
	if !ok || conn == nil {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("opensocket callback returned bad socket")}
	}

	return conn, nil
}

// hookedConn defers closing to the close socket callback, which runs on
// the Perform goroutine the next time the session is used.
type hookedConn struct {
	net.Conn
	s    *Session
	fn   CloseSocketFunc
	data any
	once sync.Once
}

func (c *hookedConn) Close() error {
	c.once.Do(func() { c.s.pendingClose.add(c) })
	return nil
}

func (s *Session) flushCloses() {
	for _, c := range s.pendingClose.take() {
		leave := s.enter()
		c.fn(c.data, c.Conn)
		leave()
	}
}

// ensureTransport rebuilds the pooled transports when a connection option
// changed since the last transfer.
func (s *Session) ensureTransport() error {
	if s.transport != nil && !s.transportDirty {
		return nil
	}
	s.closeTransports()

	cfg, err := s.tlsConfig()
	if err != nil {
		return err
	}
	proxy, err := s.proxyFunc()
	if err != nil {
		return err
	}

	hooks := s.socketHooks()
	d := &dialer{s: s, hooks: hooks}

	var protos http.Protocols
	switch s.long(OptHTTPVersion) {
	case HTTPVersion1_0, HTTPVersion1_1:
		protos.SetHTTP1(true)
	case HTTPVersion2PriorKnowledge:
		protos.SetHTTP2(true)
		protos.SetUnencryptedHTTP2(true)
	default:
		protos.SetHTTP1(true)
		protos.SetHTTP2(true)
	}

	maxConns := int(s.long(OptMaxConnects))
	if maxConns <= 0 {
		maxConns = 5
	}

	s.transport = &http.Transport{
		Proxy:                 proxy,
		DialContext:           d.DialContext,
		TLSClientConfig:       cfg,
		TLSHandshakeTimeout:   hooks.timeout,
		ForceAttemptHTTP2:     true,
		Protocols:             &protos,
		DisableCompression:    true,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		IdleConnTimeout:       118 * time.Second,
		ExpectContinueTimeout: time.Duration(s.long(OptExpect100TimeoutMS)) * time.Millisecond,
	}

	if v := s.long(OptHTTPVersion); v == HTTPVersion3 || v == HTTPVersion3Only {
		s.h3 = &http3.Transport{
			TLSClientConfig: cfg.Clone(),
			QUICConfig:      &quic.Config{HandshakeIdleTimeout: hooks.timeout},
		}
	}

	s.transportDirty = false
	return nil
}

func (s *Session) closeTransports() {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
		s.transport = nil
	}
	if s.h3 != nil {
		_ = s.h3.Close()
		s.h3 = nil
	}
}
