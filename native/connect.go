package native

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"time"
)

// ioWait bounds a single Send or Recv so that neither blocks.
const ioWait = 10 * time.Millisecond

var defaultPorts = map[string]string{"http": "80", "https": "443", "ftp": "21", "ftps": "990"}

// performConnect sets up the connection only and keeps it for Send and
// Recv.
func (s *Session) performConnect(x *transfer, u *url.URL) error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), defaultPorts[u.Scheme])
	}

	d := &dialer{s: s, hooks: s.socketHooks(), direct: true}
	conn, err := d.DialContext(x.ctx, "tcp", addr)
	if err != nil {
		return err
	}

	if u.Scheme == "https" || u.Scheme == "ftps" {
		cfg, err := s.tlsConfig()
		if err != nil {
			_ = conn.Close()
			return err
		}
		cfg = cfg.Clone()
		cfg.ServerName = u.Hostname()

		tc := tls.Client(conn, cfg)
		if err := tc.HandshakeContext(x.ctx); err != nil {
			_ = conn.Close()
			return err
		}
		conn = tc
	}

	if ra := conn.RemoteAddr(); ra != nil {
		s.info.primaryIP, s.info.primaryPort = splitAddr(ra)
	}
	if la := conn.LocalAddr(); la != nil {
		s.info.localIP, s.info.localPort = splitAddr(la)
	}
	s.info.numConnects = 1
	s.infof("Connected to %s", addr)

	s.conn = conn
	return nil
}

// Send writes p on a connect only connection and reports how much was
// sent. Again means nothing could be sent right now.
func (s *Session) Send(p []byte) (int, Code) {
	if s == nil || s.closed {
		return 0, BadFunctionArgument
	}
	if s.conn == nil {
		return 0, s.fail(UnsupportedProtocol, "CONNECT_ONLY is required")
	}
	s.flushCloses()

	_ = s.conn.SetWriteDeadline(time.Now().Add(ioWait))
	n, err := s.conn.Write(p)
	_ = s.conn.SetWriteDeadline(time.Time{})

	switch {
	case err == nil:
		return n, OK
	case n > 0:
		return n, OK
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, Again
	}
	return n, s.fail(SendError, err.Error())
}

// Recv reads into p from a connect only connection. A closed peer reads as
// (0, OK); Again means no data is waiting.
func (s *Session) Recv(p []byte) (int, Code) {
	if s == nil || s.closed {
		return 0, BadFunctionArgument
	}
	if s.conn == nil {
		return 0, s.fail(UnsupportedProtocol, "CONNECT_ONLY is required")
	}
	s.flushCloses()

	_ = s.conn.SetReadDeadline(time.Now().Add(ioWait))
	n, err := s.conn.Read(p)
	_ = s.conn.SetReadDeadline(time.Time{})

	switch {
	case n > 0:
		return n, OK
	case err == nil:
		return 0, Again
	case errors.Is(err, io.EOF):
		return 0, OK
	case errors.Is(err, os.ErrDeadlineExceeded):
		return 0, Again
	}
	return 0, s.fail(RecvError, err.Error())
}
