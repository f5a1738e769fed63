package native

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/adamwoolhether/xfer/native/throttle"
)

// debugWriter forwards protocol chatter from a library to the debug
// callback.
type debugWriter struct {
	s   *Session
	typ DebugType
}

func (w debugWriter) Write(p []byte) (int, error) {
	w.s.debug(w.typ, p)
	return len(p), nil
}

func (s *Session) dialFTP(x *transfer, u *url.URL) (*ftp.ServerConn, error) {
	hooks := s.socketHooks()
	d := &dialer{s: s, hooks: hooks, direct: true}

	host := u.Host
	if u.Port() == "" {
		port := "21"
		if u.Scheme == "ftps" {
			port = "990"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	opts := []ftp.DialOption{
		ftp.DialWithContext(x.ctx),
		ftp.DialWithTimeout(hooks.timeout),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return d.DialContext(x.ctx, network, address)
		}),
		ftp.DialWithDisabledEPSV(s.long(OptFTPUseEPSV) == 0),
	}
	if s.long(OptVerbose) != 0 {
		opts = append(opts, ftp.DialWithDebugOutput(debugWriter{s: s, typ: DebugHeaderIn}))
	}

	secure := u.Scheme == "ftps" || s.long(OptUseSSL) != UseSSLNone
	if secure {
		cfg, err := s.tlsConfig()
		if err != nil {
			return nil, err
		}
		cfg = cfg.Clone()
		cfg.ServerName = u.Hostname()

		tlsOpt := ftp.DialWithExplicitTLS(cfg)
		if u.Scheme == "ftps" {
			tlsOpt = ftp.DialWithTLS(cfg)
		}

		c, err := ftp.Dial(host, append(opts, tlsOpt)...)
		if err == nil || u.Scheme == "ftps" || s.long(OptUseSSL) != UseSSLTry {
			if err != nil {
				return nil, s.ftpError(err, reqGet)
			}
			return c, nil
		}
		s.infof("TLS not available, continuing in plain text: %v", err)
	}

	c, err := ftp.Dial(host, opts...)
	if err != nil {
		return nil, s.ftpError(err, reqGet)
	}
	return c, nil
}

// ftpError maps a server reply to a status. op is the request kind that
// failed and picks the code for a 550 reply.
func (s *Session) ftpError(err error, op int) error {
	var te *textproto.Error
	if !errors.As(err, &te) {
		return err
	}

	s.info.responseCode = int64(te.Code)
	switch {
	case te.Code == 530 || te.Code == 331 || te.Code == 332:
		return failure(LoginDenied, "Access denied: %d", te.Code)
	case te.Code == 550 && op == reqPut:
		return failure(UploadFailed, "Failed FTP upload: %d", te.Code)
	case te.Code == 550:
		return failure(RemoteFileNotFound, "The file does not exist")
	case te.Code == 553:
		return failure(UploadFailed, "Failed FTP upload: %d", te.Code)
	case te.Code >= 500:
		return failure(RemoteAccessDenied, "Server denied you to change to the given directory")
	}
	return failure(WeirdServerReply, "%s", te.Msg)
}

func (s *Session) performFTP(x *transfer, u *url.URL) error {
	c, err := s.dialFTP(x, u)
	if err != nil {
		return err
	}
	s.settle(x.trace)
	defer func() { _ = c.Quit() }()

	user, pass := "anonymous", "ftp@example.com"
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if up, ok := s.opts[OptUserPwd].(string); ok {
		user, pass, _ = strings.Cut(up, ":")
	}
	if v, ok := s.opts[OptUsername].(string); ok {
		user = v
	}
	if v, ok := s.opts[OptPassword].(string); ok {
		pass = v
	}
	if err := c.Login(user, pass); err != nil {
		return s.ftpError(err, reqGet)
	}

	p := strings.TrimPrefix(u.Path, "/")

	switch {
	case s.httpReq == reqPut:
		return s.ftpUpload(x, c, p)
	case p == "" || strings.HasSuffix(p, "/"):
		return s.ftpList(c, p)
	case s.long(OptWildcardMatch) != 0 && strings.ContainsAny(path.Base(p), "*?["):
		return s.ftpWildcard(x, c, p)
	}

	return s.ftpRetrieve(x, c, p)
}

func (s *Session) ftpRetrieve(x *transfer, c *ftp.ServerConn, p string) error {
	size, sizeErr := c.FileSize(p)
	if sizeErr == nil {
		s.info.lengthDown = Off(size)
	}
	if s.long(OptFileTime) != 0 || s.long(OptTimeCondition) != TimeCondNone {
		if mt, err := c.GetTime(p); err == nil {
			s.info.fileTime = mt.Unix()
		}
	}

	if s.timeConditionUnmet(s.info.fileTime) {
		s.info.condUnmet = 1
		return nil
	}

	if s.httpReq == reqHead {
		if sizeErr != nil {
			return s.ftpError(sizeErr, reqGet)
		}
		if s.info.fileTime >= 0 {
			lm := time.Unix(s.info.fileTime, 0).UTC().Format(http.TimeFormat)
			if err := s.header("Last-Modified: " + lm + "\r\n"); err != nil {
				return err
			}
		}
		if err := s.header(fmt.Sprintf("Content-Length: %d\r\n", size)); err != nil {
			return err
		}
		return s.header("Accept-ranges: bytes\r\n")
	}

	from := s.sizeOpt(OptResumeFromLarge, OptResumeFrom)
	if from > 0 && sizeErr == nil && int64(from) > size {
		return failure(BadDownloadResume, "Offset (%d) was beyond file size (%d)", from, size)
	}

	var (
		resp *ftp.Response
		err  error
	)
	if from > 0 {
		resp, err = c.RetrFrom(p, uint64(from))
	} else {
		resp, err = c.Retr(p)
	}
	if err != nil {
		return s.ftpError(err, reqGet)
	}
	defer resp.Close()

	return s.drainThrottled(x, resp)
}

func (s *Session) drainThrottled(x *transfer, r io.Reader) error {
	if bps := s.off(OptMaxRecvSpeedLarge); bps > 0 {
		tr, err := throttle.NewReader(x.ctx, r, int64(bps), nil)
		if err != nil {
			return failure(BadFunctionArgument, "%v", err)
		}
		r = tr
	}
	return s.drain(r)
}

func (s *Session) ftpUpload(x *transfer, c *ftp.ServerConn, p string) error {
	if s.long(OptFTPCreateMissingDirs) != 0 {
		dir := ""
		for part := range strings.SplitSeq(path.Dir(p), "/") {
			if part == "" || part == "." {
				continue
			}
			dir = path.Join(dir, part)
			_ = c.MakeDir(dir)
		}
	}

	s.info.lengthUp = s.sizeOpt(OptInFileSizeLarge, OptInFileSize)

	var r io.Reader = uploadReader{s}
	if bps := s.off(OptMaxSendSpeedLarge); bps > 0 {
		tr, err := throttle.NewReader(x.ctx, r, int64(bps), nil)
		if err != nil {
			return failure(BadFunctionArgument, "%v", err)
		}
		r = tr
	}

	var err error
	switch from := s.sizeOpt(OptResumeFromLarge, OptResumeFrom); {
	case s.long(OptAppend) != 0:
		err = c.Append(p, r)
	case from > 0:
		err = c.StorFrom(p, r, uint64(from))
	default:
		err = c.Stor(p, r)
	}
	if err != nil {
		var ce *codeError
		if errors.As(err, &ce) {
			return ce
		}
		return s.ftpError(err, reqPut)
	}
	return nil
}

// ftpList writes a directory listing, one entry per line.
func (s *Session) ftpList(c *ftp.ServerConn, dir string) error {
	if dir == "" {
		dir = "."
	}

	if s.long(OptDirListOnly) != 0 {
		names, err := c.NameList(dir)
		if err != nil {
			return s.ftpError(err, reqGet)
		}
		for _, n := range names {
			if err := s.deliver([]byte(path.Base(n) + "\r\n")); err != nil {
				return err
			}
		}
		return nil
	}

	entries, err := c.List(dir)
	if err != nil {
		return s.ftpError(err, reqGet)
	}
	for _, e := range entries {
		if err := s.deliver([]byte(listLine(e))); err != nil {
			return err
		}
	}
	return nil
}

func listLine(e *ftp.Entry) string {
	mode := "-rw-r--r--"
	name := e.Name
	switch e.Type {
	case ftp.EntryTypeFolder:
		mode = "drwxr-xr-x"
	case ftp.EntryTypeLink:
		mode = "lrwxrwxrwx"
		if e.Target != "" {
			name += " -> " + e.Target
		}
	}
	return fmt.Sprintf("%s 1 ftp ftp %12d %s %s\r\n", mode, e.Size, e.Time.Format("Jan _2 15:04"), name)
}

func entryType(t ftp.EntryType) FileType {
	switch t {
	case ftp.EntryTypeFile:
		return FileTypeFile
	case ftp.EntryTypeFolder:
		return FileTypeDirectory
	case ftp.EntryTypeLink:
		return FileTypeSymlink
	}
	return FileTypeUnknown
}

// fnmatch runs the match callback when set and path.Match otherwise.
func (s *Session) fnmatch(pattern, name string) (bool, error) {
	if fn, ok := s.opts[OptFnMatchFunction].(FnMatchFunc); ok {
		leave := s.enter()
		rc := fn(s.Option(OptFnMatchData), pattern, name)
		leave()

		switch rc {
		case FnMatchFuncMatch:
			return true, nil
		case FnMatchFuncNoMatch:
			return false, nil
		}
		return false, failure(FTPBadFileList, "fnmatch callback failed")
	}

	ok, err := path.Match(pattern, name)
	if err != nil {
		return false, failure(FTPBadFileList, "bad wildcard pattern %q", pattern)
	}
	return ok, nil
}

// ftpWildcard downloads every file in the directory of p that matches its
// last path element.
func (s *Session) ftpWildcard(x *transfer, c *ftp.ServerConn, p string) error {
	dir, pattern := path.Split(p)
	listDir := dir
	if listDir == "" {
		listDir = "."
	}

	entries, err := c.List(listDir)
	if err != nil {
		return failure(FTPBadFileList, "Failed to parse FTP file list: %v", err)
	}

	var matched []*ftp.Entry
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		ok, err := s.fnmatch(pattern, e.Name)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, e)
		}
	}

	bgn, _ := s.opts[OptChunkBgnFunction].(ChunkBgnFunc)
	end, _ := s.opts[OptChunkEndFunction].(ChunkEndFunc)
	data := s.Option(OptChunkData)

	for i, e := range matched {
		info := &FileInfo{
			Filename: e.Name,
			FileType: entryType(e.Type),
			Time:     e.Time,
			Size:     Off(e.Size),
			Target:   e.Target,
		}

		if bgn != nil {
			leave := s.enter()
			rc := bgn(info, data, len(matched)-i)
			leave()

			switch rc {
			case ChunkBgnFuncSkip:
				continue
			case ChunkBgnFuncOK:
			default:
				return failure(ChunkFailed, "chunk begin callback failed")
			}
		}

		if e.Type == ftp.EntryTypeFile {
			resp, err := c.Retr(path.Join(dir, e.Name))
			if err != nil {
				return s.ftpError(err, reqGet)
			}
			err = s.drainThrottled(x, resp)
			_ = resp.Close()
			if err != nil {
				return err
			}
		}

		if end != nil {
			leave := s.enter()
			rc := end(data)
			leave()
			if rc != ChunkEndFuncOK {
				return failure(ChunkFailed, "chunk end callback failed")
			}
		}
	}

	return nil
}

// timeConditionUnmet compares a remote modification time with the time
// condition options. A negative mtime never fails the condition.
func (s *Session) timeConditionUnmet(mtime int64) bool {
	cond := s.long(OptTimeCondition)
	if cond == TimeCondNone || mtime < 0 {
		return false
	}

	at := int64(s.sizeOpt(OptTimeValueLarge, OptTimeValue))
	if cond == TimeCondIfModSince {
		return mtime <= at
	}
	return mtime > at
}
