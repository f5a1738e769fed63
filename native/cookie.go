package native

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

type storedCookie struct {
	domain   string
	tailing  bool
	path     string
	secure   bool
	httpOnly bool
	expires  int64
	name     string
	value    string
}

// cookieStore keeps cookies in a form that can be listed and saved in the
// Netscape cookie file format.
type cookieStore struct {
	cookies []storedCookie
}

// enableCookies turns the engine on when a cookie file or jar is set and
// loads the cookie file once per setting.
func (s *Session) enableCookies() {
	file, hasFile := s.opts[OptCookieFile].(string)
	_, hasJar := s.opts[OptCookieJar].(string)
	if !hasFile && !hasJar {
		return
	}
	if s.cookies == nil {
		s.cookies = &cookieStore{}
	}

	if hasFile && file != "" && s.cookiesFrom != file {
		if f, err := os.Open(file); err == nil {
			s.cookies.load(f)
			_ = f.Close()
		} else {
			s.infof("skipped cookie file %s: %v", file, err)
		}
		s.cookiesFrom = file
	}
}

func (c *cookieStore) load(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()

		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line, httpOnly = rest, true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		exp, _ := strconv.ParseInt(fields[4], 10, 64)
		c.put(storedCookie{
			domain:   strings.TrimPrefix(strings.ToLower(fields[0]), "."),
			tailing:  strings.EqualFold(fields[1], "TRUE"),
			path:     fields[2],
			secure:   strings.EqualFold(fields[3], "TRUE"),
			httpOnly: httpOnly,
			expires:  exp,
			name:     fields[5],
			value:    fields[6],
		})
	}
}

func (c *cookieStore) put(sc storedCookie) {
	for i, old := range c.cookies {
		if old.domain == sc.domain && old.path == sc.path && old.name == sc.name {
			c.cookies[i] = sc
			return
		}
	}
	c.cookies = append(c.cookies, sc)
}

// receive stores the Set-Cookie headers of a response from u.
func (c *cookieStore) receive(u *url.URL, resp *http.Response) {
	host := strings.ToLower(u.Hostname())
	now := time.Now()

	for _, hc := range resp.Cookies() {
		sc := storedCookie{
			domain:   host,
			path:     hc.Path,
			secure:   hc.Secure,
			httpOnly: hc.HttpOnly,
			name:     hc.Name,
			value:    hc.Value,
		}

		if hc.Domain != "" {
			d := strings.TrimPrefix(strings.ToLower(hc.Domain), ".")
			if ps, _ := publicsuffix.PublicSuffix(d); ps == d {
				continue
			}
			if host != d && !strings.HasSuffix(host, "."+d) {
				continue
			}
			sc.domain, sc.tailing = d, true
		}
		if sc.path == "" || !strings.HasPrefix(sc.path, "/") {
			sc.path = defaultCookiePath(u.Path)
		}

		switch {
		case hc.MaxAge < 0:
			c.remove(sc)
			continue
		case hc.MaxAge > 0:
			sc.expires = now.Add(time.Duration(hc.MaxAge) * time.Second).Unix()
		case !hc.Expires.IsZero():
			if !hc.Expires.After(now) {
				c.remove(sc)
				continue
			}
			sc.expires = hc.Expires.Unix()
		}

		c.put(sc)
	}
}

func (c *cookieStore) remove(sc storedCookie) {
	kept := c.cookies[:0]
	for _, old := range c.cookies {
		if old.domain == sc.domain && old.path == sc.path && old.name == sc.name {
			continue
		}
		kept = append(kept, old)
	}
	c.cookies = kept
}

func defaultCookiePath(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// header returns the Cookie header value for a request to u.
func (c *cookieStore) header(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	path := u.Path
	if path == "" {
		path = "/"
	}
	now := time.Now().Unix()

	var parts []string
	for _, sc := range c.cookies {
		if sc.expires != 0 && sc.expires < now {
			continue
		}
		if sc.secure && u.Scheme != "https" {
			continue
		}
		if host != sc.domain && !(sc.tailing && strings.HasSuffix(host, "."+sc.domain)) {
			continue
		}
		if !strings.HasPrefix(path, sc.path) {
			continue
		}
		parts = append(parts, sc.name+"="+sc.value)
	}

	return strings.Join(parts, "; ")
}

// netscape renders every cookie as a Netscape cookie file line.
func (c *cookieStore) netscape() []string {
	out := make([]string, 0, len(c.cookies))
	for _, sc := range c.cookies {
		domain := sc.domain
		if sc.tailing {
			domain = "." + domain
		}
		if sc.httpOnly {
			domain = "#HttpOnly_" + domain
		}
		out = append(out, fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%s\t%s",
			domain, boolField(sc.tailing), sc.path, boolField(sc.secure), sc.expires, sc.name, sc.value))
	}
	return out
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// writeCookieJar saves all cookies to the jar option, if set.
func (s *Session) writeCookieJar() {
	jar, ok := s.opts[OptCookieJar].(string)
	if !ok || jar == "" || s.cookies == nil {
		return
	}

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n# This file was generated by xfer. Edit at your own risk.\n\n")
	for _, line := range s.cookies.netscape() {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if jar == "-" {
		_, _ = os.Stdout.WriteString(b.String())
		return
	}
	if err := os.WriteFile(jar, []byte(b.String()), 0o600); err != nil {
		s.infof("WARNING: failed to save cookies in %s: %v", jar, err)
	}
}
