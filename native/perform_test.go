package native

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectBody routes the response body of s into the returned buffer.
func collectBody(t *testing.T, s *Session) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	require.Equal(t, OK, s.Setopt(OptWriteFunction, WriteFunc(func(data []byte, _, _ int, ud any) int {
		n, _ := ud.(*bytes.Buffer).Write(data)
		return n
	})))
	require.Equal(t, OK, s.Setopt(OptWriteData, &buf))

	return &buf
}

func collectHeaders(t *testing.T, s *Session) *[]string {
	t.Helper()

	var lines []string
	require.Equal(t, OK, s.Setopt(OptHeaderFunction, WriteFunc(func(data []byte, _, _ int, _ any) int {
		lines = append(lines, string(data))
		return len(data)
	})))

	return &lines
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Test", "yes")
		fmt.Fprint(w, "hello")
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		for _, name := range []string{"User-Agent", "Accept", "X-Custom", "Referer"} {
			fmt.Fprintf(w, "%s=%s\n", name, r.Header.Get(name))
		}
		if _, ok := r.Header["X-Empty"]; ok {
			fmt.Fprintln(w, "X-Empty present")
		}
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/method", http.StatusFound)
	})
	mux.HandleFunc("/method", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s referer=%s", r.Method, body, r.Header.Get("Referer"))
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.txt", time.Unix(1700000000, 0), strings.NewReader("0123456789"))
	})
	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			http.Error(w, "no gzip", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		fmt.Fprint(zw, "compressed body")
		_ = zw.Close()
	})
	mux.HandleFunc("/cookie/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
	})
	mux.HandleFunc("/cookie/get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("Cookie"))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, r.FormValue("name"))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func TestPerform_Get(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	headers := collectHeaders(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "hello", body.String())

	require.NotEmpty(t, *headers)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", (*headers)[0])
	assert.Contains(t, *headers, "X-Test: yes\r\n")
	assert.Equal(t, "\r\n", (*headers)[len(*headers)-1])

	var (
		code    int64
		ctype   string
		eff     string
		size    Off
		version int64
		scheme  string
		ip      string
	)
	assert.Equal(t, OK, s.Getinfo(InfoResponseCode, &code))
	assert.Equal(t, OK, s.Getinfo(InfoContentType, &ctype))
	assert.Equal(t, OK, s.Getinfo(InfoEffectiveURL, &eff))
	assert.Equal(t, OK, s.Getinfo(InfoSizeDownloadT, &size))
	assert.Equal(t, OK, s.Getinfo(InfoHTTPVersion, &version))
	assert.Equal(t, OK, s.Getinfo(InfoScheme, &scheme))
	assert.Equal(t, OK, s.Getinfo(InfoPrimaryIP, &ip))

	assert.Equal(t, int64(200), code)
	assert.Equal(t, "text/plain", ctype)
	assert.Equal(t, ts.URL+"/hello", eff)
	assert.Equal(t, Off(5), size)
	assert.Equal(t, int64(HTTPVersion1_1), version)
	assert.Equal(t, "HTTP", scheme)
	assert.Equal(t, "127.0.0.1", ip)

	var total float64
	assert.Equal(t, OK, s.Getinfo(InfoTotalTime, &total))
	assert.Greater(t, total, 0.0)
}

func TestPerform_DefaultWriteData(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	var buf bytes.Buffer
	require.Equal(t, OK, s.Setopt(OptWriteData, &buf))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))
	require.Equal(t, OK, s.Setopt(OptHeader, int64(1)))

	require.Equal(t, OK, s.Perform())
	assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.1 200 OK\r\n"))
	assert.True(t, strings.HasSuffix(buf.String(), "\r\n\r\nhello"))
}

func TestPerform_Headers(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	var list *SList
	list = SlistAppend(list, "X-Custom: one")
	list = SlistAppend(list, "Accept:")
	list = SlistAppend(list, "X-Empty;")
	defer SlistFreeAll(list)

	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/headers"))
	require.Equal(t, OK, s.Setopt(OptHTTPHeader, list))
	require.Equal(t, OK, s.Setopt(OptUserAgent, "tester/1.0"))
	require.Equal(t, OK, s.Setopt(OptReferer, "http://origin.test/"))

	require.Equal(t, OK, s.Perform())

	exp := "User-Agent=tester/1.0\nAccept=\nX-Custom=one\nReferer=http://origin.test/\nX-Empty present\n"
	assert.Equal(t, exp, body.String())
}

func TestPerform_NoUserAgentByDefault(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/headers"))
	require.Equal(t, OK, s.Perform())

	assert.Contains(t, body.String(), "User-Agent=\n")
	assert.Contains(t, body.String(), "Accept=*/*\n")
}

func TestPerform_PostFields(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	headers := collectHeaders(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/echo"))
	require.Equal(t, OK, s.Setopt(OptPostFields, "a=1&b=2"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "a=1&b=2", body.String())
	assert.Contains(t, *headers, "X-Method: POST\r\n")
	assert.Contains(t, *headers, "X-Content-Type: application/x-www-form-urlencoded\r\n")

	var up Off
	require.Equal(t, OK, s.Getinfo(InfoSizeUploadT, &up))
	assert.Equal(t, Off(7), up)
}

func TestPerform_UploadReadData(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	headers := collectHeaders(t, s)
	payload := "upload body"
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/echo"))
	require.Equal(t, OK, s.Setopt(OptUpload, int64(1)))
	require.Equal(t, OK, s.Setopt(OptReadData, strings.NewReader(payload)))
	require.Equal(t, OK, s.Setopt(OptInFileSizeLarge, Off(len(payload))))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, payload, body.String())
	assert.Contains(t, *headers, "X-Method: PUT\r\n")
}

func TestPerform_UploadReadFunction(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	chunks := []string{"first ", "second ", "third"}
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/echo"))
	require.Equal(t, OK, s.Setopt(OptUpload, int64(1)))
	require.Equal(t, OK, s.Setopt(OptReadFunction, ReadFunc(func(buf []byte, _, _ int, _ any) int {
		if len(chunks) == 0 {
			return 0
		}
		n := copy(buf, chunks[0])
		chunks = chunks[1:]
		return n
	})))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "first second third", body.String())
}

func TestPerform_UploadAbort(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/echo"))
	require.Equal(t, OK, s.Setopt(OptUpload, int64(1)))
	require.Equal(t, OK, s.Setopt(OptReadFunction, ReadFunc(func([]byte, int, int, any) int {
		return ReadFuncAbort
	})))

	assert.Equal(t, AbortedByCallback, s.Perform())
}

func TestPerform_MultipartForm(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	var first, last *HTTPPost
	require.Equal(t, FormAddOK, FormAdd(&first, &last, Forms{FormCopyName, "name"}, Forms{FormCopyContents, "gopher"}))
	defer FormFree(first)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/form"))
	require.Equal(t, OK, s.Setopt(OptHTTPPost, first))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "gopher", body.String())
}

func TestPerform_Redirects(t *testing.T) {
	ts := testServer(t)

	testCases := []struct {
		name      string
		follow    bool
		postRedir int64
		autoRef   bool
		expBody   string
		expCode   int64
		expCount  int64
	}{
		{name: "not followed", expCode: http.StatusFound},
		{name: "post becomes get", follow: true, expBody: "GET  referer=", expCode: 200, expCount: 1},
		{name: "post kept", follow: true, postRedir: Redirect302, expBody: "POST x=1 referer=", expCode: 200, expCount: 1},
		{name: "auto referer", follow: true, autoRef: true, expBody: "GET  referer=" + ts.URL + "/redirect", expCode: 200, expCount: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t)
			body := collectBody(t, s)
			require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/redirect"))
			require.Equal(t, OK, s.Setopt(OptPostFields, "x=1"))
			if tc.follow {
				require.Equal(t, OK, s.Setopt(OptFollowLocation, int64(1)))
			}
			require.Equal(t, OK, s.Setopt(OptPostRedir, tc.postRedir))
			if tc.autoRef {
				require.Equal(t, OK, s.Setopt(OptAutoReferer, int64(1)))
			}

			require.Equal(t, OK, s.Perform())

			var code, count int64
			require.Equal(t, OK, s.Getinfo(InfoResponseCode, &code))
			require.Equal(t, OK, s.Getinfo(InfoRedirectCount, &count))
			assert.Equal(t, tc.expCode, code)
			assert.Equal(t, tc.expCount, count)

			if tc.follow {
				assert.Equal(t, tc.expBody, body.String())
				var eff string
				require.Equal(t, OK, s.Getinfo(InfoEffectiveURL, &eff))
				assert.Equal(t, ts.URL+"/method", eff)
				return
			}

			var redirectURL string
			require.Equal(t, OK, s.Getinfo(InfoRedirectURL, &redirectURL))
			assert.Equal(t, ts.URL+"/method", redirectURL)
		})
	}
}

func TestPerform_TooManyRedirects(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/loop"))
	require.Equal(t, OK, s.Setopt(OptFollowLocation, int64(1)))
	require.Equal(t, OK, s.Setopt(OptMaxRedirs, int64(2)))

	assert.Equal(t, TooManyRedirects, s.Perform())
	assert.Equal(t, "Maximum (2) redirects followed", s.LastError())
}

func TestPerform_Failures(t *testing.T) {
	ts := testServer(t)

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := closed.Addr().String()
	require.NoError(t, closed.Close())

	testCases := []struct {
		name  string
		setup func(t *testing.T, s *Session)
		exp   Code
	}{
		{
			name:  "no url",
			setup: func(*testing.T, *Session) {},
			exp:   URLMalformat,
		},
		{
			name: "malformed url",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, "http://[::1"))
			},
			exp: URLMalformat,
		},
		{
			name: "unknown scheme",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, "gopher://example.com/"))
			},
			exp: UnsupportedProtocol,
		},
		{
			name: "disabled scheme",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))
				require.Equal(t, OK, s.Setopt(OptProtocolsStr, "https,ftp"))
			},
			exp: UnsupportedProtocol,
		},
		{
			name: "fail on error",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/missing"))
				require.Equal(t, OK, s.Setopt(OptFailOnError, int64(1)))
			},
			exp: HTTPReturnedError,
		},
		{
			name: "write refused",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))
				require.Equal(t, OK, s.Setopt(OptWriteFunction, WriteFunc(func([]byte, int, int, any) int { return 0 })))
			},
			exp: WriteError,
		},
		{
			name: "progress abort",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))
				require.Equal(t, OK, s.Setopt(OptNoProgress, int64(0)))
				require.Equal(t, OK, s.Setopt(OptXferInfoFunction, XferInfoFunc(func(any, Off, Off, Off, Off) int { return 1 })))
			},
			exp: AbortedByCallback,
		},
		{
			name: "max file size",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/file"))
				require.Equal(t, OK, s.Setopt(OptMaxFileSizeLarge, Off(4)))
			},
			exp: FilesizeExceeded,
		},
		{
			name: "timeout",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/slow"))
				require.Equal(t, OK, s.Setopt(OptTimeoutMS, int64(100)))
			},
			exp: OperationTimedout,
		},
		{
			name: "connection refused",
			setup: func(t *testing.T, s *Session) {
				require.Equal(t, OK, s.Setopt(OptURL, "http://"+deadAddr+"/"))
			},
			exp: CouldntConnect,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t)
			collectBody(t, s)
			tc.setup(t, s)

			var errBuf string
			require.Equal(t, OK, s.Setopt(OptErrorBuffer, &errBuf))

			if code := s.Perform(); code != tc.exp {
				t.Fatalf("exp code %v; got: %v (%s)", tc.exp, code, s.LastError())
			}
			assert.NotEmpty(t, s.LastError())
			assert.Equal(t, s.LastError(), errBuf)
		})
	}
}

func TestPerform_FailOnErrorDetail(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/missing"))
	require.Equal(t, OK, s.Setopt(OptFailOnError, int64(1)))

	require.Equal(t, HTTPReturnedError, s.Perform())
	assert.Equal(t, "The requested URL returned error: 404", s.LastError())
}

func TestPerform_ResumeAndRange(t *testing.T) {
	ts := testServer(t)

	testCases := map[string]struct {
		opt   Option
		value any
		exp   string
	}{
		"resume": {OptResumeFromLarge, Off(6), "6789"},
		"range":  {OptRange, "2-4", "234"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			s := newSession(t)
			body := collectBody(t, s)
			require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/file"))
			require.Equal(t, OK, s.Setopt(tc.opt, tc.value))

			require.Equal(t, OK, s.Perform())
			assert.Equal(t, tc.exp, body.String())

			var code int64
			require.Equal(t, OK, s.Getinfo(InfoResponseCode, &code))
			assert.Equal(t, int64(http.StatusPartialContent), code)
		})
	}
}

func TestPerform_TimeCondition(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/file"))
	require.Equal(t, OK, s.Setopt(OptTimeCondition, int64(TimeCondIfModSince)))
	require.Equal(t, OK, s.Setopt(OptTimeValueLarge, Off(1800000000)))
	require.Equal(t, OK, s.Setopt(OptFileTime, int64(1)))

	require.Equal(t, OK, s.Perform())
	assert.Empty(t, body.String())

	var unmet, filetime int64
	require.Equal(t, OK, s.Getinfo(InfoConditionUnmet, &unmet))
	require.Equal(t, OK, s.Getinfo(InfoFileTime, &filetime))
	assert.Equal(t, int64(1), unmet)
	assert.Equal(t, int64(1700000000), filetime)
}

func TestPerform_NoBody(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/file"))
	require.Equal(t, OK, s.Setopt(OptNoBody, int64(1)))

	require.Equal(t, OK, s.Perform())
	assert.Empty(t, body.String())

	var length Off
	require.Equal(t, OK, s.Getinfo(InfoContentLengthDownT, &length))
	assert.Equal(t, Off(10), length)
}

func TestPerform_ContentDecoding(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/gzip"))
	require.Equal(t, OK, s.Setopt(OptAcceptEncoding, ""))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "compressed body", body.String())

	var length Off
	require.Equal(t, OK, s.Getinfo(InfoContentLengthDownT, &length))
	assert.Equal(t, Off(-1), length)
}

func TestPerform_Cookies(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)
	jar := filepath.Join(t.TempDir(), "cookies.txt")

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptCookieFile, ""))
	require.Equal(t, OK, s.Setopt(OptCookieJar, jar))

	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/cookie/set"))
	require.Equal(t, OK, s.Perform())

	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/cookie/get"))
	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "session=abc", body.String())

	var list *SList
	require.Equal(t, OK, s.Getinfo(InfoCookieList, &list))
	require.Len(t, list.Strings(), 1)
	assert.Equal(t, "127.0.0.1\tFALSE\t/\tFALSE\t0\tsession\tabc", list.Strings()[0])

	s.Cleanup()
	saved, err := os.ReadFile(jar)
	require.NoError(t, err)
	assert.Contains(t, string(saved), "# Netscape HTTP Cookie File")
	assert.Contains(t, string(saved), "\tsession\tabc\n")
}

func TestPerform_CookieFileLoaded(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	file := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(file, []byte("# comment\n127.0.0.1\tFALSE\t/\tFALSE\t0\tloaded\tyes\n"), 0o600))

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptCookieFile, file))
	require.Equal(t, OK, s.Setopt(OptCookie, "extra=1"))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/cookie/get"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "extra=1; loaded=yes", body.String())
}

func TestPerform_Pause(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	var (
		buf   bytes.Buffer
		calls int
	)
	require.Equal(t, OK, s.Setopt(OptWriteFunction, WriteFunc(func(data []byte, _, _ int, _ any) int {
		calls++
		if calls == 1 {
			return WriteFuncPause
		}
		buf.Write(data)
		return len(data)
	})))
	require.Equal(t, OK, s.Setopt(OptNoProgress, int64(0)))
	require.Equal(t, OK, s.Setopt(OptXferInfoFunction, XferInfoFunc(func(any, Off, Off, Off, Off) int {
		assert.Equal(t, OK, s.Pause(PauseCont))
		return 0
	})))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, 2, calls)
	assert.Equal(t, "hello", buf.String())
}

func TestPerform_RecursiveCall(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	var inner Code
	require.Equal(t, OK, s.Setopt(OptWriteFunction, WriteFunc(func(data []byte, _, _ int, _ any) int {
		inner = s.Perform()
		return len(data)
	})))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, RecursiveAPICall, inner)
}

func TestPerform_Debug(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	collectBody(t, s)
	seen := make(map[DebugType]int)
	require.Equal(t, OK, s.Setopt(OptDebugFunction, DebugFunc(func(_ *Session, typ DebugType, _ []byte, _ any) int {
		seen[typ]++
		return 0
	})))
	require.Equal(t, OK, s.Setopt(OptVerbose, int64(1)))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))

	require.Equal(t, OK, s.Perform())
	for _, typ := range []DebugType{DebugText, DebugHeaderIn, DebugHeaderOut, DebugDataIn} {
		assert.NotZero(t, seen[typ], "debug type %v", typ)
	}
}

func TestPerform_VerboseDefaultOutput(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	collectBody(t, s)
	var stderr bytes.Buffer
	require.Equal(t, OK, s.Setopt(OptStderr, &stderr))
	require.Equal(t, OK, s.Setopt(OptVerbose, int64(1)))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))

	require.Equal(t, OK, s.Perform())
	assert.Contains(t, stderr.String(), "> GET /hello HTTP/1.1")
	assert.Contains(t, stderr.String(), "< HTTP/1.1 200 OK")
	assert.Contains(t, stderr.String(), "* Connected to")
}

func TestPerform_SocketCallbacks(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	var opened, sockopt, closed int
	collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptOpenSocketFunction, OpenSocketFunc(func(_ any, _ SockType, addr *SockAddr) net.Conn {
		opened++
		conn, err := net.Dial(addr.Network, addr.Address)
		if err != nil {
			return nil
		}
		return conn
	})))
	require.Equal(t, OK, s.Setopt(OptSockOptFunction, SockOptFunc(func(any, net.Conn, SockType) int {
		sockopt++
		return SockOptOK
	})))
	require.Equal(t, OK, s.Setopt(OptCloseSocketFunction, CloseSocketFunc(func(_ any, conn net.Conn) int {
		closed++
		_ = conn.Close()
		return 0
	})))
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, sockopt)

	s.Cleanup()
	assert.Equal(t, 1, closed)
}

func TestPerform_Resolve(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	_, port, err := net.SplitHostPort(strings.TrimPrefix(ts.URL, "http://"))
	require.NoError(t, err)

	list := SlistAppend(nil, "example.invalid:"+port+":127.0.0.1")
	defer SlistFreeAll(list)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptResolve, list))
	require.Equal(t, OK, s.Setopt(OptProxy, ""))
	require.Equal(t, OK, s.Setopt(OptURL, "http://example.invalid:"+port+"/hello"))

	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "hello", body.String())
}

func TestPerform_ReuseSession(t *testing.T) {
	ts := testServer(t)
	s := newSession(t)

	body := collectBody(t, s)
	require.Equal(t, OK, s.Setopt(OptURL, ts.URL+"/hello"))
	require.Equal(t, OK, s.Perform())
	require.Equal(t, OK, s.Perform())
	assert.Equal(t, "hellohello", body.String())

	var conns int64
	require.Equal(t, OK, s.Getinfo(InfoNumConnects, &conns))
	assert.Zero(t, conns)
}
