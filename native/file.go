package native

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

func (s *Session) performFile(x *transfer, u *url.URL) error {
	name := filepath.FromSlash(u.Path)
	if name == "" {
		return failure(URLMalformat, "No file path in the URL")
	}

	if s.httpReq == reqPut {
		return s.fileUpload(name)
	}

	f, err := os.Open(name)
	if err != nil {
		return failure(FileCouldntReadFile, "Couldn't open file %s", name)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		return failure(FileCouldntReadFile, "Couldn't open file %s", name)
	}

	s.info.lengthDown = Off(st.Size())
	if s.long(OptFileTime) != 0 || s.long(OptTimeCondition) != TimeCondNone {
		s.info.fileTime = st.ModTime().Unix()
	}
	if s.timeConditionUnmet(st.ModTime().Unix()) {
		s.info.condUnmet = 1
		return nil
	}

	if s.httpReq == reqHead {
		lines := []string{
			fmt.Sprintf("Content-Length: %d\r\n", st.Size()),
			"Accept-ranges: bytes\r\n",
			"Last-Modified: " + st.ModTime().UTC().Format(http.TimeFormat) + "\r\n",
		}
		for _, l := range lines {
			if err := s.header(l); err != nil {
				return err
			}
		}
		return nil
	}

	var r io.Reader = f
	if from := s.sizeOpt(OptResumeFromLarge, OptResumeFrom); from > 0 {
		if int64(from) > st.Size() {
			return failure(BadDownloadResume, "failed to resume file:// transfer")
		}
		if _, err := f.Seek(int64(from), io.SeekStart); err != nil {
			return failure(BadDownloadResume, "failed to resume file:// transfer")
		}
		s.info.lengthDown = Off(st.Size()) - from
	}

	if rng := s.str(OptRange); rng != "" {
		start, end, ok := parseRange(rng, st.Size())
		if !ok {
			return failure(RangeError, "Invalid range %q", rng)
		}
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return failure(RangeError, "Invalid range %q", rng)
		}
		r = io.LimitReader(f, end-start+1)
		s.info.lengthDown = Off(end - start + 1)
	}

	return s.drainThrottled(x, r)
}

// parseRange reads a single "start-end", "start-" or "-suffix" byte range.
func parseRange(rng string, size int64) (start, end int64, ok bool) {
	a, b, found := strings.Cut(strings.TrimSpace(rng), "-")
	if !found {
		return 0, 0, false
	}

	var err error
	switch {
	case a == "":
		var n int64
		if _, err = fmt.Sscan(b, &n); err != nil || n <= 0 {
			return 0, 0, false
		}
		start, end = max(size-n, 0), size-1
	case b == "":
		if _, err = fmt.Sscan(a, &start); err != nil {
			return 0, 0, false
		}
		end = size - 1
	default:
		if _, err = fmt.Sscan(a, &start); err != nil {
			return 0, 0, false
		}
		if _, err = fmt.Sscan(b, &end); err != nil {
			return 0, 0, false
		}
		end = min(end, size-1)
	}

	if start < 0 || start > end {
		return 0, 0, false
	}
	return start, end, true
}

func (s *Session) fileUpload(name string) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	from := s.sizeOpt(OptResumeFromLarge, OptResumeFrom)
	if s.long(OptAppend) != 0 || from > 0 {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return failure(WriteError, "Can't open %s for writing", name)
	}
	defer f.Close()

	s.info.lengthUp = s.sizeOpt(OptInFileSizeLarge, OptInFileSize)
	if _, err := io.CopyBuffer(onlyWriter{f}, uploadReader{s}, make([]byte, s.bufferSize())); err != nil {
		var ce *codeError
		if errors.As(err, &ce) {
			return err
		}
		return failure(WriteError, "Failure writing output to destination")
	}

	return nil
}

// onlyWriter hides ReadFrom so copies go through the read callback in
// buffer sized pieces.
type onlyWriter struct{ w io.Writer }

func (o onlyWriter) Write(p []byte) (int, error) { return o.w.Write(p) }
