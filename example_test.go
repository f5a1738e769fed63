package xfer_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/adamwoolhether/xfer"
	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/native"
)

func ExampleDownload() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello\n")
	}))
	defer ts.Close()

	e, err := xfer.Download(ts.URL, os.Stdout, true, true)
	if err != nil {
		fmt.Println("download error:", err)
		return
	}
	defer e.Close()

	size, _ := easy.GetInfo(e, native.InfoSizeDownloadT, native.Off(0))
	fmt.Println("bytes:", size)
	// Output:
	// hello
	// bytes: 6
}

func ExampleDownload_malformedURL() {
	e, err := xfer.Download("http://[::1", os.Stdout, false, true)
	if e != nil {
		defer e.Close()
	}
	fmt.Println(errors.Is(err, native.URLMalformat))
	// Output: true
}
