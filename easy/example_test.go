package easy_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/native"
)

func ExampleEasy_WriteTo() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello, world")
	}))
	defer ts.Close()

	e, err := easy.New()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer e.Close()

	if err := e.Set(native.OptURL, ts.URL); err != nil {
		fmt.Println(err)
		return
	}
	if _, err := e.WriteTo(os.Stdout); err != nil {
		fmt.Println(err)
		return
	}

	status, _ := easy.GetInfo(e, native.InfoResponseCode, int64(0))
	fmt.Printf("\nstatus %d\n", status)
	// Output:
	// hello, world
	// status 200
}

func ExampleEasy_Set() {
	e, err := easy.New()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer e.Close()

	err = e.Set(native.OptFollowLocation, "yes")
	fmt.Println(errors.Is(err, native.BadFunctionArgument))
	// Output: true
}

func ExampleWithLenientErrors() {
	e, err := easy.New(easy.WithLenientErrors())
	if err != nil {
		fmt.Println(err)
		return
	}
	defer e.Close()

	_ = e.Set(native.OptURL, "http://[::1")
	if err := e.Perform(); err != nil {
		fmt.Println("unexpected:", err)
	}
	fmt.Println(e.OK(), e.Code() == native.URLMalformat)
	// Output: false true
}

func ExampleList() {
	headers := easy.NewList("Accept: text/plain")
	defer headers.Close()

	headers.Append("X-Request: 1")
	fmt.Println(headers.Strings())
	// Output: [Accept: text/plain X-Request: 1]
}
