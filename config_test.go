package xfer_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/xfer"
	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/internal/validate"
	"github.com/adamwoolhether/xfer/native"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"user_agent": "tester/1.0",
		"timeout": "1m30s",
		"max_recv_speed": 4096,
		"resume": true,
		"concurrency": 8
	}`)

	cfg, err := xfer.LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	exp := xfer.DefaultConfig()
	exp.UserAgent = "tester/1.0"
	exp.Timeout = xfer.Duration(90 * time.Second)
	exp.MaxRecvSpeed = 4096
	exp.Resume = true
	exp.Concurrency = 8

	if diff := cmp.Diff(exp, cfg); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	testCases := map[string]struct {
		body      string
		expFields map[string]string
	}{
		"unknown field": {body: `{"colour": "blue"}`},
		"bad duration":  {body: `{"timeout": "soon"}`},
		"invalid values": {
			body: `{"concurrency": 0, "sha256": "abc", "max_redirects": -2}`,
			expFields: map[string]string{
				"concurrency":   "concurrency must be 1 or greater",
				"sha256":        "sha256 must be 64 characters in length",
				"max_redirects": "max_redirects must be -1 or greater",
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := xfer.LoadConfig(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected an error")
			}

			if tc.expFields == nil {
				return
			}
			if diff := cmp.Diff(tc.expFields, validate.Fields(err)); diff != "" {
				t.Errorf("unexpected field errors (-want +got):\n%s", diff)
			}
		})
	}

	_, err := xfer.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("exp ErrNotExist; got: %v", err)
	}
}

func TestLoadConfig_XDG(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	cfg, err := xfer.LoadConfig("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	if diff := cmp.Diff(xfer.DefaultConfig(), cfg); diff != "" {
		t.Errorf("exp defaults without a file (-want +got):\n%s", diff)
	}

	saved := xfer.DefaultConfig()
	saved.Verbose = true
	saved.Proxy = "http://proxy.internal:3128"
	if err := xfer.SaveConfig(saved, ""); err != nil {
		t.Fatalf("saving config: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, xfer.ConfigFile)); err != nil {
		t.Fatalf("exp config under XDG_CONFIG_HOME: %v", err)
	}

	cfg, err = xfer.LoadConfig("")
	if err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if diff := cmp.Diff(saved, cfg); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestConfig_Apply(t *testing.T) {
	cfg := xfer.DefaultConfig()
	cfg.FollowRedirects = false
	cfg.MaxRedirects = 5
	cfg.Timeout = xfer.Duration(2 * time.Second)
	cfg.MaxRecvSpeed = 1 << 20
	cfg.AcceptEncoding = "gzip"
	cfg.Username = "gopher"

	e, err := easy.New(cfg.EasyOptions()...)
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer e.Close()

	if err := cfg.Apply(e); err != nil {
		t.Fatalf("applying config: %v", err)
	}

	s := e.Get()
	got := map[string]any{
		"follow":   s.Option(native.OptFollowLocation),
		"redirs":   s.Option(native.OptMaxRedirs),
		"timeout":  s.Option(native.OptTimeoutMS),
		"recv":     s.Option(native.OptMaxRecvSpeedLarge),
		"encoding": s.Option(native.OptAcceptEncoding),
		"user":     s.Option(native.OptUsername),
		"proxy":    s.Option(native.OptProxy),
	}
	exp := map[string]any{
		"follow":   int64(0),
		"redirs":   int64(5),
		"timeout":  int64(2000),
		"recv":     native.Off(1 << 20),
		"encoding": "gzip",
		"user":     "gopher",
		"proxy":    nil,
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("unexpected options (-want +got):\n%s", diff)
	}
}

func TestConfig_EasyOptions(t *testing.T) {
	cfg := xfer.DefaultConfig()
	cfg.Lenient = true
	cfg.UserAgent = "custom/2"

	e, err := easy.New(cfg.EasyOptions()...)
	if err != nil {
		t.Fatalf("creating handle: %v", err)
	}
	defer e.Close()

	if e.Strict() {
		t.Error("exp lenient handle")
	}
	if ua := e.Get().Option(native.OptUserAgent); ua != "custom/2" {
		t.Errorf("exp custom user agent; got: %v", ua)
	}
}
