package xfer

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/adrg/xdg"

	"github.com/adamwoolhether/xfer/download"
	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/internal/validate"
	"github.com/adamwoolhether/xfer/native"
)

// ConfigFile is the path of the configuration file relative to the XDG
// configuration directories.
const ConfigFile = "xfer/config.json"

// Duration is a time.Duration that reads from JSON strings such as "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the transfer settings shared by the command and by
// DownloadFile.
type Config struct {
	UserAgent       string   `json:"user_agent"`
	FollowRedirects bool     `json:"follow_redirects"`
	MaxRedirects    int      `json:"max_redirects" validate:"gte=-1"`
	Timeout         Duration `json:"timeout" validate:"gte=0"`
	ConnectTimeout  Duration `json:"connect_timeout" validate:"gte=0"`
	MaxRecvSpeed    int64    `json:"max_recv_speed" validate:"gte=0"`
	MaxSendSpeed    int64    `json:"max_send_speed" validate:"gte=0"`
	Proxy           string   `json:"proxy" validate:"omitempty,url"`
	AcceptEncoding  string   `json:"accept_encoding"`
	CookieJar       string   `json:"cookie_jar"`
	AWSSigV4        string   `json:"aws_sigv4"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	Verbose         bool     `json:"verbose"`
	Lenient         bool     `json:"lenient"`
	Resume          bool     `json:"resume"`
	SkipExisting    bool     `json:"skip_existing"`
	Progress        bool     `json:"progress"`
	SHA256          string   `json:"sha256" validate:"omitempty,len=64,hexadecimal"`
	Concurrency     int      `json:"concurrency" validate:"gte=1,lte=64"`

	Logger *slog.Logger `json:"-" validate:"-"`
}

// DefaultConfig returns the settings used when no file is found.
func DefaultConfig() Config {
	return Config{
		FollowRedirects: true,
		MaxRedirects:    30,
		ConnectTimeout:  Duration(300 * time.Second),
		Concurrency:     4,
	}
}

// Validate reports every invalid field of c.
func (c Config) Validate() error {
	return validate.Check(c)
}

// LoadConfig reads the configuration at path over DefaultConfig. An empty
// path searches the XDG configuration directories for ConfigFile and
// falls back to the defaults when none exists.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		found, err := xdg.SearchConfigFile(ConfigFile)
		if err != nil {
			return cfg, nil
		}
		path = found
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// ConfigPath returns where SaveConfig writes, creating parent directories.
func ConfigPath() (string, error) {
	return xdg.ConfigFile(ConfigFile)
}

// SaveConfig writes c as indented JSON to path, or to ConfigPath when path
// is empty.
func SaveConfig(c Config, path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
	}

	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return os.WriteFile(path, append(b, '\n'), 0o600)
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// EasyOptions returns the handle options c implies, followed by extra.
func (c Config) EasyOptions(extra ...easy.Option) []easy.Option {
	var opts []easy.Option
	if c.Logger != nil {
		opts = append(opts, easy.WithLogger(c.Logger))
	}
	if c.UserAgent != "" {
		opts = append(opts, easy.WithUserAgent(c.UserAgent))
	}
	if c.Lenient {
		opts = append(opts, easy.WithLenientErrors())
	}
	return append(opts, extra...)
}

// Apply sets the transfer options of c on e. Empty strings and zero limits
// leave the engine defaults in place.
func (c Config) Apply(e *easy.Easy) error {
	settings := []struct {
		opt native.Option
		val any
		use bool
	}{
		{native.OptFollowLocation, c.FollowRedirects, true},
		{native.OptMaxRedirs, c.MaxRedirects, true},
		{native.OptTimeoutMS, time.Duration(c.Timeout).Milliseconds(), c.Timeout > 0},
		{native.OptConnectTimeoutMS, time.Duration(c.ConnectTimeout).Milliseconds(), c.ConnectTimeout > 0},
		{native.OptMaxRecvSpeedLarge, native.Off(c.MaxRecvSpeed), c.MaxRecvSpeed > 0},
		{native.OptMaxSendSpeedLarge, native.Off(c.MaxSendSpeed), c.MaxSendSpeed > 0},
		{native.OptProxy, c.Proxy, c.Proxy != ""},
		{native.OptAcceptEncoding, c.AcceptEncoding, c.AcceptEncoding != ""},
		{native.OptCookieJar, c.CookieJar, c.CookieJar != ""},
		{native.OptAWSSigV4, c.AWSSigV4, c.AWSSigV4 != ""},
		{native.OptUsername, c.Username, c.Username != ""},
		{native.OptPassword, c.Password, c.Password != ""},
	}

	for _, s := range settings {
		if !s.use {
			continue
		}
		if err := e.Set(s.opt, s.val); err != nil {
			return err
		}
	}

	if c.Verbose {
		return e.OnDebug(easy.DebugLogger(c.logger()), nil)
	}
	return nil
}

// DownloadOptions returns the download options c implies.
func (c Config) DownloadOptions() []download.Option {
	var opts []download.Option
	if c.SHA256 != "" {
		opts = append(opts, download.WithChecksum(sha256.New(), c.SHA256))
	}
	if c.Resume {
		opts = append(opts, download.WithResume())
	}
	if c.SkipExisting {
		opts = append(opts, download.WithSkipExisting())
	}
	if c.Progress {
		opts = append(opts, download.WithProgress())
	}
	return opts
}
