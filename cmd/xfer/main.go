// Command xfer downloads and uploads files using the settings in the
// user's xfer configuration file.
//
// Usage:
//
//	xfer [flags] get URL...         save each URL into the output directory
//	xfer [flags] cat URL            write URL to standard output
//	xfer [flags] put FILE URL       upload FILE to URL
//	xfer [flags] config             print the effective configuration
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"

	"github.com/adamwoolhether/xfer"
	"github.com/adamwoolhether/xfer/download"
	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/native"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("xfer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", "", "Configuration file (default: XDG config dir)")
		output     = fs.String("output", ".", "Output directory for get")
		verbose    = fs.Bool("verbose", false, "Log protocol traffic")
		resume     = fs.Bool("resume", false, "Keep and continue partial downloads")
		sha256     = fs.String("sha256", "", "SHA256 checksum of a single download")
		limit      = fs.Int64("limit", 0, "Receive rate limit in bytes per second")
		user       = fs.String("user", "", "User name for put")
		password   = fs.String("password", "", "Password for put")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := xfer.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
		cfg.Verbose = true
	}
	cfg.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if *resume {
		cfg.Resume = true
	}
	if *sha256 != "" {
		cfg.SHA256 = *sha256
	}
	if *limit > 0 {
		cfg.MaxRecvSpeed = *limit
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	switch cmd, rest := rest[0], rest[1:]; cmd {
	case "get":
		if len(rest) == 0 {
			return errors.New("get needs at least one URL")
		}
		if len(rest) > 1 && cfg.SHA256 != "" {
			return errors.New("a checksum applies to a single URL")
		}
		return get(ctx, cfg, *output, rest)

	case "cat":
		if len(rest) != 1 {
			return errors.New("cat needs exactly one URL")
		}
		return cat(ctx, cfg, rest[0], stdout)

	case "put":
		if len(rest) != 2 {
			return errors.New("put needs a FILE and a URL")
		}
		return put(ctx, cfg, rest[0], rest[1], *user, *password, stdin)

	case "config":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func get(ctx context.Context, cfg xfer.Config, dir string, urls []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	q := download.NewQueue(cfg.Concurrency, cfg.Logger)
	for _, raw := range urls {
		dest := filepath.Join(dir, fileName(raw))
		q.Start(ctx, func(ctx context.Context) error {
			if err := xfer.DownloadFile(ctx, raw, dest, cfg); err != nil {
				return fmt.Errorf("downloading %s: %w", raw, err)
			}
			cfg.Logger.Info("saved", "url", raw, "path", dest)
			return nil
		})
	}

	return q.Wait()
}

func cat(ctx context.Context, cfg xfer.Config, raw string, w io.Writer) error {
	e, err := easy.New(cfg.EasyOptions()...)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := cfg.Apply(e); err != nil {
		return err
	}
	if err := e.Set(native.OptURL, raw); err != nil {
		return err
	}

	if _, err := e.WriteToContext(ctx, w); err != nil {
		return err
	}
	return e.Err()
}

func put(ctx context.Context, cfg xfer.Config, file, raw, user, password string, stdin io.Reader) error {
	r := stdin
	size := xfer.UnknownSize

	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}
		r, size = f, info.Size()
	}

	if user != "" {
		cfg.Username = user
	}
	if password != "" {
		cfg.Password = password
	}

	e, err := xfer.UploadConfig(ctx, r, raw, size, cfg)
	if e != nil {
		defer e.Close()
	}
	if err != nil {
		return err
	}
	if err := e.Err(); err != nil {
		return err
	}

	secs, _ := easy.GetInfo(e, native.InfoTotalTime, 0.0)
	cfg.Logger.Info("uploaded", "url", raw, "bytes", size, "seconds", secs)
	return nil
}

// fileName picks a local name for raw from the last element of its path.
func fileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "download"
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "index.html"
	}
	return name
}
