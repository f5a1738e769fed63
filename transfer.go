package xfer

import (
	"context"
	"io"
	"log/slog"

	"github.com/adamwoolhether/xfer/download"
	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/native"
)

// UnknownSize tells Upload that the length of the input is not known in
// advance. HTTP uploads are then sent chunked.
const UnknownSize int64 = -1

func modeOptions(strict bool) []easy.Option {
	if strict {
		return nil
	}
	return []easy.Option{easy.WithLenientErrors()}
}

// Download fetches url into w. When strict is false failures are only
// recorded on the returned handle. The handle is nil only when it could
// not be created; otherwise the caller must Close it.
func Download(url string, w io.Writer, followRedirects, strict bool) (*easy.Easy, error) {
	return DownloadContext(context.Background(), url, w, followRedirects, strict)
}

// DownloadContext is Download bounded by ctx.
func DownloadContext(ctx context.Context, url string, w io.Writer, followRedirects, strict bool) (*easy.Easy, error) {
	e, err := easy.New(modeOptions(strict)...)
	if err != nil {
		return nil, err
	}

	if err := e.Set(native.OptURL, url); err != nil {
		return e, err
	}
	if err := e.Set(native.OptFollowLocation, followRedirects); err != nil {
		return e, err
	}

	_, err = e.WriteToContext(ctx, w)
	return e, err
}

// Upload sends everything r yields to url using the given credentials.
// With size UnknownSize the request carries chunked transfer encoding and
// no Expect header; those headers only live for this call so the returned
// handle can be reused for another request.
func Upload(r io.Reader, url, username, password string, size int64, strict bool) (*easy.Easy, error) {
	return UploadContext(context.Background(), r, url, username, password, size, strict)
}

// UploadContext is Upload bounded by ctx.
func UploadContext(ctx context.Context, r io.Reader, url, username, password string, size int64, strict bool) (*easy.Easy, error) {
	e, err := easy.New(modeOptions(strict)...)
	if err != nil {
		return nil, err
	}

	if err := e.Set(native.OptUsername, username); err != nil {
		return e, err
	}
	if err := e.Set(native.OptPassword, password); err != nil {
		return e, err
	}
	return e, upload(ctx, e, r, url, size)
}

// UploadConfig is UploadContext with the handle built from cfg, so proxy,
// timeouts, send speed, credentials and verbose logging all apply. Failures
// are only recorded on the handle when cfg.Lenient is set.
func UploadConfig(ctx context.Context, r io.Reader, url string, size int64, cfg Config) (*easy.Easy, error) {
	e, err := easy.New(cfg.EasyOptions(easy.WithLogger(cfg.logger()))...)
	if err != nil {
		return nil, err
	}

	if err := cfg.Apply(e); err != nil {
		return e, err
	}
	return e, upload(ctx, e, r, url, size)
}

func upload(ctx context.Context, e *easy.Easy, r io.Reader, url string, size int64) error {
	settings := []struct {
		opt native.Option
		val any
	}{
		{native.OptURL, url},
		{native.OptInFileSizeLarge, native.Off(size)},
		{native.OptUpload, true},
	}
	for _, s := range settings {
		if err := e.Set(s.opt, s.val); err != nil {
			return err
		}
	}

	if size == UnknownSize {
		headers := easy.NewList("Transfer-Encoding: chunked", "Expect:")
		defer headers.Close()

		// Ignored by protocols other than HTTP.
		if err := e.Set(native.OptHTTPHeader, headers); err != nil {
			return err
		}
		defer e.Clear(native.OptHTTPHeader)
	}

	_, err := e.ReadFromContext(ctx, r)
	return err
}

// DownloadFile saves url to destPath with the settings in cfg. Extra
// download options are applied after the ones derived from cfg.
func DownloadFile(ctx context.Context, url, destPath string, cfg Config, optFns ...download.Option) error {
	logger := cfg.logger()

	e, err := easy.New(cfg.EasyOptions(easy.WithLogger(logger))...)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := cfg.Apply(e); err != nil {
		return err
	}
	if err := e.Set(native.OptURL, url); err != nil {
		return err
	}

	opts := append(cfg.DownloadOptions(), optFns...)
	if err := download.Handle(ctx, e, destPath, logger, opts...); err != nil {
		logger.Debug("download failed", slog.String("url", url), slog.Any("error", err))
		return err
	}
	return nil
}
