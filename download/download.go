package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adamwoolhether/xfer/easy"
	"github.com/adamwoolhether/xfer/native"
)

// partSuffix names the file partial data is kept in with WithResume.
const partSuffix = ".part"

// Handle performs the transfer configured on e and streams the body to a
// temp file in the same directory as destPath, renamed on success. On any
// error the temp file is removed, unless WithResume keeps it for the next
// attempt.
func Handle(ctx context.Context, e *easy.Easy, destPath string, logger *slog.Logger, optFns ...Option) error {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if destPath == "" {
		return errors.New("destination path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	file, offset, err := openTarget(destPath, opts.resume)
	if err != nil {
		return err
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful && !opts.resume {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	if err := seekPast(file, offset, opts.checksum); err != nil {
		return err
	}

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	if err := e.Set(native.OptFailOnError, true); err != nil {
		return fmt.Errorf("configuring handle: %w", err)
	}

	n, err := transfer(ctx, e, writer, offset, logger, opts.progress)
	if offset > 0 && errors.Is(err, native.RangeError) {
		logger.Info("server ignored resume, restarting", "path", destPath, "offset", offset)
		if err := restart(file, opts.checksum); err != nil {
			return err
		}
		offset = 0
		n, err = transfer(ctx, e, writer, offset, logger, opts.progress)
	}
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}
		return fmt.Errorf("transferring file body: %w", err)
	}

	length, _ := easy.GetInfo(e, native.InfoContentLengthDownT, native.Off(-1))
	if length >= 0 && n != int64(length) {
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", length, n),
		}
	}

	if err := opts.checksum.verify(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return nil
}

func openTarget(destPath string, resume bool) (*os.File, int64, error) {
	if !resume {
		file, err := os.CreateTemp(filepath.Dir(destPath), ".xfer-dl-*")
		if err != nil {
			return nil, 0, fmt.Errorf("creating temp file: %w", err)
		}
		return file, 0, nil
	}

	file, err := os.OpenFile(destPath+partSuffix, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("opening partial file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("inspecting partial file: %w", err)
	}

	return file, info.Size(), nil
}

// seekPast positions file after the first offset bytes, feeding them to
// the checksum on the way.
func seekPast(file *os.File, offset int64, sum *digest) error {
	if offset == 0 {
		return nil
	}

	if err := sum.absorb(file, offset); err != nil {
		return fmt.Errorf("hashing partial file: %w", err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking partial file: %w", err)
	}

	return nil
}

func restart(file *os.File, sum *digest) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncating partial file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking partial file: %w", err)
	}
	sum.reset()
	return nil
}

// transfer runs one attempt starting at offset and returns the bytes
// written. Failures are reported whatever the handle's error mode.
func transfer(ctx context.Context, e *easy.Easy, w io.Writer, offset int64, logger *slog.Logger, progress bool) (int64, error) {
	if err := e.Set(native.OptResumeFromLarge, native.Off(offset)); err != nil {
		return 0, fmt.Errorf("configuring resume: %w", err)
	}

	if progress {
		pl := &progressLogger{logger: logger, offset: native.Off(offset), startTime: time.Now()}
		if err := e.OnProgressSimple(pl.report); err != nil {
			return 0, fmt.Errorf("configuring progress: %w", err)
		}
		defer func() { _ = e.OnProgressSimple(nil) }()
	}

	n, err := e.WriteToContext(ctx, w)
	if err == nil {
		err = e.Err()
	}
	return n, err
}
