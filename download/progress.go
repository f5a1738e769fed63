package download

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/adamwoolhether/xfer/native"
)

// progressLogger logs transfer progress at most once per second. It is
// driven by the handle's xferinfo callback.
type progressLogger struct {
	logger    *slog.Logger
	offset    native.Off
	startTime time.Time
	lastLog   time.Time
	done      bool
}

func (pl *progressLogger) report(dlTotal, dlNow, _, _ native.Off) bool {
	if pl.done || dlNow == 0 {
		return true
	}

	total, now := dlTotal+pl.offset, dlNow+pl.offset
	if dlTotal > 0 && dlNow == dlTotal {
		pl.done = true
		pl.log("download complete", now, total)
		return true
	}

	if time.Since(pl.lastLog) >= time.Second {
		pl.lastLog = time.Now()
		pl.log("downloading", now, total)
	}

	return true
}

func (pl *progressLogger) log(msg string, transferred, total native.Off) {
	elapsed := time.Since(pl.startTime)
	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", int64(transferred),
		"total", int64(total),
		"mbps", fmt.Sprintf("%.2f", float64(transferred-pl.offset)/elapsed.Seconds()/(1024*1024)),
	}
	if total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(transferred)/float64(total)*100))
	}
	pl.logger.Info(msg, attrs...)
}
