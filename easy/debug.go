package easy

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/adamwoolhether/xfer/native"
)

// DebugLogger returns a DebugHandler that turns the engine's trace into
// debug level records on logger. Payloads are logged by size only.
//
//	e.OnDebug(easy.DebugLogger(logger), nil)
func DebugLogger(logger *slog.Logger) DebugHandler {
	return func(typ native.DebugType, p []byte, _ any) int {
		ctx := context.Background()
		if !logger.Enabled(ctx, slog.LevelDebug) {
			return 0
		}

		switch typ {
		case native.DebugText:
			logger.DebugContext(ctx, string(bytes.TrimRight(p, "\r\n")), "type", typ)
		case native.DebugHeaderIn, native.DebugHeaderOut:
			for line := range bytes.Lines(p) {
				line = bytes.TrimRight(line, "\r\n")
				if len(line) == 0 {
					continue
				}
				logger.DebugContext(ctx, string(line), "type", typ)
			}
		default:
			logger.DebugContext(ctx, "payload", "type", typ, "bytes", len(p))
		}
		return 0
	}
}
