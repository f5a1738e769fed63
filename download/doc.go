// Package download streams a transfer to disk with optional checksum
// validation, resume and progress reporting.
//
// # Single Download
//
// [Handle] runs the transfer configured on an [easy.Easy] and writes the
// body to a temporary file alongside the destination path, renaming it
// on success:
//
//	err := download.Handle(ctx, e, destPath, logger,
//		download.WithChecksum(sha256.New(), want),
//	)
//
// # Batches
//
// A [Queue] runs downloads concurrently, one handle per job, bounded by
// a concurrency limit.
package download
