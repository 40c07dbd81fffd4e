// Package download streams HTTP response bodies to disk, undoing any
// Content-Encoding on the way, with optional checksum validation and
// progress reporting.
//
// # Single Download
//
// [ResolvePath] picks the destination file, then [Handle] writes the
// decoded body to a temporary file alongside it and atomically renames
// it on success:
//
//	dest, err := download.ResolvePath(uri, "")
//	err = download.Handle(ctx, resp.Header, resp.Body, resp.ContentLength, dest, logger)
//
// # Async Downloads
//
// [Queue] runs downloads in the background with an optional concurrency
// limit; each one is tracked by a [Result].
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/qscrape/session] package, which invokes
// these internally and re-exports all download options as
// session.With* functions.
package download
