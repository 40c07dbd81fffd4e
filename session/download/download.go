package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adamwoolhether/qscrape/session/encoding"
)

// Handle streams body, decoded according to header's Content-Encoding,
// to a temp file in the same directory as destPath, which is renamed to
// destPath on success. On any error the temp file is removed.
// contentLength is the raw (still encoded) length, -1 if unknown. If body
// is an io.Closer it is closed as soon as writing fails, so a stalled
// read cannot hold the download open.
func Handle(ctx context.Context, header http.Header, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	opts, err := apply(optFns)
	if err != nil {
		return fmt.Errorf("applying option: %w", err)
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("skipping existing file", "path", destPath)
			return nil
		}
	}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".qscrape-dl-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrFilesystem, err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	raw := &networkReader{r: &contextReader{ctx: ctx, r: body}}

	decoded, err := encoding.NewReader(header, raw)
	if err != nil {
		return err
	}
	defer decoded.Close()

	var writer io.Writer = &fileWriter{f: file}
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}

	if opts.progress {
		total := contentLength
		if encoding.SchemeOf(header) != encoding.Identity {
			total = -1
		}
		writer = &progressWriter{
			w:         writer,
			logger:    logger,
			path:      destPath,
			total:     total,
			startTime: time.Now(),
		}
	}

	abort := func() {
		if c, ok := body.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Error("closing body after write failure", "error", err)
			}
		}
	}

	if err := pump(writer, decoded, abort); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}

		return fmt.Errorf("copying file body: %w", err)
	}

	if contentLength >= 0 && raw.n != contentLength {
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, raw.n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing temp file: %w", ErrFilesystem, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %w", ErrFilesystem, err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return fmt.Errorf("%w: renaming temp file: %w", ErrFilesystem, err)
	}

	successful = true

	return nil
}

// pump copies src into dst with reading and writing on separate
// goroutines joined by a pipe, so network and disk I/O overlap.
//
// Either side may fail first: a read failure closes the pipe for the
// writer, a write failure closes it for the reader and calls abort to
// unblock a read still waiting on the network. errgroup keeps only the
// first error it sees, and a read error caused by abort is dropped, so
// the result is settled exactly once.
func pump(dst io.Writer, src io.Reader, abort func()) error {
	pr, pw := io.Pipe()

	var aborted atomic.Bool

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(pw, src)
		pw.CloseWithError(err)
		if err != nil && aborted.Load() {
			return nil
		}
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(dst, pr)
		pr.CloseWithError(err)
		if err != nil {
			aborted.Store(true)
			abort()
		}
		return err
	})

	return g.Wait()
}

// networkReader counts raw bytes and tags read failures as transport
// errors. Context errors are left as they are.
type networkReader struct {
	r io.Reader
	n int64
}

func (nr *networkReader) Read(p []byte) (int, error) {
	n, err := nr.r.Read(p)
	nr.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return n, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	return n, err
}

// fileWriter tags write failures as filesystem errors.
type fileWriter struct {
	f *os.File
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	n, err := fw.f.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: writing %s: %w", ErrFilesystem, fw.f.Name(), err)
	}
	return n, nil
}

// contextReader aborts reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
