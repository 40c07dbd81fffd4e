package download

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a failure reading the response from the network.
	ErrTransport = errors.New("transport failure")
	// ErrFilesystem marks a failure creating, writing or renaming the destination.
	ErrFilesystem = errors.New("filesystem failure")
	// ErrFilenameResolution is returned when no file name can be derived from the URI.
	ErrFilenameResolution = errors.New("cannot resolve download file name")

	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrDownloadCancelled     = errors.New("download cancelled")
	ErrGroupShutdown         = errors.New("download queue shut down")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
