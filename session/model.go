package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/adamwoolhether/qscrape/session/download"
	"github.com/adamwoolhether/qscrape/session/encoding"
)

// maxErrBodySize caps the amount of decoded response body kept when
// building an error for an unexpected status code or malformed JSON.
// This prevents unbounded memory usage when a large response arrives
// with a wrong status.
const maxErrBodySize = 4 << 10 // 4KB

// execFn represents a func to operate on a response.
type execFn func(response *http.Response) error

var (
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
	// ErrMalformedResponse is the sentinel error wrapped by [MalformedResponseError].
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotImplemented is the sentinel error wrapped by [NotImplementedError].
	ErrNotImplemented = errors.New("not implemented")

	// ErrTransport wraps connection, DNS and TLS failures as well as
	// failures reading a response body off the network.
	ErrTransport = download.ErrTransport
	// ErrDecode indicates a corrupt gzip or deflate body.
	ErrDecode = encoding.ErrDecode
)

// UnexpectedStatusError is returned when the HTTP response status code
// is not 200 OK. Body holds up to 4KB of the decoded response text.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is returned when a JSON response cannot be
// decoded even after unicode repair.
type MalformedResponseError struct {
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMalformedResponse, e.Err)
}

func (e *MalformedResponseError) Unwrap() []error {
	return []error{ErrMalformedResponse, e.Err}
}

// NotImplementedError is returned by operations a [Session] declares
// but cannot perform. Check [Session.Supports] to avoid it.
type NotImplementedError struct {
	Op     Capability
	Reason string
}

func (e *NotImplementedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotImplemented)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotImplemented, e.Reason)
}

func (e *NotImplementedError) Unwrap() error {
	return ErrNotImplemented
}

func truncate(s string) string {
	if len(s) > maxErrBodySize {
		return s[:maxErrBodySize]
	}
	return s
}
