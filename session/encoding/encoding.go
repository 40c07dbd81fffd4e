package encoding

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// ErrDecode is wrapped by every failure to decompress a body.
var ErrDecode = errors.New("content decoding failed")

// Scheme identifies a supported Content-Encoding.
type Scheme int

const (
	Identity Scheme = iota
	Gzip
	Deflate
)

func (s Scheme) String() string {
	switch s {
	case Gzip:
		return "gzip"
	case Deflate:
		return "deflate"
	default:
		return "identity"
	}
}

// SchemeOf reports the scheme named by the Content-Encoding header.
// Header lookup and value comparison are case-insensitive.
func SchemeOf(h http.Header) Scheme {
	switch strings.ToLower(strings.TrimSpace(h.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		return Gzip
	case "deflate":
		return Deflate
	default:
		return Identity
	}
}

// Decode returns the decompressed form of body according to h.
func Decode(h http.Header, body []byte) ([]byte, error) {
	scheme := SchemeOf(h)
	if scheme == Identity {
		return body, nil
	}

	rc, err := newDecoder(scheme, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, wrap(scheme, err)
	}

	return out, nil
}

// NewReader wraps r so reads return decompressed bytes according to h.
// Closing the returned reader releases decoder state only; r stays
// owned by the caller.
func NewReader(h http.Header, r io.Reader) (io.ReadCloser, error) {
	scheme := SchemeOf(h)
	if scheme == Identity {
		return io.NopCloser(r), nil
	}

	src := &sourceReader{r: r}
	rc, err := newDecoder(scheme, src)
	if err != nil {
		if src.failed(err) {
			return nil, src.err
		}
		return nil, err
	}

	return &errReader{scheme: scheme, rc: rc, src: src}, nil
}

func newDecoder(scheme Scheme, r io.Reader) (io.ReadCloser, error) {
	switch scheme {
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, wrap(scheme, err)
		}
		return zr, nil
	case Deflate:
		br := bufio.NewReader(r)
		if isZlib(br) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, wrap(scheme, err)
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	default:
		return io.NopCloser(r), nil
	}
}

// isZlib peeks at the two byte zlib header: CM must be 8 (deflate) and
// the header checksum must divide by 31. Servers send both framings
// under "deflate".
func isZlib(br *bufio.Reader) bool {
	hdr, err := br.Peek(2)
	if err != nil {
		return false
	}
	return hdr[0]&0x0f == 8 && (uint16(hdr[0])<<8|uint16(hdr[1]))%31 == 0
}

func wrap(scheme Scheme, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, scheme, err)
}

// sourceReader remembers the last non-EOF error of the underlying
// stream so it can be told apart from a decompression failure.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		s.err = err
	}
	return n, err
}

func (s *sourceReader) failed(err error) bool {
	return s.err != nil && errors.Is(err, s.err)
}

// errReader tags decoder failures with ErrDecode. Source failures and
// io.EOF pass through untouched.
type errReader struct {
	scheme Scheme
	rc     io.ReadCloser
	src    *sourceReader
}

func (r *errReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	if r.src.failed(err) {
		return n, r.src.err
	}
	return n, wrap(r.scheme, err)
}

func (r *errReader) Close() error {
	return r.rc.Close()
}
