// Package encoding undoes the Content-Encoding of an HTTP response body.
//
// Two modes are offered. [Decode] works on a fully buffered body:
//
//	text, err := encoding.Decode(resp.Header, raw)
//
// [NewReader] wraps a live body so decompression happens as the caller
// reads, which lets large payloads flow to disk without being held in
// memory:
//
//	rc, err := encoding.NewReader(resp.Header, resp.Body)
//	defer rc.Close()
//	_, err = io.Copy(dst, rc)
//
// gzip and deflate are recognised; any other value, or no header, is
// passed through unchanged. Corrupt input surfaces as [ErrDecode].
package encoding
