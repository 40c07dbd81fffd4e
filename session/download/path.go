package download

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ResolvePath returns the file a download of rawURL should be written to.
//
// An empty dest yields the final segment of the URL path, so
// "https://host/dir/file.js" resolves to "file.js". A dest naming an
// existing directory yields that segment inside the directory. Any other
// dest is returned unchanged.
func ResolvePath(rawURL, dest string) (string, error) {
	if dest == "" {
		return FileName(rawURL)
	}

	info, err := os.Stat(dest)
	if err != nil || !info.IsDir() {
		return dest, nil
	}

	name, err := FileName(rawURL)
	if err != nil {
		return "", err
	}

	return filepath.Join(dest, name), nil
}

// FileName derives a file name from the last segment of rawURL's path.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFilenameResolution, err)
	}

	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "", &Error{Err: ErrFilenameResolution, Detail: fmt.Sprintf("no final path segment in %q", rawURL)}
	}

	name := path.Base(u.Path)
	switch name {
	case ".", "..", "/":
		return "", &Error{Err: ErrFilenameResolution, Detail: fmt.Sprintf("unusable path segment %q in %q", name, rawURL)}
	}

	return name, nil
}
