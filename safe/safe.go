// Package safe holds the small input guards used at the doodle service's
// edges: path traversal checks for saved images, file-name validation,
// URL scheme checks for configured endpoints and bounded reads.
package safe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a name escapes its base directory.
var ErrPathTraversal = errors.New("safe: path traversal detected")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("safe: only http and https schemes are allowed")

// SafePath joins base and name and verifies the result stays under base.
func SafePath(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	if !strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) &&
		cleaned != filepath.Clean(base) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ValidateFileName accepts alphanumerics, underscore, hyphen and dot.
func ValidateFileName(s string) error {
	if s == "" {
		return fmt.Errorf("safe: file name must not be empty")
	}
	if len(s) > 255 {
		return fmt.Errorf("safe: file name too long (max 255)")
	}
	for _, r := range s {
		if !isNameChar(r) {
			return fmt.Errorf("safe: invalid character %q in file name", r)
		}
	}
	return nil
}

// ValidateHTTPURL checks that rawURL is absolute with an http or https
// scheme and a host. Loopback hosts are allowed: the server and the model
// endpoint are operator-configured.
func ValidateHTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("safe: URL has no host")
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r and fails if there is more.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("safe: body exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
