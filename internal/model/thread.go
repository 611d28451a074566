package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidThreadURL is returned when a thread URL cannot be used to derive
// an output file name.
var ErrInvalidThreadURL = errors.New("invalid thread URL")

// ThreadSlug returns the last non-empty path segment of a thread URL.
// For "https://forum.example/Thread/12345-example/" it returns "12345-example".
func ThreadSlug(threadURL string) (string, error) {
	u, err := url.Parse(threadURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidThreadURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidThreadURL, u.Scheme)
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		switch segments[i] {
		case "":
			continue
		case ".", "..":
			return "", fmt.Errorf("%w: relative path segment in %q", ErrInvalidThreadURL, threadURL)
		default:
			return segments[i], nil
		}
	}
	return "", fmt.Errorf("%w: no path segment in %q", ErrInvalidThreadURL, threadURL)
}
