package fetch

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrInvalidPageNumber is returned for page numbers below 1.
var ErrInvalidPageNumber = errors.New("page numbers start at 1")

// PageURL returns the URL of page n of a thread.
//
//	PageURL("https://forum.example/thread/999-foo/", 2)
//	// https://forum.example/thread/999-foo/index2.html
//
// A missing trailing slash on the thread URL is added.
func PageURL(threadURL string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPageNumber, n)
	}

	u, err := url.Parse(threadURL)
	if err != nil {
		return "", fmt.Errorf("invalid thread URL %q: %w", threadURL, err)
	}

	return u.JoinPath(fmt.Sprintf("index%d.html", n)).String(), nil
}
