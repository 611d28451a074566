package model

import (
	"errors"
	"fmt"
)

// Error kinds produced while scraping a thread.
// Every failure returned by the session, fetch and parse layers wraps exactly
// one of these, so callers can classify it with errors.Is. None of them are
// retried; any of them abandons the thread.
var (
	// ErrSession is returned when a bypass session cannot be created or destroyed.
	ErrSession = errors.New("session error")

	// ErrFetch is returned when a page cannot be retrieved, including transport
	// errors and failures reported by the bypass service.
	ErrFetch = errors.New("fetch error")

	// ErrParse is returned when the expected post structure is not found.
	ErrParse = errors.New("parse error")

	// ErrNoPosts is returned when a page contains no post containers.
	// This is the closest signal to "page does not exist", but it is also what
	// a thread without posts looks like.
	ErrNoPosts = fmt.Errorf("%w: no posts found", ErrParse)

	// ErrPageLimit is returned when a thread keeps producing new pages past
	// the configured maximum.
	ErrPageLimit = errors.New("page limit exceeded")
)

// MissingFieldError reports a required post field that could not be located.
type MissingFieldError struct {
	// Field is the name of the missing field (author, anchor, date, body).
	Field string

	// Post is the 1-based index of the post on its page.
	Post int
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: no %s element found in post %d", ErrParse, e.Field, e.Post)
}

// Unwrap makes MissingFieldError match ErrParse.
func (e *MissingFieldError) Unwrap() error {
	return ErrParse
}
