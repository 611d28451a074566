package config

import "errors"

// Configuration validation errors.
// These are the ConfigError kind: they are returned before any network
// activity and the process refuses to start when one occurs.
var (
	// ErrNoThreadURL is returned when no thread URL was given.
	ErrNoThreadURL = errors.New("no thread URL specified: use --url")

	// ErrNoOutputDir is returned when no output directory was given.
	ErrNoOutputDir = errors.New("no output directory specified: use --out")

	// ErrMissingDelay is returned when DELAY_MS is not set.
	ErrMissingDelay = errors.New("DELAY_MS environment variable is not set")

	// ErrInvalidDelay is returned when DELAY_MS is not a non-negative integer.
	ErrInvalidDelay = errors.New("DELAY_MS environment variable must be a non-negative integer")

	// ErrMissingUserAgent is returned in direct mode when USER_AGENT is not set.
	ErrMissingUserAgent = errors.New("USER_AGENT environment variable is not set (required with --direct)")

	// ErrConflictingTransport is returned when proxy options are combined
	// incorrectly: they only apply to direct mode and are mutually exclusive.
	ErrConflictingTransport = errors.New("conflicting transport options: --proxy and --embedded-tor require --direct and cannot be used together")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrUnknownTemplate is returned when a forum template name is not defined.
	ErrUnknownTemplate = errors.New("unknown forum template")
)
