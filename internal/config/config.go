package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/threadscrape/internal/model"
)

// Default configuration values.
const (
	// DefaultFlareSolverrURL is the endpoint of a locally running FlareSolverr.
	DefaultFlareSolverrURL = "http://localhost:8191/v1"

	// DefaultMaxTimeout is how long FlareSolverr may spend solving one request.
	DefaultMaxTimeout = 60 * time.Second

	// DefaultTimeout is the HTTP client timeout for a single request.
	DefaultTimeout = 90 * time.Second

	// SolverTimeoutMargin is added to MaxTimeout for the FlareSolverr client,
	// which must outlast a full solve.
	SolverTimeoutMargin = 30 * time.Second

	// DefaultBatchSize scrapes one thread at a time.
	DefaultBatchSize = 1

	// DefaultMaxBodySize limits the page body read in direct mode.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout bounds the embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultTemplate is the built-in forum template.
	DefaultTemplate = "woltlab"

	// AppName is the application name used for XDG directory paths.
	AppName = "threadscrape"
)

// Config holds all configuration options for threadscrape.
// It is populated from CLI flags and the environment, validated once, and
// passed down explicitly.
type Config struct {
	// ThreadURLs are the threads to scrape. At least one is required.
	ThreadURLs []string

	// OutputDir receives one "<slug>.md" file per thread.
	OutputDir string

	// Mode selects bypass (FlareSolverr) or direct fetching.
	Mode model.Mode

	// Delay is the minimum gap between the starts of two page requests,
	// shared by every fetch in the process. Read from DELAY_MS.
	Delay time.Duration

	// UserAgent is sent with direct requests. Read from USER_AGENT.
	UserAgent string

	// FlareSolverrURL is the bypass service endpoint.
	FlareSolverrURL string

	// MaxTimeout is passed to FlareSolverr as maxTimeout.
	MaxTimeout time.Duration

	// Timeout is the HTTP client timeout for each request.
	Timeout time.Duration

	// ProxyAddress routes direct requests through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// EmbeddedTor routes direct requests through an embedded Tor daemon.
	EmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// MaxPages aborts a thread that has not repeated a page after this many
	// pages. Zero means no limit.
	MaxPages int

	// MaxBodySize limits how much of a direct response is read.
	MaxBodySize int64

	// BatchSize is the number of threads scraped concurrently.
	BatchSize int

	// TemplateName overrides the forum template chosen from the config file.
	TemplateName string

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// File holds templates and site settings loaded from the config file.
	File *File

	// SaveHistory records every run in the history database.
	SaveHistory bool

	// HistoryDir is the directory of the history database.
	HistoryDir string

	// Verbose enables debug logging.
	Verbose bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Mode:              model.ModeBypass,
		Delay:             -1,
		FlareSolverrURL:   DefaultFlareSolverrURL,
		MaxTimeout:        DefaultMaxTimeout,
		Timeout:           DefaultTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
		SaveHistory:       true,
		HistoryDir:        XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for threadscrape.
// On Linux: ~/.local/share/threadscrape
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for threadscrape.
// On Linux: ~/.config/threadscrape
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if len(c.ThreadURLs) == 0 {
		return ErrNoThreadURL
	}
	for _, u := range c.ThreadURLs {
		if u == "" {
			return ErrNoThreadURL
		}
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	// NewConfig starts with a negative delay so that a missing DELAY_MS
	// cannot silently become "no throttle".
	if c.Delay < 0 {
		return ErrMissingDelay
	}

	if c.Mode == model.ModeDirect && c.UserAgent == "" {
		return ErrMissingUserAgent
	}

	if c.ProxyAddress != "" || c.EmbeddedTor {
		if c.Mode != model.ModeDirect || (c.ProxyAddress != "" && c.EmbeddedTor) {
			return ErrConflictingTransport
		}
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// SolverClientTimeout returns the HTTP timeout for requests to FlareSolverr.
// It is Timeout, raised to MaxTimeout plus SolverTimeoutMargin when shorter.
func (c *Config) SolverClientTimeout() time.Duration {
	return max(c.Timeout, c.MaxTimeout+SolverTimeoutMargin)
}
