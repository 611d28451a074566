package model

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how pages are retrieved.
type Mode string

const (
	// ModeBypass fetches pages through a FlareSolverr session.
	ModeBypass Mode = "bypass"

	// ModeDirect fetches pages with a plain HTTP client and a fixed User-Agent.
	ModeDirect Mode = "direct"
)

// Status is the final state of a scrape run.
type Status string

const (
	// StatusRunning marks a run that has not finished yet.
	StatusRunning Status = "running"

	// StatusWritten marks a run whose output file was written.
	StatusWritten Status = "written"

	// StatusFailed marks a run that was abandoned. No output was written.
	StatusFailed Status = "failed"
)

// ScrapeReport records the outcome of scraping one thread.
// It is produced for failed runs too, so the run history can show why a
// thread was abandoned.
type ScrapeReport struct {
	// ID identifies the run in the history database.
	ID uuid.UUID `json:"id"`

	// ThreadURL is the URL of the scraped thread.
	ThreadURL string `json:"thread_url"`

	// OutputPath is the markdown file the run writes (or would have written).
	OutputPath string `json:"output_path"`

	// Mode is the transport used for the run.
	Mode Mode `json:"mode"`

	// Status is the final state of the run.
	Status Status `json:"status"`

	// Pages holds the pages whose content went into the output, in order.
	Pages []*Page `json:"pages"`

	// Fetches counts page requests, including the final repeated page.
	Fetches int `json:"fetches"`

	// Bytes is the size of the aggregated markdown.
	Bytes int `json:"bytes"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Error is the failure that abandoned the run. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for storage.
	ErrorMessage string `json:"error,omitempty"`
}

// NewScrapeReport creates a report for a run that starts now.
func NewScrapeReport(threadURL string, mode Mode) *ScrapeReport {
	return &ScrapeReport{
		ID:        uuid.New(),
		ThreadURL: threadURL,
		Mode:      mode,
		Status:    StatusRunning,
		Pages:     make([]*Page, 0),
		StartedAt: time.Now(),
	}
}

// Fail marks the run as failed with the given error.
func (r *ScrapeReport) Fail(err error) {
	r.Status = StatusFailed
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	r.FinishedAt = time.Now()
}

// Complete marks the run as written.
func (r *ScrapeReport) Complete(bytes int) {
	r.Status = StatusWritten
	r.Bytes = bytes
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took, or zero while it is running.
func (r *ScrapeReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
