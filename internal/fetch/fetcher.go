package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/threadscrape/internal/model"
)

// PageFetcher fetches numbered thread pages through a shared Gate.
type PageFetcher struct {
	gate   *Gate
	logger *slog.Logger
}

// Option configures a PageFetcher.
type Option func(*PageFetcher)

// WithLogger sets the logger for per-page debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *PageFetcher) {
		f.logger = logger
	}
}

// NewPageFetcher creates a fetcher throttled by gate.
func NewPageFetcher(gate *Gate, opts ...Option) *PageFetcher {
	f := &PageFetcher{gate: gate}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// GetPage waits for the gate and fetches page n of the thread.
// The returned page carries the raw markup; it is not interpreted.
func (f *PageFetcher) GetPage(ctx context.Context, session Session, threadURL string, n int) (*model.Page, error) {
	pageURL, err := PageURL(threadURL, n)
	if err != nil {
		return nil, err
	}

	if err := f.gate.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	html, err := session.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched page",
		"page", n,
		"url", pageURL,
		"session", session.ID(),
		"bytes", len(html),
		"elapsed", time.Since(start),
	)

	return &model.Page{
		Number: n,
		URL:    pageURL,
		HTML:   html,
	}, nil
}
