package scrape

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/threadscrape/internal/model"
)

// Runner scrapes a single thread. *Scraper implements it.
type Runner interface {
	Run(ctx context.Context, threadURL string) (*model.ScrapeReport, error)
}

var _ Runner = (*Scraper)(nil)

// DefaultBatchSize is the number of threads scraped at the same time.
const DefaultBatchSize = 1

// Batch scrapes several threads concurrently.
// A failed thread is recorded in its report and does not stop the others.
type Batch struct {
	runner      Runner
	concurrency int
	mode        model.Mode
	logger      *slog.Logger
}

// BatchOption configures a Batch.
type BatchOption func(*Batch)

// WithBatchLogger sets the logger for batch-level output.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = logger
	}
}

// WithConcurrency sets how many threads are scraped at the same time.
func WithConcurrency(n int) BatchOption {
	return func(b *Batch) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBatchMode sets the mode recorded for threads the runner never reported on,
// such as those skipped after cancellation.
func WithBatchMode(mode model.Mode) BatchOption {
	return func(b *Batch) {
		b.mode = mode
	}
}

// NewBatch creates a Batch running threads through runner.
func NewBatch(runner Runner, opts ...BatchOption) *Batch {
	b := &Batch{
		runner:      runner,
		concurrency: DefaultBatchSize,
		mode:        model.ModeBypass,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Run scrapes every URL and returns one report per URL in input order.
// The error is non-nil only when ctx ends before every thread was started;
// threads that never started get a failed report carrying ctx's error.
func (b *Batch) Run(ctx context.Context, urls []string) ([]*model.ScrapeReport, error) {
	b.logger.Info("starting batch", "threads", len(urls), "concurrency", b.concurrency)
	start := time.Now()

	// Each goroutine writes only its own index.
	reports := make([]*model.ScrapeReport, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)

	var cancelled error
	for i, threadURL := range urls {
		if err := ctx.Err(); err != nil {
			cancelled = err
			for j := i; j < len(urls); j++ {
				r := model.NewScrapeReport(urls[j], b.mode)
				r.Fail(err)
				reports[j] = r
			}
			break
		}

		g.Go(func() error {
			b.logger.Debug("scraping thread", "url", threadURL, "index", i+1, "total", len(urls))

			r, err := b.runner.Run(ctx, threadURL)
			if r == nil {
				r = model.NewScrapeReport(threadURL, b.mode)
				r.Fail(err)
			}
			reports[i] = r

			if err != nil {
				b.logger.Warn("thread failed", "url", threadURL, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // failures are recorded per report

	b.logger.Info("batch complete", "threads", len(urls), "elapsed", time.Since(start))
	return reports, cancelled
}

// Failed returns the number of reports that did not end in a written file.
func Failed(reports []*model.ScrapeReport) int {
	n := 0
	for _, r := range reports {
		if r == nil || r.Status != model.StatusWritten {
			n++
		}
	}
	return n
}
