package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/threadscrape/internal/fetch"
	"github.com/nao1215/threadscrape/internal/model"
	"github.com/nao1215/threadscrape/internal/report"
)

// DefaultCloseTimeout bounds the session close that runs after the loop.
const DefaultCloseTimeout = 30 * time.Second

// PageGetter fetches a numbered page of a thread within a session.
type PageGetter interface {
	GetPage(ctx context.Context, session fetch.Session, threadURL string, n int) (*model.Page, error)
}

// PageParser renders the markup of one page to markdown.
type PageParser interface {
	ParsePage(html string) (string, error)
}

var _ PageGetter = (*fetch.PageFetcher)(nil)

// Scraper scrapes whole threads. It is safe for concurrent use as long as
// its Opener is; every Run opens its own session.
type Scraper struct {
	opener       fetch.Opener
	fetcher      PageGetter
	parser       PageParser
	outputDir    string
	mode         model.Mode
	maxPages     int
	closeTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// WithMode records the transport in every report. Default is bypass.
func WithMode(mode model.Mode) Option {
	return func(s *Scraper) {
		s.mode = mode
	}
}

// WithMaxPages fails a thread that is still producing new pages after n
// pages. Zero disables the limit.
func WithMaxPages(n int) Option {
	return func(s *Scraper) {
		if n >= 0 {
			s.maxPages = n
		}
	}
}

// WithCloseTimeout bounds how long closing a session may take.
func WithCloseTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		if d > 0 {
			s.closeTimeout = d
		}
	}
}

// New creates a Scraper that writes threads into outputDir.
func New(opener fetch.Opener, fetcher PageGetter, parser PageParser, outputDir string, opts ...Option) *Scraper {
	s := &Scraper{
		opener:       opener,
		fetcher:      fetcher,
		parser:       parser,
		outputDir:    outputDir,
		mode:         model.ModeBypass,
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run scrapes threadURL and writes <outputDir>/<slug>.md.
//
// The returned report is never nil. On failure it carries the error, no
// file is written and an existing file of the same name is left untouched.
func (s *Scraper) Run(ctx context.Context, threadURL string) (*model.ScrapeReport, error) {
	run := model.NewScrapeReport(threadURL, s.mode)

	slug, err := model.ThreadSlug(threadURL)
	if err != nil {
		run.Fail(err)
		return run, err
	}
	run.OutputPath = report.OutputPath(s.outputDir, slug)

	s.logger.Info("scraping thread", "url", threadURL, "out", s.outputDir)

	session, err := s.opener.Open(ctx)
	if err != nil {
		run.Fail(err)
		return run, err
	}

	content, loopErr := s.collect(ctx, session, run)
	closeErr := s.close(ctx, session)
	if err := errors.Join(loopErr, closeErr); err != nil {
		s.logger.Warn("thread abandoned", "url", threadURL, "pages", len(run.Pages), "error", err)
		run.Fail(err)
		return run, err
	}

	path, err := report.WriteThread(s.outputDir, slug, content)
	if err != nil {
		run.Fail(err)
		return run, err
	}
	run.OutputPath = path
	run.Complete(len(content))

	s.logger.Info("thread written", "path", path, "pages", len(run.Pages), "fetches", run.Fetches)
	return run, nil
}

// collect walks the thread until a page repeats its predecessor and
// returns the aggregated markdown of all distinct pages.
func (s *Scraper) collect(ctx context.Context, session fetch.Session, run *model.ScrapeReport) (string, error) {
	var (
		sb   strings.Builder
		prev *model.Page
	)

	for n := 1; ; n++ {
		page, err := s.fetcher.GetPage(ctx, session, run.ThreadURL, n)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		run.Fetches++

		md, err := s.parser.ParsePage(page.HTML)
		if err != nil {
			return "", fmt.Errorf("page %d (%s): %w", n, page.URL, err)
		}
		page.Markdown = md
		page.HTML = ""

		if page.SameContent(prev) {
			s.logger.Debug("page repeats its predecessor, end of thread", "page", n)
			return sb.String(), nil
		}

		if s.maxPages > 0 && n > s.maxPages {
			return "", fmt.Errorf("%w: %d pages without reaching the end", model.ErrPageLimit, s.maxPages)
		}

		page.ComputeHash()
		run.Pages = append(run.Pages, page)
		sb.WriteString(md)
		prev = page
	}
}

// close releases the session even when ctx is already cancelled.
func (s *Scraper) close(ctx context.Context, session fetch.Session) error {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.closeTimeout)
	defer cancel()

	if err := session.Close(closeCtx); err != nil {
		s.logger.Error("failed to close session", "session", session.ID(), "error", err)
		return err
	}
	return nil
}
