package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/threadscrape/internal/config"
	"github.com/nao1215/threadscrape/internal/database"
	"github.com/nao1215/threadscrape/internal/fetch"
	"github.com/nao1215/threadscrape/internal/flaresolverr"
	"github.com/nao1215/threadscrape/internal/forum"
	"github.com/nao1215/threadscrape/internal/log"
	"github.com/nao1215/threadscrape/internal/model"
	"github.com/nao1215/threadscrape/internal/report"
	"github.com/nao1215/threadscrape/internal/scrape"
	"github.com/nao1215/threadscrape/internal/transport"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [thread-url...]",
		Short: "Save forum threads as markdown files",
		Long: `Scrape fetches a thread page by page (index1.html, index2.html, ...) until
the forum serves the same page twice, converts every post to markdown and
writes <out>/<thread-slug>.md. The file is only written when the whole
thread was scraped.

Environment (also read from .env in the current directory):
  DELAY_MS          required; minimum milliseconds between two page requests
  USER_AGENT        required with --direct
  FLARESOLVERR_URL  bypass service endpoint (default http://localhost:8191/v1)

Examples:
  # Scrape one thread through FlareSolverr
  threadscrape scrape -u https://forum.example.com/thread/12345-example/ -o out

  # Scrape several threads, two at a time
  threadscrape scrape -b 2 -o out URL1 URL2 URL3

  # Fetch directly through a SOCKS5 proxy
  threadscrape scrape --direct --proxy 127.0.0.1:9050 -u URL -o out`,
		Args: cobra.ArbitraryArgs,
		RunE: runScrapeCmd,
	}

	cmd.Flags().StringArrayP("url", "u", nil,
		"Thread URL to scrape (repeatable; positional arguments are accepted too)")
	cmd.Flags().StringP("out", "o", "",
		"Output directory for the markdown files")

	// Transport flags
	cmd.Flags().Bool("direct", false,
		"Fetch pages with a plain HTTP client instead of FlareSolverr")
	cmd.Flags().StringP("proxy", "x", "",
		"SOCKS5 proxy address for --direct (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon and route --direct requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (bypass mode allows at least a full solve)")

	// Scrape behavior flags
	cmd.Flags().String("template", "",
		"Forum template (default: from config file, else "+config.DefaultTemplate+")")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Fail a thread that is still going after this many pages (0 = no limit)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of threads scraped concurrently")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .threadscrape in current or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().BoolP("json", "j", false,
		"Print the run summary as JSON")

	return cmd
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, closing sessions...")
			cancel()
		case <-ctx.Done():
		}
	}()

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	return runScrape(ctx, cfg, cmd.OutOrStdout(), jsonOut, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from flags, the environment and the config file.
func buildConfig(cmd *cobra.Command, args []string, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	urls, err := flags.GetStringArray("url")
	if err != nil {
		return nil, err
	}
	cfg.ThreadURLs = append(urls, args...)

	if cfg.OutputDir, err = flags.GetString("out"); err != nil {
		return nil, err
	}

	direct, err := flags.GetBool("direct")
	if err != nil {
		return nil, err
	}
	if direct {
		cfg.Mode = model.ModeDirect
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.TemplateName, err = flags.GetString("template"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveHistory = !noHistory
	if cfg.HistoryDir, err = flags.GetString("history-dir"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	env, err := config.NewEnv(lookup, config.DefaultEnvFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	// An explicit --config must exist; otherwise a missing file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.File = config.EmptyFile()
	}

	return cfg, nil
}

// runScrape scrapes every configured thread and prints a summary.
// It fails when any thread failed.
func runScrape(ctx context.Context, cfg *config.Config, out io.Writer, jsonOut bool, logger *slog.Logger) error {
	// Resolve every template before any network use so a typo fails fast.
	parsers, err := buildParsers(cfg)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	openers, cleanup, err := newOpenerFactory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var db *database.HistoryDB
	if cfg.SaveHistory {
		db, err = database.Open(cfg.HistoryDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
	}

	runner := &threadRunner{
		cfg:     cfg,
		fetcher: fetch.NewPageFetcher(fetch.NewGate(cfg.Delay), fetch.WithLogger(logger)),
		parsers: parsers,
		openers: openers,
		logger:  logger,
	}

	logger.Info("starting scrape",
		"threads", len(cfg.ThreadURLs),
		"mode", cfg.Mode,
		"delay", cfg.Delay,
		"batch", cfg.BatchSize,
	)

	reports, batchErr := scrape.NewBatch(runner,
		scrape.WithConcurrency(cfg.BatchSize),
		scrape.WithBatchMode(cfg.Mode),
		scrape.WithBatchLogger(logger),
	).Run(ctx, cfg.ThreadURLs)

	// Recording happens even after an interrupt.
	recordRuns(context.WithoutCancel(ctx), db, reports, out, logger)

	var w report.Writer
	if jsonOut {
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	} else {
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
	if _, err := w.Write(reports); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if batchErr != nil {
		return batchErr
	}
	if failed := scrape.Failed(reports); failed > 0 {
		return fmt.Errorf("%d of %d threads failed", failed, len(reports))
	}
	return nil
}

// buildParsers returns a parser per thread URL.
func buildParsers(cfg *config.Config) (map[string]*forum.Parser, error) {
	parsers := make(map[string]*forum.Parser, len(cfg.ThreadURLs))
	for _, threadURL := range cfg.ThreadURLs {
		tmpl, err := cfg.File.ResolveTemplate(threadURL, cfg.TemplateName)
		if err != nil {
			return nil, err
		}
		p, err := forum.NewParser(tmpl)
		if err != nil {
			return nil, err
		}
		parsers[threadURL] = p
	}
	return parsers, nil
}

// openerFactory returns the session opener for a thread's site settings.
type openerFactory func(site config.SiteConfig) (fetch.Opener, error)

// newOpenerFactory prepares the transport for cfg.Mode. The returned
// cleanup stops anything that was started, such as an embedded Tor daemon.
func newOpenerFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (openerFactory, func(), error) {
	noop := func() {}

	if cfg.Mode != model.ModeDirect {
		client, err := flaresolverr.NewClient(cfg.FlareSolverrURL,
			flaresolverr.WithHTTPClient(&http.Client{Timeout: cfg.SolverClientTimeout()}),
			flaresolverr.WithMaxTimeout(cfg.MaxTimeout),
		)
		if err != nil {
			return nil, noop, fmt.Errorf("configuration error: %w", err)
		}
		logger.Info("using bypass service", "endpoint", client.Endpoint())

		opener := fetch.NewBypassOpener(client)
		return func(site config.SiteConfig) (fetch.Opener, error) {
			if site.Cookie != "" || len(site.Headers) > 0 {
				logger.Debug("site cookie and headers apply to --direct only")
			}
			return opener, nil
		}, noop, nil
	}

	newClient := transport.NewHTTPClient
	cleanup := noop

	switch {
	case cfg.EmbeddedTor:
		embedded := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		logger.Warn("starting embedded Tor daemon, this may take a few minutes")
		if err := embedded.Start(ctx); err != nil {
			return nil, noop, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		logger.Info("embedded Tor daemon started", "socks", embedded.SocksAddr())
		newClient = embedded.NewHTTPClient
		cleanup = func() {
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
	case cfg.ProxyAddress != "":
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress); status != transport.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Error())
		}
		logger.Info("SOCKS5 proxy verified", "proxy", cfg.ProxyAddress)
	}

	return func(site config.SiteConfig) (fetch.Opener, error) {
		hc, err := newClient(transport.Options{
			Timeout:      cfg.Timeout,
			ProxyAddress: cfg.ProxyAddress,
			UserAgent:    cfg.UserAgent,
			Cookie:       site.Cookie,
			Headers:      site.Headers,
		})
		if err != nil {
			return nil, err
		}
		return fetch.NewDirectOpener(hc, cfg.MaxBodySize), nil
	}, cleanup, nil
}

// threadRunner scrapes one thread with the template and site settings
// that belong to its URL. All threads share one fetcher and so one gate.
type threadRunner struct {
	cfg     *config.Config
	fetcher *fetch.PageFetcher
	parsers map[string]*forum.Parser
	openers openerFactory
	logger  *slog.Logger
}

// Run implements scrape.Runner.
func (r *threadRunner) Run(ctx context.Context, threadURL string) (*model.ScrapeReport, error) {
	parser, ok := r.parsers[threadURL]
	if !ok {
		err := fmt.Errorf("%w: no template resolved for %s", config.ErrUnknownTemplate, threadURL)
		return failedRun(threadURL, r.cfg.Mode, err), err
	}

	opener, err := r.openers(r.cfg.File.GetSiteConfig(threadURL))
	if err != nil {
		return failedRun(threadURL, r.cfg.Mode, err), err
	}

	s := scrape.New(opener, r.fetcher, parser, r.cfg.OutputDir,
		scrape.WithLogger(r.logger),
		scrape.WithMode(r.cfg.Mode),
		scrape.WithMaxPages(r.cfg.MaxPages),
	)
	return s.Run(ctx, threadURL)
}

func failedRun(threadURL string, mode model.Mode, err error) *model.ScrapeReport {
	run := model.NewScrapeReport(threadURL, mode)
	run.Fail(err)
	return run
}

// recordRuns saves every run in the history database and notes threads
// whose content did not change since their last written run.
// If db is nil, this function is a no-op.
func recordRuns(ctx context.Context, db *database.HistoryDB, runs []*model.ScrapeReport, out io.Writer, logger *slog.Logger) {
	if db == nil {
		return
	}

	for _, run := range runs {
		if run == nil {
			continue
		}

		if run.Status == model.StatusWritten {
			prev, err := db.LatestWrittenRun(ctx, run.ThreadURL)
			if err != nil {
				logger.Error("failed to read history", "url", run.ThreadURL, "error", err)
			} else if prev != nil && samePages(prev.Pages, run.Pages) {
				fmt.Fprintf(out, "%s: unchanged since %s\n", run.ThreadURL, prev.StartedAt.Local().Format("2006-01-02 15:04"))
			}
		}

		if err := db.SaveRun(ctx, run); err != nil {
			logger.Error("failed to save run", "url", run.ThreadURL, "error", err)
		}
	}
}

// samePages reports whether two runs produced the same pages in the same order.
func samePages(a, b []*model.Page) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i].Hash == "" || a[i].Hash != b[i].Hash {
			return false
		}
	}
	return true
}

var _ scrape.Runner = (*threadRunner)(nil)
