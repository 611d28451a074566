package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/threadscrape/internal/model"
)

// FileName is the name of the database file inside the history directory.
const FileName = "history.db"

// HistoryDB provides SQLite-based storage for scrape runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ErrNotFound is returned when the database file does not exist and
// CreateIfNotExists is false.
var ErrNotFound = errors.New("history database not found")

// Open opens or creates a HistoryDB in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per scrape of one thread
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		thread_url TEXT NOT NULL,
		output_path TEXT,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		fetches INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_thread ON runs(thread_url);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages whose content went into a run's output
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		url TEXT NOT NULL,
		hash TEXT,
		UNIQUE(run_id, number)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun inserts or replaces a run together with its pages.
func (hdb *HistoryDB) SaveRun(ctx context.Context, run *model.ScrapeReport) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	query := `
	INSERT INTO runs (id, thread_url, output_path, mode, status, fetches, bytes, started_at, finished_at, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		output_path = excluded.output_path,
		status = excluded.status,
		fetches = excluded.fetches,
		bytes = excluded.bytes,
		finished_at = excluded.finished_at,
		error = excluded.error
	`

	_, err = tx.ExecContext(ctx, query,
		run.ID.String(),
		run.ThreadURL,
		run.OutputPath,
		string(run.Mode),
		string(run.Status),
		run.Fetches,
		run.Bytes,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pages WHERE run_id = ?", run.ID.String()); err != nil {
		return fmt.Errorf("failed to replace pages: %w", err)
	}

	for _, page := range run.Pages {
		if page.Hash == "" {
			page.ComputeHash()
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO pages (run_id, number, url, hash) VALUES (?, ?, ?, ?)",
			run.ID.String(), page.Number, page.URL, page.Hash,
		)
		if err != nil {
			return fmt.Errorf("failed to save page %d: %w", page.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListOptions filters ListRuns.
type ListOptions struct {
	// ThreadURL restricts the result to one thread. Empty means all threads.
	ThreadURL string

	// Status restricts the result to one status. Empty means any status.
	Status model.Status

	// Limit caps the number of runs. Zero or less means no limit.
	Limit int
}

// ListRuns returns runs, newest first, with their pages.
func (hdb *HistoryDB) ListRuns(ctx context.Context, opts ListOptions) ([]*model.ScrapeReport, error) {
	query := `
	SELECT id, thread_url, output_path, mode, status, fetches, bytes, started_at, finished_at, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 3)

	if opts.ThreadURL != "" {
		query += " AND thread_url = ?"
		args = append(args, opts.ThreadURL)
	}
	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	query += " ORDER BY started_at DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var runs []*model.ScrapeReport
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	rows.Close()

	// Pages are loaded after the cursor is closed; the pool has a single
	// connection.
	for _, run := range runs {
		if run.Pages, err = hdb.pages(ctx, run.ID); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

// GetRun retrieves a run by id. It returns nil, nil when no run matches.
func (hdb *HistoryDB) GetRun(ctx context.Context, id uuid.UUID) (*model.ScrapeReport, error) {
	query := `
	SELECT id, thread_url, output_path, mode, status, fetches, bytes, started_at, finished_at, error
	FROM runs
	WHERE id = ?
	`

	run, err := scanRun(hdb.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if run.Pages, err = hdb.pages(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestWrittenRun returns the most recent written run of a thread, or
// nil, nil when the thread was never written.
func (hdb *HistoryDB) LatestWrittenRun(ctx context.Context, threadURL string) (*model.ScrapeReport, error) {
	runs, err := hdb.ListRuns(ctx, ListOptions{
		ThreadURL: threadURL,
		Status:    model.StatusWritten,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// pages loads the pages of a run in page order.
func (hdb *HistoryDB) pages(ctx context.Context, runID uuid.UUID) ([]*model.Page, error) {
	rows, err := hdb.db.QueryContext(ctx,
		"SELECT number, url, hash FROM pages WHERE run_id = ? ORDER BY number",
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	pages := make([]*model.Page, 0)
	for rows.Next() {
		var (
			page model.Page
			hash sql.NullString
		)
		if err := rows.Scan(&page.Number, &page.URL, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Hash = hash.String
		pages = append(pages, &page)
	}

	return pages, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one runs row.
func scanRun(row rowScanner) (*model.ScrapeReport, error) {
	var (
		run                  model.ScrapeReport
		id, mode, status     string
		startedAt            string
		outputPath, errorMsg sql.NullString
		finishedAt           sql.NullString
	)

	err := row.Scan(
		&id,
		&run.ThreadURL,
		&outputPath,
		&mode,
		&status,
		&run.Fetches,
		&run.Bytes,
		&startedAt,
		&finishedAt,
		&errorMsg,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	run.OutputPath = outputPath.String
	run.Mode = model.Mode(mode)
	run.Status = model.Status(status)
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)
	run.ErrorMessage = errorMsg.String
	if run.ErrorMessage != "" {
		run.Error = errors.New(run.ErrorMessage)
	}

	return &run, nil
}

// timestampLayout has a fixed-width fraction so that text ordering of
// stored UTC timestamps is time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp formats t in UTC for storage.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
