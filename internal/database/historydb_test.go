package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/threadscrape/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newRun returns a written run of threadURL started at startedAt.
func newRun(threadURL string, startedAt time.Time, markdown ...string) *model.ScrapeReport {
	run := model.NewScrapeReport(threadURL, model.ModeBypass)
	run.StartedAt = startedAt
	run.OutputPath = "out/thread.md"
	for i, md := range markdown {
		page := &model.Page{Number: i + 1, URL: threadURL + "index.html", Markdown: md}
		page.ComputeHash()
		run.Pages = append(run.Pages, page)
	}
	run.Fetches = len(markdown) + 1
	run.Complete(100)
	run.FinishedAt = startedAt.Add(time.Second)
	return run
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		run := newRun("https://forum.example/t/1-a/", time.Now(), "page")
		if err := db.SaveRun(context.Background(), run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		got, err := db.GetRun(context.Background(), run.ID)
		if err != nil || got == nil {
			t.Fatalf("GetRun() = %v, %v", got, err)
		}
	})
}

// TestSaveAndGetRun tests round-tripping a run.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := newRun("https://forum.example/t/999-foo/", started, "page one", "page two")

	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetRun() returned nil")
	}

	if got.ThreadURL != run.ThreadURL || got.Status != model.StatusWritten || got.Mode != model.ModeBypass {
		t.Errorf("GetRun() = %+v", got)
	}
	if got.Fetches != 3 || got.Bytes != 100 {
		t.Errorf("Fetches/Bytes = %d/%d, want 3/100", got.Fetches, got.Bytes)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", got.Duration())
	}
	if len(got.Pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(got.Pages))
	}
	if got.Pages[0].Number != 1 || got.Pages[0].Hash != run.Pages[0].Hash {
		t.Errorf("page 1 = %+v", got.Pages[0])
	}
}

// TestSaveRunUpdates tests that saving a run again replaces it.
func TestSaveRunUpdates(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	run := model.NewScrapeReport("https://forum.example/t/1-a/", model.ModeDirect)
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	run.Fail(errors.New("parse error: no posts found"))
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("second SaveRun() error = %v", err)
	}

	got, err := db.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != model.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.ErrorMessage != "parse error: no posts found" || got.Error == nil {
		t.Errorf("error = %q / %v", got.ErrorMessage, got.Error)
	}

	all, err := db.ListRuns(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListRuns() returned %d runs, want 1", len(all))
	}
}

// TestGetRunNotFound tests the nil, nil contract.
func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	got, err := db.GetRun(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetRun() = %+v, want nil", got)
	}
}

// TestListRuns tests ordering and filters.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := newRun("https://forum.example/t/1-a/", base, "a")
	second := newRun("https://forum.example/t/2-b/", base.Add(500*time.Millisecond), "b")
	third := newRun("https://forum.example/t/1-a/", base.Add(time.Second), "a2")
	failed := model.NewScrapeReport("https://forum.example/t/1-a/", model.ModeBypass)
	failed.StartedAt = base.Add(2 * time.Second)
	failed.Fail(errors.New("session error"))

	for _, run := range []*model.ScrapeReport{first, second, third, failed} {
		if err := db.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 4 {
			t.Fatalf("got %d runs, want 4", len(runs))
		}
		want := []uuid.UUID{failed.ID, third.ID, second.ID, first.ID}
		for i, run := range runs {
			if run.ID != want[i] {
				t.Errorf("runs[%d] = %s, want %s", i, run.ID, want[i])
			}
		}
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, ListOptions{Limit: 2})
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("got %d runs, want 2", len(runs))
		}
	})

	t.Run("thread filter", func(t *testing.T) {
		runs, err := db.ListRuns(ctx, ListOptions{ThreadURL: "https://forum.example/t/2-b/"})
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 1 || runs[0].ID != second.ID {
			t.Errorf("ListRuns() = %v", runs)
		}
	})

	t.Run("latest written run skips failures", func(t *testing.T) {
		run, err := db.LatestWrittenRun(ctx, "https://forum.example/t/1-a/")
		if err != nil {
			t.Fatalf("LatestWrittenRun() error = %v", err)
		}
		if run == nil || run.ID != third.ID {
			t.Fatalf("LatestWrittenRun() = %v, want %s", run, third.ID)
		}
		if len(run.Pages) != 1 {
			t.Errorf("expected pages to be loaded, got %d", len(run.Pages))
		}
	})

	t.Run("latest written run of unknown thread", func(t *testing.T) {
		run, err := db.LatestWrittenRun(ctx, "https://forum.example/t/unknown/")
		if err != nil || run != nil {
			t.Errorf("LatestWrittenRun() = %v, %v, want nil, nil", run, err)
		}
	})
}

// TestParseTimestamp tests timestamp parsing fallbacks.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{"2024-05-01T12:00:00.000000000Z", false},
		{"2024-05-01T12:00:00Z", false},
		{"2024-05-01 12:00:00", false},
		{"", true},
		{"not a time", true},
	}

	for _, tt := range tests {
		if got := parseTimestamp(tt.input); got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q) = %v, zero want %v", tt.input, got, tt.zero)
		}
	}

	ts := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	if got := parseTimestamp(formatTimestamp(ts)); !got.Equal(ts) {
		t.Errorf("round trip = %v, want %v", got, ts)
	}
}
