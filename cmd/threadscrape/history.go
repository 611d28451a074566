package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/threadscrape/internal/config"
	"github.com/nao1215/threadscrape/internal/database"
	"github.com/nao1215/threadscrape/internal/model"
	"github.com/nao1215/threadscrape/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past scrape runs",
		Long: `History lists scrape runs recorded in the history database, newest first.

Examples:
  # Show the last 20 runs as a markdown table
  threadscrape history

  # Show every run of one thread
  threadscrape history --thread https://forum.example.com/thread/12345-example/ -n 0

  # Show only failed runs as JSON
  threadscrape history --status failed --json

  # Show one run with its pages
  threadscrape history --id 0b1e6a2c-...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to show (0 = all)")
	cmd.Flags().String("thread", "",
		"Only show runs of this thread URL")
	cmd.Flags().String("status", "",
		"Only show runs with this status (written, failed)")
	cmd.Flags().String("id", "",
		"Show a single run with its pages")
	cmd.Flags().BoolP("json", "j", false,
		"Output runs as JSON")
	cmd.Flags().String("history-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	threadURL, err := flags.GetString("thread")
	if err != nil {
		return err
	}
	status, err := flags.GetString("status")
	if err != nil {
		return err
	}
	idFlag, err := flags.GetString("id")
	if err != nil {
		return err
	}
	jsonOut, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	dir, err := flags.GetString("history-dir")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	switch model.Status(status) {
	case "", model.StatusWritten, model.StatusFailed:
	default:
		return fmt.Errorf("invalid status %q (want written or failed)", status)
	}
	var id uuid.UUID
	if idFlag != "" {
		if id, err = uuid.Parse(idFlag); err != nil {
			return fmt.Errorf("invalid run id %q: %w", idFlag, err)
		}
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dir, opts)
	if errors.Is(err, database.ErrNotFound) && idFlag == "" {
		// Nothing has been scraped yet.
		_, err = historyWriter(cmd, jsonOut, false).Write(nil)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	var runs []*model.ScrapeReport
	if idFlag != "" {
		run, err := db.GetRun(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("no run with id %s", id)
		}
		runs = []*model.ScrapeReport{run}
	} else {
		runs, err = db.ListRuns(ctx, database.ListOptions{
			ThreadURL: threadURL,
			Status:    model.Status(status),
			Limit:     limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
	}

	_, err = historyWriter(cmd, jsonOut, idFlag != "").Write(runs)
	return err
}

// historyWriter picks the output format: JSON, a detailed single run, or
// the markdown table.
func historyWriter(cmd *cobra.Command, jsonOut, single bool) report.Writer {
	out := cmd.OutOrStdout()
	switch {
	case jsonOut:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case single:
		return report.NewSimpleWriter(out, report.WithVerbose(true))
	default:
		return report.NewMarkdownWriter(out)
	}
}
