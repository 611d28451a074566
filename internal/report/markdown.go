package report

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"

	"github.com/nao1215/threadscrape/internal/model"
)

// MarkdownWriter renders runs as a markdown history table.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the runs as a table, newest first as given.
func (w *MarkdownWriter) Write(runs []*model.ScrapeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Scrape History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			truncateString(run.ThreadURL, 60),
			string(run.Status),
			strconv.Itoa(len(run.Pages)),
			humanize.Bytes(uint64(max(run.Bytes, 0))), //nolint:gosec // clamped to non-negative
			run.Duration().Round(time.Millisecond).String(),
			resultColumn(run),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Started", "Thread", "Status", "Pages", "Size", "Duration", "Result"},
		Rows:   rows,
	})

	return len(md.String()), md.Build()
}

// resultColumn is the output path of a written run or the error of a failed one.
func resultColumn(run *model.ScrapeReport) string {
	if run.Status == model.StatusFailed {
		return truncateString(run.ErrorMessage, 60)
	}
	return run.OutputPath
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
