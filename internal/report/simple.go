package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/threadscrape/internal/model"
)

// SimpleWriter prints one line per run for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the run id and per-page details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs a summary of each run.
func (w *SimpleWriter) Write(runs []*model.ScrapeReport) (int, error) {
	var sb strings.Builder

	written := 0
	for _, run := range runs {
		if run == nil {
			continue
		}
		w.writeRun(&sb, run)
		if run.Status == model.StatusWritten {
			written++
		}
	}

	if len(runs) > 1 {
		fmt.Fprintf(&sb, "\n%d of %d threads written\n", written, len(runs))
	}

	return io.WriteString(w.output, sb.String())
}

// writeRun formats one run.
func (w *SimpleWriter) writeRun(sb *strings.Builder, run *model.ScrapeReport) {
	switch run.Status {
	case model.StatusWritten:
		fmt.Fprintf(sb, "[OK]     %s: %d pages, %s, %s\n",
			run.OutputPath,
			len(run.Pages),
			humanize.Bytes(uint64(max(run.Bytes, 0))), //nolint:gosec // clamped to non-negative
			run.Duration().Round(time.Millisecond),
		)
	case model.StatusFailed:
		fmt.Fprintf(sb, "[FAILED] %s: %s\n", run.ThreadURL, run.ErrorMessage)
	default:
		fmt.Fprintf(sb, "[%s] %s\n", strings.ToUpper(string(run.Status)), run.ThreadURL)
	}

	if !w.verbose {
		return
	}

	fmt.Fprintf(sb, "         run %s, mode %s, %d requests\n", run.ID, run.Mode, run.Fetches)
	for _, page := range run.Pages {
		fmt.Fprintf(sb, "         page %d %s\n", page.Number, page.URL)
	}
}
