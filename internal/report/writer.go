package report

import (
	"io"

	"github.com/nao1215/threadscrape/internal/model"
)

// Writer summarizes finished scrape runs.
type Writer interface {
	// Write outputs the runs to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(runs []*model.ScrapeReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
