// Package report writes scrape results.
//
// WriteThread stores the markdown of one thread as "<dir>/<slug>.md". The
// file is written to a temporary name and renamed into place, so a run
// that fails or is interrupted never leaves a partial file behind.
//
// Writers summarize finished runs: SimpleWriter for the terminal,
// MarkdownWriter for a history table and JSONWriter for tools.
package report
