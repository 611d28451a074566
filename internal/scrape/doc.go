// Package scrape turns a forum thread into a single markdown file.
//
// A Scraper opens one session per thread and walks the thread's pages
// from 1 upward through a shared fetcher. Each page is rendered to
// markdown and compared with the page before it. Forums of this kind
// serve the last page again for any page number past the end, so the
// first page whose markdown equals its predecessor ends the thread. The
// repeated page is not part of the output.
//
// The comparison is always made on rendered markdown, never on raw HTML,
// so per-request noise in the markup (tokens, timestamps in scripts)
// cannot hide the end of a thread.
//
// The session is closed exactly once on every exit path, including
// context cancellation. Output is all-or-nothing: a thread that fails at
// any point leaves no file behind.
//
// Batch runs several threads concurrently. Each thread gets its own
// session while all of them share the fetcher's throttle gate.
package scrape
