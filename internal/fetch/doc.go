// Package fetch retrieves thread pages.
//
// Page N of a thread lives at "index{N}.html" below the thread URL. Pages
// are requested through a Session: either a FlareSolverr browser session
// (bypass mode) or a plain HTTP client (direct mode).
//
// # Throttling
//
// Every request passes a Gate first. The Gate is shared by all fetchers of
// a process, so the starts of any two page requests are at least the
// configured delay apart, no matter how many threads are scraped at once.
// This protects the forum and the bypass service from bursts; it is not a
// retry mechanism.
package fetch
