// Package transport builds the HTTP clients used for direct page fetches.
//
// A direct fetch goes straight to the forum, optionally through a SOCKS5
// proxy or an embedded Tor daemon started with tornago. Every request made
// by the returned client carries the configured User-Agent, cookie and
// extra headers.
//
// Bypass mode does not use this package for page requests; it only needs a
// plain client to reach the FlareSolverr endpoint.
package transport
