// Package flaresolverr is a client for the FlareSolverr bypass service.
//
// FlareSolverr runs a headless browser that solves anti-bot challenges.
// Every call is a JSON POST to a single endpoint (by default
// http://localhost:8191/v1) whose "cmd" field selects the operation:
//
//   - sessions.create: start a browser session and return its id
//   - request.get: load a URL inside a session and return the rendered markup
//   - sessions.destroy: close a session
//
// A session keeps the cookies that passed the challenge, so every page of a
// thread is requested through the same session. Sessions are not closed by
// the service on their own; callers must destroy every session they create.
package flaresolverr
