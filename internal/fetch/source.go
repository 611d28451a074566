package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/threadscrape/internal/flaresolverr"
	"github.com/nao1215/threadscrape/internal/model"
)

// Session retrieves pages and holds remote state that must be released.
// Close must be called exactly once, on every exit path.
type Session interface {
	// ID identifies the session in logs. Direct sessions return "".
	ID() string

	// Get returns the markup of pageURL. Failures wrap model.ErrFetch.
	Get(ctx context.Context, pageURL string) (string, error)

	// Close releases the session. Failures wrap model.ErrSession.
	Close(ctx context.Context) error
}

// Opener opens a session for one thread.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// SessionClient is the part of the FlareSolverr client used by bypass sessions.
type SessionClient interface {
	CreateSession(ctx context.Context) (string, error)
	DestroySession(ctx context.Context, session string) error
	Get(ctx context.Context, session, pageURL string) (string, error)
}

var _ SessionClient = (*flaresolverr.Client)(nil)

// BypassOpener opens FlareSolverr browser sessions.
type BypassOpener struct {
	client SessionClient
}

// NewBypassOpener creates an Opener backed by the bypass service.
func NewBypassOpener(client SessionClient) *BypassOpener {
	return &BypassOpener{client: client}
}

// Open creates a new browser session.
func (o *BypassOpener) Open(ctx context.Context) (Session, error) {
	id, err := o.client.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	return &bypassSession{client: o.client, id: id}, nil
}

type bypassSession struct {
	client SessionClient
	id     string
}

func (s *bypassSession) ID() string {
	return s.id
}

func (s *bypassSession) Get(ctx context.Context, pageURL string) (string, error) {
	return s.client.Get(ctx, s.id, pageURL)
}

func (s *bypassSession) Close(ctx context.Context) error {
	return s.client.DestroySession(ctx, s.id)
}

// DirectOpener fetches pages with a plain HTTP client.
// The client is expected to set the User-Agent (see transport.NewHTTPClient).
type DirectOpener struct {
	client      *http.Client
	maxBodySize int64
}

// NewDirectOpener creates an Opener that requests pages directly.
// A maxBodySize of zero or less reads whole responses; a larger response
// fails with model.ErrFetch instead of being cut short.
func NewDirectOpener(client *http.Client, maxBodySize int64) *DirectOpener {
	return &DirectOpener{client: client, maxBodySize: maxBodySize}
}

// Open returns a session without remote state.
func (o *DirectOpener) Open(_ context.Context) (Session, error) {
	return &directSession{client: o.client, maxBodySize: o.maxBodySize}, nil
}

type directSession struct {
	client      *http.Client
	maxBodySize int64
}

func (s *directSession) ID() string {
	return ""
}

func (s *directSession) Get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetch, pageURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetch, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: HTTP %d", model.ErrFetch, pageURL, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if s.maxBodySize > 0 {
		body = io.LimitReader(body, s.maxBodySize+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetch, pageURL, err)
	}
	if s.maxBodySize > 0 && int64(len(raw)) > s.maxBodySize {
		return "", fmt.Errorf("%w: %s: response exceeds %d bytes", model.ErrFetch, pageURL, s.maxBodySize)
	}

	// Older forums still serve ISO-8859-1 or windows-1252.
	utf8Body, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetch, pageURL, err)
	}

	data, err := io.ReadAll(utf8Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetch, pageURL, err)
	}

	return string(data), nil
}

func (s *directSession) Close(_ context.Context) error {
	return nil
}
