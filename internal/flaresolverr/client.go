package flaresolverr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/threadscrape/internal/model"
)

// ErrInvalidEndpoint is returned when the service URL is not an absolute
// http or https URL.
var ErrInvalidEndpoint = errors.New("invalid FlareSolverr endpoint: expected http(s)://host:port/v1")

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 * 1024

// Client talks to one FlareSolverr endpoint.
// It is safe for concurrent use; sessions are independent.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used to reach the service.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxTimeout sets how long the service may spend on one request.get.
func WithMaxTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.maxTimeout = d
	}
}

// NewClient creates a client for the given endpoint.
// It does not contact the service.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		maxTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the service URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// CreateSession starts a browser session and returns its id.
// Failures wrap model.ErrSession.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, request{Cmd: cmdSessionsCreate})
	if err != nil {
		return "", fmt.Errorf("%w: create: %w", model.ErrSession, err)
	}
	if resp.Session == "" {
		return "", fmt.Errorf("%w: create: service returned no session id", model.ErrSession)
	}

	return resp.Session, nil
}

// DestroySession closes a browser session.
// Failures wrap model.ErrSession.
func (c *Client) DestroySession(ctx context.Context, session string) error {
	if _, err := c.call(ctx, request{Cmd: cmdSessionsDestroy, Session: session}); err != nil {
		return fmt.Errorf("%w: destroy %s: %w", model.ErrSession, session, err)
	}
	return nil
}

// Get loads pageURL inside the session and returns the page markup.
// A failed call or a non-200 page status wraps model.ErrFetch.
func (c *Client) Get(ctx context.Context, session, pageURL string) (string, error) {
	resp, err := c.call(ctx, request{
		Cmd:        cmdRequestGet,
		URL:        pageURL,
		Session:    session,
		MaxTimeout: c.maxTimeout.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", model.ErrFetch, pageURL, err)
	}

	if resp.Solution == nil {
		return "", fmt.Errorf("%w: %s: response has no solution", model.ErrFetch, pageURL)
	}
	if resp.Solution.Status != http.StatusOK {
		return "", fmt.Errorf("%w: %s: page returned status %d", model.ErrFetch, pageURL, resp.Solution.Status)
	}

	return resp.Solution.Response, nil
}

// call posts one command and decodes the envelope.
// Transport errors, non-2xx statuses and envelopes whose status is not "ok"
// are all errors.
func (c *Client) call(ctx context.Context, body request) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", body.Cmd, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, statusError(httpResp)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", body.Cmd, err)
	}
	if resp.Status != statusOK {
		return nil, fmt.Errorf("service reported %q: %s", resp.Status, resp.Message)
	}

	return &resp, nil
}

// statusError describes a non-2xx response, using the envelope message when
// the body carries one.
func statusError(httpResp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody)) //nolint:errcheck // best effort message

	var resp Response
	if err := json.Unmarshal(data, &resp); err == nil && resp.Message != "" {
		return fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, resp.Message)
	}

	return fmt.Errorf("HTTP %d", httpResp.StatusCode)
}
