// Package iol is a client for the InvertirOnline (IOL) v2 REST API.
package iol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the IOL API host.
const DefaultBaseURL = "https://api.invertironline.com"

// TokenSource supplies bearer tokens. *auth.TokenManager implements it.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate()
}

// Client provides access to the IOL REST API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new IOL client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, tokens TokenSource, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// APIError represents a non-2xx response from IOL.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("iol api error %d: %s", e.StatusCode, e.Message)
}

// AuthError wraps a failure to obtain a token, as opposed to a failed API call.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "iol authentication: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Get performs an authenticated GET of path (relative to the API host) and
// returns the raw body. A 401 invalidates the access token and the call is
// retried once with a fresh one.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.getOnce(ctx, path, query)
	if err == nil {
		return body, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return nil, err
	}

	c.logger.Warn("iol returned 401, re-authenticating", "path", path)
	c.tokens.Invalidate()

	return c.getOnce(ctx, path, query)
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	return body, nil
}
