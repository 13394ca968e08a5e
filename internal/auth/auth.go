// Package auth manages InvertirOnline OAuth bearer tokens.
//
// A TokenManager caches one token set. AccessToken returns the cached access
// token while it is valid, otherwise trades the refresh token for a new set,
// and falls back to a password grant when there is no refresh token or the
// refresh is rejected.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTokenURL is the IOL token endpoint.
const DefaultTokenURL = "https://api.invertironline.com/token"

// DefaultExpiryBuffer is subtracted from expires_in so a token is never used
// right at its expiry.
const DefaultExpiryBuffer = 60 * time.Second

// ErrMissingCredentials is returned when a password grant is needed but no
// username or password was configured.
var ErrMissingCredentials = errors.New("auth: missing credentials")

// Credentials holds the IOL account used for password grants.
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// TokenError is a rejected token request.
type TokenError struct {
	GrantType  string
	StatusCode int
	Body       []byte
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("iol token %s grant failed with status %d", e.GrantType, e.StatusCode)
}

// Token is a cached token set.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the access token can still be used at now.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// TokenManager caches and renews IOL tokens. It is safe for concurrent use;
// concurrent callers wait for a single renewal.
type TokenManager struct {
	tokenURL   string
	creds      Credentials
	httpClient *http.Client
	logger     *slog.Logger
	buffer     time.Duration
	now        func() time.Time

	mu    sync.Mutex
	token Token
}

// Option configures a TokenManager.
type Option func(*TokenManager)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *TokenManager) {
		m.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *TokenManager) {
		m.logger = logger
	}
}

// WithExpiryBuffer overrides DefaultExpiryBuffer.
func WithExpiryBuffer(d time.Duration) Option {
	return func(m *TokenManager) {
		m.buffer = d
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a token manager. An empty tokenURL selects
// DefaultTokenURL.
func NewTokenManager(tokenURL string, creds Credentials, opts ...Option) *TokenManager {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	m := &TokenManager{
		tokenURL:   tokenURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		buffer:     DefaultExpiryBuffer,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// AccessToken returns a usable access token, renewing it if needed.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.Valid(m.now()) {
		m.logger.Debug("using cached iol access token")
		return m.token.AccessToken, nil
	}

	if m.token.RefreshToken != "" {
		m.logger.Info("iol access token expired, refreshing")
		tok, err := m.refresh(ctx, m.token.RefreshToken)
		if err == nil {
			m.token = tok
			return tok.AccessToken, nil
		}
		m.logger.Warn("iol token refresh failed, re-authenticating", "error", err)
		m.token = Token{}
	}

	if !m.creds.Valid() {
		return "", ErrMissingCredentials
	}

	m.logger.Info("authenticating with iol", "username", m.creds.Username)
	tok, err := m.authenticate(ctx)
	if err != nil {
		m.token = Token{}
		return "", err
	}
	m.token = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached access token, for example after a 401. The
// refresh token is kept so the next AccessToken call tries a refresh first.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token.AccessToken = ""
	m.token.ExpiresAt = time.Time{}
}

func (m *TokenManager) authenticate(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", m.creds.Username)
	form.Set("password", m.creds.Password)

	return m.requestToken(ctx, form)
}

func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	tok, err := m.requestToken(ctx, form)
	if err != nil {
		return Token{}, err
	}
	// IOL may omit refresh_token on refresh; the previous one stays valid.
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (m *TokenManager) requestToken(ctx context.Context, form url.Values) (Token, error) {
	grant := form.Get("grant_type")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("iol token %s grant: %w", grant, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return Token{}, &TokenError{GrantType: grant, StatusCode: resp.StatusCode, Body: body}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("unmarshal token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("iol token %s grant: response has no access_token", grant)
	}

	ttl := time.Duration(tr.ExpiresIn)*time.Second - m.buffer
	m.logger.Debug("iol token issued", "grant_type", grant, "expires_in", tr.ExpiresIn)

	return Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    m.now().Add(ttl),
	}, nil
}
