package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// tokenServer is a fake IOL token endpoint.
type tokenServer struct {
	mu            sync.Mutex
	grants        []string
	refreshStatus int
	omitRefresh   bool
	expiresIn     int64
	issued        int
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	grant := r.PostForm.Get("grant_type")
	s.grants = append(s.grants, grant)

	switch grant {
	case "password":
		if r.PostForm.Get("username") != "user" || r.PostForm.Get("password") != "pass" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	case "refresh_token":
		if s.refreshStatus != 0 {
			w.WriteHeader(s.refreshStatus)
			return
		}
	}

	s.issued++
	resp := map[string]any{
		"access_token": "access-" + string(rune('0'+s.issued)),
		"token_type":   "bearer",
		"expires_in":   s.expiresIn,
	}
	if !(grant == "refresh_token" && s.omitRefresh) {
		resp["refresh_token"] = "refresh-" + string(rune('0'+s.issued))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *tokenServer) grantLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.grants...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, ts *tokenServer, creds Credentials) (*TokenManager, *fakeClock) {
	t.Helper()
	server := httptest.NewServer(ts)
	t.Cleanup(server.Close)

	clock := &fakeClock{now: time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)}
	m := NewTokenManager(server.URL, creds, WithClock(clock.Now))
	return m, clock
}

func TestAccessTokenPasswordGrant(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, clock := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	tok, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if tok != "access-1" {
		t.Errorf("token = %q, want %q", tok, "access-1")
	}

	want := clock.Now().Add(900*time.Second - DefaultExpiryBuffer)
	if !m.token.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", m.token.ExpiresAt, want)
	}
}

func TestAccessTokenCached(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, clock := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	ctx := context.Background()
	first, _ := m.AccessToken(ctx)
	clock.Advance(10 * time.Minute)
	second, err := m.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}

	if first != second {
		t.Errorf("second token = %q, want cached %q", second, first)
	}
	if got := len(ts.grantLog()); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestAccessTokenRefreshAfterExpiry(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, clock := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	ctx := context.Background()
	if _, err := m.AccessToken(ctx); err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}

	// 900s - 60s buffer = 840s of validity.
	clock.Advance(841 * time.Second)

	tok, err := m.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if tok != "access-2" {
		t.Errorf("token = %q, want %q", tok, "access-2")
	}

	grants := ts.grantLog()
	if len(grants) != 2 || grants[1] != "refresh_token" {
		t.Errorf("grants = %v, want [password refresh_token]", grants)
	}
	if m.token.RefreshToken != "refresh-2" {
		t.Errorf("RefreshToken = %q, want %q", m.token.RefreshToken, "refresh-2")
	}
}

func TestRefreshKeepsPreviousRefreshToken(t *testing.T) {
	ts := &tokenServer{expiresIn: 900, omitRefresh: true}
	m, _ := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	ctx := context.Background()
	m.AccessToken(ctx)
	m.Invalidate()

	if _, err := m.AccessToken(ctx); err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if m.token.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want %q", m.token.RefreshToken, "refresh-1")
	}
}

func TestFailedRefreshFallsBackToPassword(t *testing.T) {
	ts := &tokenServer{expiresIn: 900, refreshStatus: http.StatusUnauthorized}
	m, _ := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	ctx := context.Background()
	m.AccessToken(ctx)
	m.Invalidate()

	tok, err := m.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if tok != "access-2" {
		t.Errorf("token = %q, want %q", tok, "access-2")
	}

	grants := ts.grantLog()
	want := []string{"password", "refresh_token", "password"}
	if len(grants) != len(want) {
		t.Fatalf("grants = %v, want %v", grants, want)
	}
	for i := range want {
		if grants[i] != want[i] {
			t.Errorf("grants[%d] = %q, want %q", i, grants[i], want[i])
		}
	}
}

func TestInvalidateKeepsRefreshToken(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, _ := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	m.AccessToken(context.Background())
	m.Invalidate()

	if m.token.AccessToken != "" {
		t.Errorf("AccessToken = %q, want empty", m.token.AccessToken)
	}
	if !m.token.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", m.token.ExpiresAt)
	}
	if m.token.RefreshToken == "" {
		t.Error("RefreshToken should survive Invalidate")
	}
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, _ := newTestManager(t, ts, Credentials{Username: "user"})

	_, err := m.AccessToken(context.Background())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
	if got := len(ts.grantLog()); got != 0 {
		t.Errorf("token requests = %d, want 0", got)
	}
}

func TestAccessTokenRejected(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, _ := newTestManager(t, ts, Credentials{Username: "user", Password: "wrong"})

	_, err := m.AccessToken(context.Background())

	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("error = %v, want *TokenError", err)
	}
	if tokenErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", tokenErr.StatusCode, http.StatusBadRequest)
	}
	if tokenErr.GrantType != "password" {
		t.Errorf("GrantType = %q, want %q", tokenErr.GrantType, "password")
	}
}

func TestAccessTokenConcurrent(t *testing.T) {
	ts := &tokenServer{expiresIn: 900}
	m, _ := newTestManager(t, ts, Credentials{Username: "user", Password: "pass"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.AccessToken(context.Background()); err != nil {
				t.Errorf("AccessToken failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := len(ts.grantLog()); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestTokenValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		token Token
		want  bool
	}{
		{"empty", Token{}, false},
		{"expired", Token{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, false},
		{"valid", Token{AccessToken: "a", ExpiresAt: now.Add(time.Minute)}, true},
		{"no access token", Token{RefreshToken: "r", ExpiresAt: now.Add(time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
