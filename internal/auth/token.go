// Package auth provides bearer-token handling for calls to the rendering
// service.
//
// The rendering endpoint authenticates with short-lived JWTs exchanged for a
// service credential. The token source caches the current token and refreshes
// it whenever the remaining lifetime drops below MinTokenLifetime, so a
// request never goes out with a token about to expire mid-flight.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinTokenLifetime is the minimum remaining validity a cached token must have
// to be handed out. Tokens closer to expiry are refreshed first.
const MinTokenLifetime = 45 * time.Second

// TokenSource supplies bearer tokens for the rendering service.
type TokenSource interface {
	// Token returns a token with at least MinTokenLifetime of validity left,
	// refreshing if needed.
	Token(ctx context.Context) (string, error)

	// Invalidate discards the cached token so the next Token call fetches a
	// fresh one. Called after the remote service rejects a token.
	Invalidate()
}

// Config configures the HTTP token source.
type Config struct {
	// TokenURL is the token-exchange endpoint.
	TokenURL string

	// APIKey is the long-lived service credential exchanged for tokens.
	APIKey string

	// RequestTimeout bounds each exchange request. Default 10s.
	RequestTimeout time.Duration
}

// HTTPTokenSource exchanges a service credential for short-lived bearer
// tokens and caches them.
type HTTPTokenSource struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewHTTPTokenSource creates a token source against the given endpoint.
func NewHTTPTokenSource(cfg Config) (*HTTPTokenSource, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	return &HTTPTokenSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		now:    time.Now,
	}, nil
}

// Token returns the cached token if it still has MinTokenLifetime of validity
// left, otherwise exchanges for a fresh one.
func (s *HTTPTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.expires.Sub(s.now()) >= MinTokenLifetime {
		return s.token, nil
	}

	token, expires, err := s.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch render token: %w", err)
	}

	s.token = token
	s.expires = expires
	return token, nil
}

// Invalidate discards the cached token.
func (s *HTTPTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

type tokenRequest struct {
	APIKey string `json:"apiKey"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn,omitempty"` // seconds, optional
}

// fetch exchanges the service credential for a fresh token. Expiry comes from
// the token's own exp claim when present, falling back to the response's
// expiresIn field.
func (s *HTTPTokenSource) fetch(ctx context.Context) (string, time.Time, error) {
	body, err := json.Marshal(tokenRequest{APIKey: s.cfg.APIKey})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", time.Time{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if tr.Token == "" {
		return "", time.Time{}, fmt.Errorf("token endpoint returned empty token")
	}

	if exp, ok := tokenExpiry(tr.Token); ok {
		return tr.Token, exp, nil
	}
	if tr.ExpiresIn > 0 {
		return tr.Token, s.now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
	}
	return "", time.Time{}, fmt.Errorf("token has no determinable expiry")
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. Verification is the remote service's job; we only need the
// lifetime for refresh scheduling.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// StaticTokenSource returns the same token forever. For tests and the mock
// renderer.
type StaticTokenSource string

func (s StaticTokenSource) Token(ctx context.Context) (string, error) { return string(s), nil }
func (s StaticTokenSource) Invalidate()                               {}
