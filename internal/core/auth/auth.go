// Package auth obtains and caches OAuth2 access tokens for the Automower
// Connect API using the client-credentials grant.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens are refreshed this long before their reported expiry.
const refreshMargin = 60 * time.Second

// Token is a bearer token for the vendor API.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`

	obtained time.Time
}

// Valid reports whether the token is usable, with margin for in-flight
// requests.
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	expiry := t.obtained.Add(time.Duration(t.ExpiresIn) * time.Second)
	return now.Before(expiry.Add(-refreshMargin))
}

// Manager fetches tokens with the client-credentials grant and caches them
// until shortly before expiry. It is safe for concurrent use.
type Manager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          *slog.Logger

	mu    sync.Mutex
	token Token
	now   func() time.Time
}

// NewManager creates a token manager for the given authorization server.
func NewManager(tokenURL, clientID, clientSecret string, log *slog.Logger) *Manager {
	return &Manager{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          log,
		now:          time.Now,
	}
}

// ClientID returns the API client id, sent as X-Api-Key on REST requests.
func (m *Manager) ClientID() string {
	return m.clientID
}

// Token returns the cached token, fetching a fresh one when missing or
// close to expiry.
func (m *Manager) Token(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.Valid(m.now()) {
		return m.token, nil
	}
	return m.fetchLocked(ctx)
}

// ForceRefresh discards the cached token and fetches a new one. Used after
// the API rejects a token that still looked valid locally.
func (m *Manager) ForceRefresh(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = Token{}
	return m.fetchLocked(ctx)
}

func (m *Manager) fetchLocked(ctx context.Context) (Token, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("auth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: token request: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Token{}, fmt.Errorf("%w: read token response: %v", ErrAuthentication, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("%w: token endpoint returned HTTP %d", ErrAuthentication, resp.StatusCode)
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return Token{}, fmt.Errorf("%w: decode token response: %v", ErrAuthentication, err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access token", ErrAuthentication)
	}
	tok.obtained = m.now()

	m.token = tok
	m.log.Info("access token obtained", "expires_in", tok.ExpiresIn)
	return tok, nil
}

// ClientIDFromToken extracts the client_id claim from a JWT access token
// without verifying the signature. The API wants it echoed back as the
// X-Api-Key header.
func ClientIDFromToken(accessToken string) (string, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("auth: parse access token: %w", err)
	}
	id, _ := claims["client_id"].(string)
	if id == "" {
		return "", fmt.Errorf("auth: access token has no client_id claim")
	}
	return id, nil
}
