package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokenServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.Form.Get("client_id"); got != "cid" {
			t.Errorf("client_id = %q, want cid", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"scope":        "iam:read",
		})
	}))
}

func TestTokenFetchAndCache(t *testing.T) {
	var requests atomic.Int32
	srv := tokenServer(t, &requests)
	defer srv.Close()

	m := NewManager(srv.URL, "cid", "secret", testLogger())

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q, want tok-1", tok.AccessToken)
	}

	// Second call is served from cache.
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestTokenRefreshesNearExpiry(t *testing.T) {
	var requests atomic.Int32
	srv := tokenServer(t, &requests)
	defer srv.Close()

	m := NewManager(srv.URL, "cid", "secret", testLogger())
	now := time.Now()
	m.now = func() time.Time { return now }

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Just inside the refresh margin: the cached token is no longer usable.
	now = now.Add(3600*time.Second - refreshMargin)
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("token endpoint hit %d times, want 2", got)
	}
}

func TestForceRefresh(t *testing.T) {
	var requests atomic.Int32
	srv := tokenServer(t, &requests)
	defer srv.Close()

	m := NewManager(srv.URL, "cid", "secret", testLogger())
	if _, err := m.Token(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ForceRefresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("token endpoint hit %d times, want 2", got)
	}
}

func TestTokenEndpointRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewManager(srv.URL, "cid", "wrong", testLogger())
	_, err := m.Token(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("err = %v, want ErrAuthentication", err)
	}
}

func TestClientIDFromToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": "my-app-id",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	id, err := ClientIDFromToken(signed)
	if err != nil {
		t.Fatal(err)
	}
	if id != "my-app-id" {
		t.Errorf("client id = %q, want my-app-id", id)
	}
}

func TestClientIDFromTokenErrors(t *testing.T) {
	if _, err := ClientIDFromToken("not-a-jwt"); err == nil {
		t.Error("want error for malformed token")
	}

	noClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "someone",
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ClientIDFromToken(noClaim); err == nil {
		t.Error("want error for token without client_id claim")
	}
}
