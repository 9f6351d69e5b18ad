// Package rest wraps the Automower Connect REST API: listing mowers and
// sending commands. Responses never mutate local state directly; the
// session applies confirmed snapshots and stream events instead.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/trymwestin/mowerd/internal/core/auth"
	"github.com/trymwestin/mowerd/internal/core/event"
)

const contentType = "application/vnd.api+json"

// TokenSource supplies a current access token for each request.
type TokenSource interface {
	Token(ctx context.Context) (auth.Token, error)
}

// Client issues authenticated requests against the vendor API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a REST client. apiKey is the application's client id,
// echoed back to the API as X-Api-Key. When apiKey is empty it is derived
// from the client_id claim of each access token instead.
func NewClient(baseURL string, tokens TokenSource, apiKey string, log *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		tokens:     tokens,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// ListMowers fetches the full state of every mower linked to the account.
func (c *Client) ListMowers(ctx context.Context) ([]event.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "mowers", nil)
	if err != nil {
		return nil, err
	}
	return event.DecodeMowerList(body)
}

// do issues one authenticated request and returns the response body.
// HTTP 202 is success: the command was accepted for asynchronous execution.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("rest: marshal %s body: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("rest: build request: %w", err)
	}
	apiKey := c.apiKey
	if apiKey == "" {
		if id, err := auth.ClientIDFromToken(tok.AccessToken); err == nil {
			apiKey = id
		}
	}

	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Authorization-Provider", "husqvarna")
	req.Header.Set("X-Api-Key", apiKey)
	req.Header.Set("Accept", contentType)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	c.log.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("rest: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Status: resp.StatusCode, Detail: errorDetail(body)}
	}
	return body, nil
}

// errorDetail pulls a human-readable message out of a JSON:API error
// document, best effort.
func errorDetail(body []byte) string {
	var doc struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || len(doc.Errors) == 0 {
		return ""
	}
	e := doc.Errors[0]
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}
