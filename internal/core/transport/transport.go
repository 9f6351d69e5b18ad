// Package transport maintains the websocket connection to the Automower
// Connect push endpoint. It only moves raw frames; decoding lives in the
// event package.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Read deadline extended on every inbound frame and pong. The server sends
// an empty frame at least once a minute while the stream is healthy.
const readTimeout = 300 * time.Second

// Conn is a single websocket connection to the push endpoint.
type Conn interface {
	// Recv blocks until a raw text frame is received.
	Recv(ctx context.Context) ([]byte, error)
	// Ping sends the empty keepalive frame the vendor expects.
	Ping() error
	// Close closes the underlying connection.
	Close() error
}

// Dialer creates websocket connections to the push endpoint.
type Dialer interface {
	Dial(ctx context.Context, accessToken string) (Conn, error)
}

// --- websocket Conn implementation ---

type wsConn struct {
	ws  *websocket.Conn
	mu  sync.Mutex // protects writes
	log *slog.Logger
}

func newWSConn(ws *websocket.Conn, log *slog.Logger) *wsConn {
	c := &wsConn{ws: ws, log: log}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return c
}

func (c *wsConn) Recv(_ context.Context) ([]byte, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("transport: read: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("transport: unexpected message type %d", msgType)
	}
	if err := c.ws.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	return data, nil
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, nil)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// --- Cloud Dialer ---

// CloudDialer connects to the vendor's websocket endpoint with a bearer
// token obtained per attempt.
type CloudDialer struct {
	wsURL string
	log   *slog.Logger
}

// NewCloudDialer creates a dialer for the given websocket URL.
func NewCloudDialer(wsURL string, log *slog.Logger) *CloudDialer {
	return &CloudDialer{wsURL: wsURL, log: log}
}

// Dial opens the push connection using the given access token.
func (d *CloudDialer) Dial(ctx context.Context, accessToken string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	d.log.Debug("dialing push endpoint", "url", d.wsURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	ws, resp, err := dialer.DialContext(ctx, d.wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("transport: dial %s: HTTP %d: %w", d.wsURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: dial %s: %w", d.wsURL, err)
	}

	if err := ws.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		ws.Close()
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}

	d.log.Info("connected to push endpoint")
	return newWSConn(ws, d.log), nil
}
