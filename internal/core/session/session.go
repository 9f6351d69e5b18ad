// Package session owns the connection lifecycle against the Automower
// Connect cloud: it keeps one authenticated stream alive, merges REST
// snapshots with streamed deltas into the store, and fans out change
// notifications to subscribers.
//
// A connection drop never corrupts known state; it only marks every mower
// disconnected until the post-reconnect REST resync, which is authoritative
// and overwrites whatever the stream would have said in the meantime.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trymwestin/mowerd/internal/core/auth"
	"github.com/trymwestin/mowerd/internal/core/event"
	"github.com/trymwestin/mowerd/internal/core/mower"
	"github.com/trymwestin/mowerd/internal/core/transport"
)

// ConnState is the coordinator's lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReauthenticating
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReauthenticating:
		return "reauthenticating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TokenProvider supplies bearer tokens for connection attempts. Refresh
// mechanics belong entirely to the provider; the coordinator only retries
// whole connection attempts.
type TokenProvider interface {
	Token(ctx context.Context) (auth.Token, error)
	ForceRefresh(ctx context.Context) (auth.Token, error)
}

// CommandAPI is the outbound command surface, delegated to the REST client.
// Commands never mutate local state; state changes only via confirmed
// stream events or REST snapshots.
type CommandAPI interface {
	ResumeSchedule(ctx context.Context, mowerID string) error
	Pause(ctx context.Context, mowerID string) error
	ParkUntilNextSchedule(ctx context.Context, mowerID string) error
	ParkUntilFurtherNotice(ctx context.Context, mowerID string) error
	Park(ctx context.Context, mowerID string, minutes int) error
	Start(ctx context.Context, mowerID string, minutes int) error
	StartInWorkArea(ctx context.Context, mowerID string, workAreaID int64, minutes int) error
	SetCuttingHeight(ctx context.Context, mowerID string, height int) error
	SetCuttingHeightWorkArea(ctx context.Context, mowerID string, workAreaID int64, height int) error
	SetHeadlightMode(ctx context.Context, mowerID string, mode mower.HeadlightMode) error
	SetCalendar(ctx context.Context, mowerID string, tasks []mower.CalendarTask) error
	SwitchStayOutZone(ctx context.Context, mowerID, zoneID string, enable bool) error
	ConfirmError(ctx context.Context, mowerID string) error
}

// API is the REST surface the coordinator consumes.
type API interface {
	CommandAPI
	ListMowers(ctx context.Context) ([]event.Snapshot, error)
}

// Coordinator drives the session: connect, resync, drain, reconnect.
type Coordinator struct {
	tokens TokenProvider
	api    API
	dialer transport.Dialer
	store  *mower.Store
	reg    *Registry
	log    *slog.Logger

	// pollInterval > 0 enables periodic REST resync while connected.
	pollInterval time.Duration

	state   atomic.Int32
	running atomic.Bool

	mu      sync.Mutex // guards start/close transitions and conn
	closed  bool
	cancel  context.CancelFunc
	stopped chan struct{}
	conn    transport.Conn

	// applyMu serializes apply+notify sequences so every subscriber sees
	// monotonic state per mower even when the poll loop races the stream.
	applyMu sync.Mutex

	wakeCh chan struct{}

	backoffInitial time.Duration
	backoffMax     time.Duration
}

// Option adjusts coordinator construction.
type Option func(*Coordinator)

// WithRestPolling enables periodic REST resync at the given interval.
func WithRestPolling(interval time.Duration) Option {
	return func(c *Coordinator) { c.pollInterval = interval }
}

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(initial, max time.Duration) Option {
	return func(c *Coordinator) {
		c.backoffInitial = initial
		c.backoffMax = max
	}
}

// NewCoordinator creates a coordinator. Multiple independent coordinators
// can coexist; there is no shared global state.
func NewCoordinator(tokens TokenProvider, api API, dialer transport.Dialer, store *mower.Store, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		tokens:         tokens,
		api:            api,
		dialer:         dialer,
		store:          store,
		reg:            NewRegistry(log),
		log:            log,
		wakeCh:         make(chan struct{}, 1),
		backoffInitial: time.Second,
		backoffMax:     2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Coordinator) setState(s ConnState) {
	old := ConnState(c.state.Swap(int32(s)))
	if old != s {
		c.log.Debug("session state", "from", old.String(), "to", s.String())
	}
}

// Subscribe registers a state-change callback.
func (c *Coordinator) Subscribe(cb Callback) Handle {
	return c.reg.Subscribe(cb)
}

// Unsubscribe removes a subscription.
func (c *Coordinator) Unsubscribe(h Handle) {
	c.reg.Unsubscribe(h)
}

// GetState returns a copy of the state for one mower.
func (c *Coordinator) GetState(mowerID string) (mower.State, bool) {
	return c.store.Get(mowerID)
}

// GetAllStates returns a copy of the state for every known mower.
func (c *Coordinator) GetAllStates() map[string]mower.State {
	return c.store.All()
}

// Commands returns the outbound command surface.
func (c *Coordinator) Commands() CommandAPI {
	return c.api
}

// Start begins the connect/reconnect loop. It returns ErrAlreadyStarted if
// the coordinator is running and ErrClosed after Close.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stopped = make(chan struct{})
	c.mu.Unlock()

	go c.runLoop(runCtx)
	return nil
}

// Close moves the coordinator to its terminal state from any other state.
// It is safe to call concurrently and repeatedly, and blocks until the
// transport is torn down and all pending retry timers are cancelled.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		stopped := c.stopped
		c.mu.Unlock()
		if stopped != nil {
			<-stopped
		}
		return nil
	}
	c.closed = true
	cancel := c.cancel
	stopped := c.stopped
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopped != nil {
		<-stopped
	}
	c.setState(StateClosed)
	return nil
}

// runLoop reconnects indefinitely with jittered exponential backoff until
// the context is cancelled by Close.
func (c *Coordinator) runLoop(ctx context.Context) {
	defer func() {
		c.disconnect()
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			c.setState(StateClosed)
		} else {
			// Parent context cancelled without Close; restartable.
			c.setState(StateDisconnected)
		}
		c.running.Store(false)
		close(c.stopped)
	}()

	backoff := c.backoffInitial

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.setState(StateConnecting)
		connected, err := c.connectAndRun(ctx)
		if ctx.Err() != nil {
			c.log.Info("session shutting down")
			return
		}
		if err != nil {
			c.log.Error("session connection error", "error", err, "retry_in", backoff)
		}

		c.disconnect()
		c.setState(StateDisconnected)

		if connected {
			backoff = c.backoffInitial
		}

		// Interruptible, jittered backoff.
		timer := time.NewTimer(jitter(backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-c.wakeCh:
			timer.Stop()
			backoff = c.backoffInitial
			c.log.Info("wake signal received, reconnecting immediately")
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.backoffMax {
			backoff = c.backoffMax
		}
	}
}

// jitter spreads retries over [d/2, d] so reconnecting clients don't
// stampede the server.
func jitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := d / 2
	return half + rand.N(half)
}

// Wake skips the current backoff wait and reconnects immediately.
func (c *Coordinator) Wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Coordinator) connectAndRun(ctx context.Context) (connected bool, err error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrAuthentication) {
			c.notifyFatal(err)
		}
		return false, fmt.Errorf("get token: %w", err)
	}

	conn, err := c.dialer.Dial(ctx, tok.AccessToken)
	if err != nil {
		// The dial may have failed because the server rejected the token.
		// Reauthenticate once with a forced refresh before giving up on
		// this attempt.
		c.setState(StateReauthenticating)
		c.log.Warn("dial failed, refreshing token", "error", err)

		newTok, refreshErr := c.tokens.ForceRefresh(ctx)
		if refreshErr != nil {
			c.notifyFatal(refreshErr)
			return false, fmt.Errorf("dial failed (%v) and token refresh failed: %w", err, refreshErr)
		}

		c.setState(StateConnecting)
		conn, err = c.dialer.Dial(ctx, newTok.AccessToken)
		if err != nil {
			return false, fmt.Errorf("dial after refresh: %w", err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// The stream only carries deltas; the REST snapshot is the
	// authoritative baseline. Deltas queued server-side while we were away
	// are obsoleted by it.
	if err := c.resync(ctx); err != nil {
		return false, fmt.Errorf("initial sync: %w", err)
	}

	c.setState(StateConnected)
	connected = true
	c.log.Info("session established")

	loopCtx, cancelLoops := context.WithCancel(ctx)
	defer cancelLoops()
	// The transport read doesn't watch the context; closing the connection
	// is what unblocks it when the session shuts down.
	go func() {
		<-loopCtx.Done()
		conn.Close()
	}()
	go c.keepaliveLoop(loopCtx, conn)
	if c.pollInterval > 0 {
		go c.pollLoop(loopCtx)
	}

	return connected, c.readLoop(ctx, conn)
}

// resync fetches the full mower list and applies each entry as an
// authoritative snapshot.
func (c *Coordinator) resync(ctx context.Context) error {
	snaps, err := c.api.ListMowers(ctx)
	if err != nil {
		return err
	}

	for _, snap := range snaps {
		c.applySnapshot(snap)
	}
	c.log.Info("state synchronized", "mowers", len(snaps))
	return nil
}

func (c *Coordinator) applySnapshot(snap event.Snapshot) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	changed, _ := c.store.ApplySnapshot(snap.MowerID, snap.State)
	if len(changed) == 0 {
		return
	}
	st, _ := c.store.Get(snap.MowerID)
	c.reg.Notify(Change{MowerID: snap.MowerID, Paths: changed, State: st})
}

func (c *Coordinator) applyDelta(up event.Update) {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	changed, err := c.store.ApplyDelta(up.MowerID, up.Delta)
	if err != nil {
		// A delta must not synthesize a mower; drop it.
		c.log.Warn("dropping delta", "mower_id", up.MowerID, "error", err)
		return
	}
	if len(changed) == 0 {
		return
	}
	st, _ := c.store.Get(up.MowerID)
	c.reg.Notify(Change{MowerID: up.MowerID, Paths: changed, State: st})
}

// disconnect tears down the transport and marks every known mower stale.
// Known state is retained; only connectivity changes.
func (c *Coordinator) disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	conn.Close()

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	for _, id := range c.store.MarkAllDisconnected() {
		st, _ := c.store.Get(id)
		c.reg.Notify(Change{MowerID: id, Paths: []string{"connected"}, State: st})
	}
}

func (c *Coordinator) notifyFatal(err error) {
	c.reg.Notify(Change{Err: err})
}

func (c *Coordinator) keepaliveLoop(ctx context.Context, conn transport.Conn) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				c.log.Warn("keepalive failed", "error", err)
				conn.Close()
				return
			}
			c.log.Debug("keepalive sent")
		}
	}
}

// pollLoop periodically refreshes the full state over REST while the
// stream is up. Errors are logged and retried on the next tick; the stream
// remains the liveness signal.
func (c *Coordinator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.resync(ctx); err != nil {
				c.log.Warn("rest poll failed", "error", err)
			}
		}
	}
}

// readLoop drains the stream strictly in arrival order. Malformed messages
// are logged and dropped; a single bad frame never breaks the stream.
func (c *Coordinator) readLoop(ctx context.Context, conn transport.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw, err := conn.Recv(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		ev, err := event.Decode(raw)
		if err != nil {
			c.log.Warn("dropping malformed message", "error", err)
			continue
		}

		switch ev := ev.(type) {
		case event.Pong:
			c.log.Debug("stream alive")
		case event.Ready:
			c.log.Info("stream ready", "connection_id", ev.ConnectionID)
		case event.Snapshot:
			c.applySnapshot(ev)
		case event.Update:
			c.applyDelta(ev)
		}
	}
}
