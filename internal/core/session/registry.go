package session

import (
	"log/slog"
	"sync"

	"github.com/trymwestin/mowerd/internal/core/mower"
)

// Handle identifies one subscription.
type Handle int64

// Change is one observed state change, delivered to every registered
// callback with its own deep copy of the state.
//
// MowerID is empty for session-level events; those carry Err (a fatal
// authentication failure) and no state. Connectivity transitions arrive as
// regular per-mower changes with Paths ["connected"].
type Change struct {
	MowerID string
	Paths   []string
	State   mower.State
	Err     error
}

// Callback receives state changes. Callbacks run on the session's dispatch
// goroutine; slow callbacks delay delivery of later changes.
type Callback func(Change)

// Registry is a handle-based subscriber registry with per-callback panic
// isolation. One failing subscriber never blocks or deregisters the rest.
type Registry struct {
	mu   sync.RWMutex
	subs map[Handle]Callback
	next Handle
	log  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		subs: make(map[Handle]Callback),
		log:  log,
	}
}

// Subscribe registers a callback and returns its handle.
func (r *Registry) Subscribe(cb Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := r.next
	r.subs[h] = cb
	return h
}

// Unsubscribe removes a handle. Once Unsubscribe returns, no notification
// whose processing begins afterwards will invoke the callback; a delivery
// already in flight is allowed to complete.
func (r *Registry) Unsubscribe(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, h)
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Notify invokes every currently registered callback with its own copy of
// the change. Panicking callbacks are recovered and logged.
func (r *Registry) Notify(ch Change) {
	r.mu.RLock()
	cbs := make([]Callback, 0, len(r.subs))
	for _, cb := range r.subs {
		cbs = append(cbs, cb)
	}
	r.mu.RUnlock()

	for _, cb := range cbs {
		r.invoke(cb, Change{
			MowerID: ch.MowerID,
			Paths:   ch.Paths,
			State:   ch.State.Clone(),
			Err:     ch.Err,
		})
	}
}

func (r *Registry) invoke(cb Callback, ch Change) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("subscriber callback panicked", "mower_id", ch.MowerID, "panic", rec)
		}
	}()
	cb(ch)
}
