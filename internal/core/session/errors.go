package session

import "errors"

// Usage errors returned synchronously to the caller, never delivered
// through subscriber callbacks.
var (
	// ErrClosed is returned by Start after Close has been called. A closed
	// coordinator is permanently inert.
	ErrClosed = errors.New("session: closed")

	// ErrAlreadyStarted is returned by Start while the coordinator is
	// already running. Only one connection attempt is ever in flight.
	ErrAlreadyStarted = errors.New("session: already started")
)
