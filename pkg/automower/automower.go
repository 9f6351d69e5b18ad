// Package automower provides a public facade re-exporting core types
// for external consumers of this module.
package automower

import (
	"github.com/trymwestin/mowerd/internal/core/auth"
	"github.com/trymwestin/mowerd/internal/core/mower"
	"github.com/trymwestin/mowerd/internal/core/session"
	"github.com/trymwestin/mowerd/internal/core/transport"
)

// Re-export core types for external use.
type (
	// Token holds an OAuth2 access token.
	Token = auth.Token
	// State is a full snapshot of one mower's state.
	State = mower.State
	// Status is the mower's operational status.
	Status = mower.Status
	// Planner describes the mowing schedule planner.
	Planner = mower.Planner
	// CalendarTask is one entry in the weekly mowing calendar.
	CalendarTask = mower.CalendarTask
	// Position is one GPS fix.
	Position = mower.Position
	// HeadlightMode selects the headlight behaviour.
	HeadlightMode = mower.HeadlightMode
	// WorkArea describes one named mowing area.
	WorkArea = mower.WorkArea
	// Message is one diagnostic message from the mower.
	Message = mower.Message
	// Store is the canonical in-memory state store.
	Store = mower.Store
	// Coordinator drives the cloud session.
	Coordinator = session.Coordinator
	// ConnState is the coordinator's lifecycle state.
	ConnState = session.ConnState
	// Change is one observed state change.
	Change = session.Change
	// Callback receives state changes.
	Callback = session.Callback
	// Handle identifies one subscription.
	Handle = session.Handle
	// CommandAPI is the outbound command surface.
	CommandAPI = session.CommandAPI
	// Dialer creates websocket connections to the event stream.
	Dialer = transport.Dialer
	// Conn is one websocket connection.
	Conn = transport.Conn
)

// Coordinator lifecycle states.
const (
	StateDisconnected     = session.StateDisconnected
	StateConnecting       = session.StateConnecting
	StateConnected        = session.StateConnected
	StateReauthenticating = session.StateReauthenticating
	StateClosed           = session.StateClosed
)

// Headlight modes.
const (
	HeadlightAlwaysOn        = mower.HeadlightAlwaysOn
	HeadlightAlwaysOff       = mower.HeadlightAlwaysOff
	HeadlightEveningOnly     = mower.HeadlightEveningOnly
	HeadlightEveningAndNight = mower.HeadlightEveningAndNight
)

// Re-exported constructors and sentinels.
var (
	NewStore          = mower.NewStore
	NewCoordinator    = session.NewCoordinator
	ErrUnknownMower   = mower.ErrUnknownMower
	ErrClosed         = session.ErrClosed
	ErrAlreadyStarted = session.ErrAlreadyStarted
)
