package mower

import "errors"

// Store errors, checked with errors.Is by callers.
var (
	// ErrUnknownMower is returned when a delta arrives for a mower that has
	// never received a full snapshot. Deltas must not synthesize a mower.
	ErrUnknownMower = errors.New("mower: unknown mower id")
)
