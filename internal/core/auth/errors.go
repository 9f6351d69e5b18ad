package auth

import "errors"

// Auth errors, checked with errors.Is by the session's retry loop.
var (
	// ErrAuthentication is returned when the authorization server rejects
	// the credentials or the token request itself fails.
	ErrAuthentication = errors.New("auth: authentication failed")
)
