package rest

import (
	"errors"
	"fmt"
)

// Status sentinels, matched from HTTPError via errors.Is.
var (
	ErrBadRequest   = errors.New("rest: bad request")
	ErrUnauthorized = errors.New("rest: unauthorized")
	ErrForbidden    = errors.New("rest: forbidden")
)

// HTTPError is a non-2xx response from the vendor API with the status code
// preserved.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rest: HTTP %d", e.Status)
	}
	return fmt.Sprintf("rest: HTTP %d: %s", e.Status, e.Detail)
}

func (e *HTTPError) Unwrap() error {
	switch e.Status {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	default:
		return nil
	}
}
