package event

import "errors"

// ErrMalformedMessage is returned for payloads that cannot be decoded:
// invalid JSON, a missing or unrecognized type discriminator, or attribute
// shapes that don't match the discriminator. Callers log and drop these; a
// single bad message must never break the stream.
var ErrMalformedMessage = errors.New("event: malformed message")
