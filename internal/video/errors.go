package video

import (
	"errors"
	"fmt"
)

// ErrInvalidURL is returned by ExtractID for any input that does not match
// a recognized YouTube URL shape.
var ErrInvalidURL = errors.New("invalid YouTube URL")

// ErrNotFound indicates the provider or store has no entry for an ID.
var ErrNotFound = errors.New("video not found")

// FetchError wraps a transport or HTTP-level failure talking to the
// metadata provider. It is transient: the message should be redelivered.
type FetchError struct {
	ID         ID
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch metadata for %s: provider returned %d", e.ID, e.StatusCode)
	}
	return fmt.Sprintf("fetch metadata for %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError marks a provider response that cannot be normalized into a
// Record: a required field is missing or a numeric string does not parse.
// Redelivery cannot fix it, so the worker drops the message.
type ParseError struct {
	ID    ID
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse metadata for %s: field %q: %v", e.ID, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
