package api

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned (wrapped in a *TransportError) when a single-entity
// lookup gets a 404.
var ErrNotFound = errors.New("entity not found")

// TransportError covers request construction, network failures and non-2xx responses.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError covers unparseable bodies and payloads that fail schema validation.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
