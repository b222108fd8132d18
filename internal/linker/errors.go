package linker

import (
	"errors"
	"fmt"
)

// Workflow failure taxonomy. Anything that happens before the commit point
// surfaces as one of these; best-effort steps never produce them.
var (
	// ErrUnauthenticated means no session was presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound means there is no linked account to act on. Unlink always
	// reports it as an error, never as a boolean (the historical behavior
	// varied; this is the policy we settled on).
	ErrNotFound = errors.New("linked account not found")
)

// UpstreamError wraps a failed or malformed Discord API exchange.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store write at the commit point.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
