package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server-level conditions.
var (
	// ErrAppNotFound is returned when a request names an application the
	// server does not host.
	ErrAppNotFound = errors.New("server: application not found")

	// ErrSessionNotFound is returned when a session ID does not exist or
	// has already been reaped.
	ErrSessionNotFound = errors.New("server: session not found")

	// ErrMaxSessionsReached is returned when the server-wide session
	// limit is reached.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrTooManySessionsFromIP is returned when one client address holds
	// too many sessions.
	ErrTooManySessionsFromIP = errors.New("server: too many sessions from IP")
)

// TransportError wraps a transport failure with session context.
type TransportError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *TransportError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}
