package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session lifecycle conditions.
var (
	// ErrSessionNotFound indicates the calling goroutine is not bound to
	// any session of a registered kind.
	ErrSessionNotFound = errors.New("session: no session bound to the calling goroutine")

	// ErrSessionClosed indicates the session closed before or during the
	// operation. Suspended consumers wake with this error.
	ErrSessionClosed = errors.New("session: session closed")

	// ErrTaskCanceled is delivered at the suspension points of a
	// coroutine whose handle was closed.
	ErrTaskCanceled = errors.New("session: task canceled")

	// ErrEventQueueFull indicates an inbound event was dropped because
	// the session's pending queue is at capacity.
	ErrEventQueueFull = errors.New("session: event queue full")
)

// IsGone reports whether err means the session is unusable for further
// interaction, either closed or not found. Loops that serve a
// conversation until it ends test their errors with this.
func IsGone(err error) bool {
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrSessionNotFound)
}

// KindMismatchError is the panic value raised when an operation bound
// to one execution model is called under another. This is a
// design-time contract violation, not a recoverable condition.
type KindMismatchError struct {
	Op       string
	Required Kind
	Actual   Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("session: %s requires a %s session, current session is %s", e.Op, e.Required, e.Actual)
}
