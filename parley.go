// Package parley provides the public API for building interactive
// terminal-style web applications in plain Go.
//
// This is the recommended import for applications:
//
//	import "github.com/parley-dev/parley"
//
// Usage:
//
//	func chat() {
//		parley.Text("what's your name?")
//		ev, err := parley.NextClientEvent()
//		if err != nil {
//			return
//		}
//		parley.Text(fmt.Sprintf("hello, %v", ev.Data))
//		parley.Hold()
//	}
//
//	func main() {
//		parley.Serve(":8080", chat)
//	}
//
// Every operation resolves the session of the calling goroutine
// implicitly, so application code never threads a session value
// through its call stack. A task runs under one of two execution
// models chosen by its registered shape: plain functions run on
// dedicated goroutines, parley.Coroutine values run on a cooperative
// per-session scheduler.
package parley

import (
	"context"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/session"
)

// =============================================================================
// Core types (re-exported from pkg/session and pkg/protocol)
// =============================================================================

// Session is a live client conversation. Most applications never hold
// one directly; the package-level operations resolve it implicitly.
type Session = session.Session

// Info describes the client and transport behind a session.
type Info = session.Info

// Store is the per-session key/value storage returned by Data.
type Store = session.Store

// Task marks a function for the goroutine execution model.
type Task = session.Task

// Coroutine marks a function for the cooperative execution model.
type Coroutine = session.Coroutine

// TaskHandle controls a coroutine spawned with RunAsync.
type TaskHandle = session.TaskHandle

// Kind identifies a session's execution model.
type Kind = session.Kind

const (
	KindGoroutine = session.KindGoroutine
	KindCoroutine = session.KindCoroutine
)

// Event is one message from the client.
type Event = protocol.Event

// Command is one message to the client.
type Command = protocol.Command

// Args carries named values into injected JavaScript.
type Args = map[string]any

// Lifecycle errors, re-exported for errors.Is checks.
var (
	ErrSessionNotFound = session.ErrSessionNotFound
	ErrSessionClosed   = session.ErrSessionClosed
	ErrTaskCanceled    = session.ErrTaskCanceled
)

// IsGone reports whether err means the conversation is over, either
// closed or never resolvable again.
var IsGone = session.IsGone

// Current resolves the session bound to the calling goroutine.
var Current = session.Current

// Register records the execution model for a task entry point. Servers
// call this for every app they serve; scripts never call it and get a
// lazily started local session instead.
var Register = session.Register

// ScriptMode reports whether the process runs as a script against the
// lazily started local server.
var ScriptMode = session.ScriptMode

// =============================================================================
// Suspension
// =============================================================================

// NextClientEvent suspends the caller until the client sends its next
// event. Under the goroutine model this blocks the goroutine; under the
// coroutine model it parks the coroutine and lets its siblings run.
// Returns ErrSessionClosed once the conversation is over.
func NextClientEvent() (Event, error) {
	s, err := session.Current()
	if err != nil {
		return Event{}, err
	}
	return s.NextClientEvent()
}

// Hold keeps the session alive after the task body is done, serving
// client events until the client leaves. Without it a returning task
// closes the session and the browser shows the conversation ended.
//
// Events consumed while holding are discarded.
func Hold() error {
	s, err := session.Current()
	if err != nil {
		return err
	}
	for {
		if _, err := s.NextClientEvent(); err != nil {
			if session.IsGone(err) {
				return nil
			}
			return err
		}
	}
}

// =============================================================================
// Goroutine model
// =============================================================================

// Go runs fn on a new goroutine bound to the current session, so
// interactive calls on it resolve the same conversation. The binding
// ends when fn returns or the session closes.
//
// Calling Go under the coroutine model panics: coroutines spawn
// concurrent work with RunAsync instead.
func Go(fn func()) error {
	s, err := session.RequireKind(session.KindGoroutine, "Go")
	if err != nil {
		return err
	}
	s.(*session.GoroutineSession).Go(fn)
	return nil
}

// =============================================================================
// Coroutine model
// =============================================================================

// RunAsync schedules fn as a new coroutine of the current session and
// returns its handle. The coroutine shares the session's scheduler:
// exactly one coroutine runs at a time, so fn may touch shared state
// without locking.
//
// Calling RunAsync under the goroutine model panics: goroutine tasks
// spawn concurrent work with Go instead.
func RunAsync(fn func()) (*TaskHandle, error) {
	s, err := session.RequireKind(session.KindCoroutine, "RunAsync")
	if err != nil {
		return nil, err
	}
	return s.(*session.CoroutineSession).RunAsync(fn)
}

// RunGoroutine runs blocking or CPU-bound fn on an ordinary goroutine,
// parks the calling coroutine until it completes, and returns fn's
// exact result and error. Sibling coroutines keep running meanwhile.
// The ctx is canceled when the session closes or the coroutine's
// handle is closed.
//
// Calling RunGoroutine under the goroutine model panics: goroutine
// tasks just call fn.
func RunGoroutine(fn func(ctx context.Context) (any, error)) (any, error) {
	s, err := session.RequireKind(session.KindCoroutine, "RunGoroutine")
	if err != nil {
		return nil, err
	}
	return s.(*session.CoroutineSession).RunGoroutine(fn)
}
