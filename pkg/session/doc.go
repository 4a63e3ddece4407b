// Package session implements parley's conversation runtime: long-lived
// sessions that let server-side Go code converse with a connected
// client by sending commands and suspending until client events arrive.
//
// # Execution models
//
// Two session kinds coexist in one process:
//
//   - KindGoroutine: the application task runs on its own goroutine and
//     suspension blocks that goroutine. Auxiliary goroutines join the
//     session with (*GoroutineSession).Go.
//
//   - KindCoroutine: all tasks of a session run on one cooperative
//     scheduler. Exactly one coroutine executes at a time and control
//     transfers only at suspension points, so session state needs no
//     locking. RunAsync spawns concurrent coroutines, RunGoroutine
//     bridges out to ordinary goroutines.
//
// # Ambient resolution
//
// Application code never carries a session handle. Register classifies
// a task entry point once and records its kind; Current resolves the
// session owning the calling goroutine through per-kind tables keyed by
// goroutine ID. When nothing was registered, the first Current call
// boots script mode: a singleton session served by a lazily started
// local server.
//
// # Suspension
//
// NextClientEvent suspends the caller until one inbound event for the
// session is available. Uncorrelated events feed a session-wide FIFO
// and go to exactly one consumer each; events carrying a task
// correlation ID are routed to the issuing execution unit's own
// mailbox. Closing a session wakes every suspended consumer with
// ErrSessionClosed.
package session
