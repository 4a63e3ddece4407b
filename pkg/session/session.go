package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-dev/parley/pkg/protocol"
)

// Kind identifies a session's execution model.
type Kind int

const (
	// KindGoroutine sessions run the application task on a dedicated
	// goroutine; suspension blocks that goroutine.
	KindGoroutine Kind = iota + 1

	// KindCoroutine sessions run all tasks on one cooperative scheduler
	// per session; suspension parks the coroutine.
	KindCoroutine
)

func (k Kind) String() string {
	switch k {
	case KindGoroutine:
		return "goroutine"
	case KindCoroutine:
		return "coroutine"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Task is a plain blocking task entry point. Bare func() and
// func() error values are accepted wherever a Task is.
type Task func()

// Coroutine marks a task entry point for cooperative scheduling. Tasks
// of this type run interleaved on the session scheduler and must not
// block except through session suspension points or RunGoroutine.
type Coroutine func()

// Session is a live conversation with one connected client. Both
// execution models implement it; application code resolves the ambient
// session with Current and rarely holds one directly.
type Session interface {
	// ID returns the unique session identifier.
	ID() string

	// Kind returns the execution model.
	Kind() Kind

	// CreatedAt returns the creation time.
	CreatedAt() time.Time

	// Info returns the client descriptor captured at creation.
	Info() Info

	// Store returns the session-local key/value store.
	Store() *Store

	// Send emits one command to the client. Commands from one execution
	// unit are sent in issue order. Returns ErrSessionClosed after
	// Close.
	Send(cmd protocol.Command) error

	// NextClientEvent suspends the caller until one inbound event for
	// this session is available and returns it. Wakes with
	// ErrSessionClosed when the session closes mid-wait.
	NextClientEvent() (protocol.Event, error)

	// Deliver hands an inbound client event to the session. Called by
	// transports. Returns ErrEventQueueFull when the event was dropped
	// for backpressure and ErrSessionClosed after Close.
	Deliver(ev protocol.Event) error

	// DeferCall registers f to run exactly once when the session
	// closes, after all earlier registrations. Registrations after
	// Close never run.
	DeferCall(f func())

	// ApplyEnv validates an environment spec, records it and sends it
	// to the client. Panics on an unknown key before anything is sent.
	ApplyEnv(spec map[string]any) error

	// EnvValue returns the last applied value for an environment key,
	// or nil.
	EnvValue(key string) any

	// PullInterval returns the session's http_pull_interval setting, or
	// def when unset.
	PullInterval(def time.Duration) time.Duration

	// AttachSink connects the transport write path. Commands buffered
	// while no sink was attached are flushed through it first.
	AttachSink(sink func(protocol.Command) error)

	// DetachSink disconnects the transport write path; subsequent
	// commands buffer until a sink is attached again.
	DetachSink()

	// DrainCommands removes and returns all buffered commands. Used by
	// polling transports.
	DrainCommands() []protocol.Command

	// Close ends the session: idempotent, wakes every suspended
	// consumer with ErrSessionClosed, releases goroutine bindings and
	// runs deferred cleanups exactly once.
	Close()

	// Closed reports whether Close was called.
	Closed() bool

	// Done is closed when the session closes.
	Done() <-chan struct{}

	// LastActive returns the time of the last send or delivery.
	LastActive() time.Time

	// Touch marks the session active now. Polling transports call it on
	// every request so idle reaping sees the client.
	Touch()

	// Stats returns a snapshot of session counters.
	Stats() Stats
}

// Config controls session construction.
type Config struct {
	// Logger receives session lifecycle and error logs.
	// Default: slog.Default().
	Logger *slog.Logger

	// Info describes the client the session serves.
	Info Info

	// MaxPendingEvents bounds the queue of inbound events with no
	// consumer; further uncorrelated events are dropped.
	// Default: 256.
	MaxPendingEvents int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger:           slog.Default(),
		MaxPendingEvents: 256,
	}
}

func (c *Config) withDefaults() Config {
	cfg := Config{}
	if c != nil {
		cfg = *c
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxPendingEvents <= 0 {
		cfg.MaxPendingEvents = 256
	}
	return cfg
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	ID              string
	Kind            Kind
	CreatedAt       time.Time
	LastActive      time.Time
	EventsReceived  uint64
	EventsDropped   uint64
	CommandsSent    uint64
	PendingEvents   int
	PendingCommands int
	StoreKeys       int
	Closed          bool
}

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("session: failed to generate session ID: %v", err))
	}
	return hex.EncodeToString(b)
}
