package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/parley-dev/parley/pkg/session"
)

// Config holds configuration for the HTTP/WebSocket server.
type Config struct {
	// Logger receives server, transport and session logs.
	// Default: slog.Default().
	Logger *slog.Logger

	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// WebSocket

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin for WebSocket
	// upgrades.
	// Default: allows same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// HeartbeatInterval is the time between WebSocket heartbeat pings.
	// Default: 25 seconds.
	HeartbeatInterval time.Duration

	// Timeouts

	// ReadTimeout is the maximum time to wait for a message from a
	// connected WebSocket client, heartbeat responses included.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Sessions

	// SessionIdleTimeout is the time after which a session with no
	// client activity is closed. This is what reaps abandoned HTTP
	// polling sessions.
	// Default: 5 minutes.
	SessionIdleTimeout time.Duration

	// CleanupInterval is how often idle sessions are checked.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	// Default: 0 (no limit).
	MaxSessions int

	// MaxSessionsPerIP is the maximum sessions per client address.
	// 0 means no limit.
	// Default: 0 (no limit).
	MaxSessionsPerIP int

	// MaxPendingEvents is the per-session inbound event queue bound.
	// Default: 256.
	MaxPendingEvents int

	// PullInterval is the poll interval suggested to HTTP transport
	// clients until the application overrides it.
	// Default: 1 second.
	PullInterval time.Duration

	// WrapSession, when set, wraps each new session before it is
	// tracked. Instrumentation middleware hooks in here.
	// Default: nil.
	WrapSession func(session.Session) session.Session

	// TrustProxyHeaders reads the client address from X-Forwarded-For.
	// Enable only behind a proxy that sets it.
	// Default: false.
	TrustProxyHeaders bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger:             slog.Default(),
		Address:            ":8080",
		ReadBufferSize:     4096,
		WriteBufferSize:    4096,
		MaxMessageSize:     64 * 1024,
		HeartbeatInterval:  25 * time.Second,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       10 * time.Second,
		ReadHeaderTimeout:  10 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		SessionIdleTimeout: 5 * time.Minute,
		CleanupInterval:    30 * time.Second,
		MaxPendingEvents:   256,
		PullInterval:       time.Second,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithMaxSessions sets the server-wide session limit.
func (c *Config) WithMaxSessions(n int) *Config {
	c.MaxSessions = n
	return c
}

// WithIdleTimeout sets the session idle timeout.
func (c *Config) WithIdleTimeout(d time.Duration) *Config {
	c.SessionIdleTimeout = d
	return c
}

// WithCheckOrigin sets the WebSocket origin check.
func (c *Config) WithCheckOrigin(fn func(r *http.Request) bool) *Config {
	c.CheckOrigin = fn
	return c
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := c.Clone()
	defaults := DefaultConfig()
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = defaults.MaxMessageSize
	}
	if out.HeartbeatInterval == 0 {
		out.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = defaults.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.SessionIdleTimeout == 0 {
		out.SessionIdleTimeout = defaults.SessionIdleTimeout
	}
	if out.CleanupInterval == 0 {
		out.CleanupInterval = defaults.CleanupInterval
	}
	if out.MaxPendingEvents == 0 {
		out.MaxPendingEvents = defaults.MaxPendingEvents
	}
	if out.PullInterval == 0 {
		out.PullInterval = defaults.PullInterval
	}
	return out
}
