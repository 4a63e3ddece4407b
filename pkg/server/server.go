package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/parley-dev/parley/pkg/session"
)

// Server hosts parley applications over the WebSocket and HTTP polling
// transports and serves the browser shell that speaks them.
type Server struct {
	config     *Config
	apps       map[string]*application
	sessions   *SessionManager
	upgrader   websocket.Upgrader
	router     chi.Router
	logger     *slog.Logger
	baseLogger *slog.Logger

	// scriptSess, when set, is the singleton conversation this server
	// exists to serve; transports attach to it instead of creating
	// sessions.
	scriptSess session.Session

	httpServer *http.Server
}

// New builds a Server hosting the given applications. A nil cfg uses
// DefaultConfig.
func New(cfg *Config, apps Apps) *Server {
	cfg = cfg.withDefaults()
	if cfg.CheckOrigin == nil {
		cfg.CheckOrigin = sameOriginCheck
	}

	s := &Server{
		config:     cfg,
		apps:       buildApplications(apps),
		sessions:   NewSessionManager(cfg, cfg.Logger),
		baseLogger: cfg.Logger,
		logger:     cfg.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.handleShell)
	r.Get("/parley.js", s.handleClientScript)
	r.Get("/ws", s.HandleWebSocket)
	r.HandleFunc("/app/{app}", s.HandleHTTP)
	r.Get("/healthz", s.handleHealth)
	return r
}

// ServeHTTP implements http.Handler so the server can be mounted under
// an existing mux or served from a caller-owned listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run starts the HTTP server and blocks until a failure or until
// SIGINT or SIGTERM triggers a graceful shutdown.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.config.Address, "apps", s.AppNames())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.config.Address, err)
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown closes every session and then stops the HTTP server. Safe
// to call whether or not Run is active.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Warn("session shutdown incomplete", "error", err)
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server: http shutdown: %w", err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}

// Sessions exposes the session manager, mainly for metrics callbacks.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the effective configuration.
func (s *Server) Config() *Config {
	return s.config
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`+"\n", s.sessions.Count())
}

// sessionConfig builds the per-session configuration for a transport.
func (s *Server) sessionConfig(info session.Info) *session.Config {
	return &session.Config{
		Logger:           s.baseLogger,
		Info:             info,
		MaxPendingEvents: s.config.MaxPendingEvents,
	}
}

// wrap applies the configured session wrapper, if any.
func (s *Server) wrap(sess session.Session) session.Session {
	if s.config.WrapSession != nil {
		return s.config.WrapSession(sess)
	}
	return sess
}

// Handle registers an extra route on the server's router, e.g. a
// Prometheus metrics endpoint.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}
