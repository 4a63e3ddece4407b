package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-dev/parley/pkg/session"
)

// SessionManager tracks every live session of a server. It enforces
// session limits, reaps idle sessions, and fans lifecycle callbacks
// out to instrumentation.
type SessionManager struct {
	mu           sync.RWMutex
	sessions     map[string]session.Session
	sessionsByIP map[string]int

	idleTimeout     time.Duration
	cleanupInterval time.Duration
	done            chan struct{}
	cleanupDone     chan struct{}

	maxSessions      int
	maxSessionsPerIP int

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int

	onSessionCreate func(session.Session)
	onSessionClose  func(session.Session)

	logger *slog.Logger
}

// NewSessionManager creates a SessionManager from server configuration
// and starts its cleanup loop.
func NewSessionManager(cfg *Config, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	sm := &SessionManager{
		sessions:         make(map[string]session.Session),
		sessionsByIP:     make(map[string]int),
		idleTimeout:      cfg.SessionIdleTimeout,
		cleanupInterval:  cfg.CleanupInterval,
		done:             make(chan struct{}),
		cleanupDone:      make(chan struct{}),
		maxSessions:      cfg.MaxSessions,
		maxSessionsPerIP: cfg.MaxSessionsPerIP,
		logger:           logger.With("component", "session_manager"),
	}
	go sm.cleanupLoop()
	return sm
}

// Track registers a session. It fails when a limit is hit, in which
// case the caller still owns the session and should close it.
func (sm *SessionManager) Track(s session.Session) error {
	ip := s.Info().IP
	sm.mu.Lock()
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.mu.Unlock()
		return ErrMaxSessionsReached
	}
	if sm.maxSessionsPerIP > 0 && ip != "" && sm.sessionsByIP[ip] >= sm.maxSessionsPerIP {
		sm.mu.Unlock()
		return ErrTooManySessionsFromIP
	}
	sm.sessions[s.ID()] = s
	if ip != "" {
		sm.sessionsByIP[ip]++
	}
	if len(sm.sessions) > sm.peakSessions {
		sm.peakSessions = len(sm.sessions)
	}
	sm.mu.Unlock()

	sm.totalCreated.Add(1)
	if sm.onSessionCreate != nil {
		sm.onSessionCreate(s)
	}
	// A session can end on its own, when its task returns. Drop it from
	// the table as soon as that happens rather than waiting for a reap.
	go func() {
		<-s.Done()
		sm.Remove(s.ID())
	}()

	sm.logger.Info("session tracked",
		"session_id", s.ID(),
		"kind", s.Kind().String(),
		"active_sessions", sm.Count())
	return nil
}

// Get retrieves a session by ID.
func (sm *SessionManager) Get(id string) (session.Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove forgets a session and closes it. Removing an unknown ID is a
// no-op, so the close path and the task-return path can race freely.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	if ok {
		delete(sm.sessions, id)
		if ip := s.Info().IP; ip != "" {
			sm.sessionsByIP[ip]--
			if sm.sessionsByIP[ip] <= 0 {
				delete(sm.sessionsByIP, ip)
			}
		}
	}
	sm.mu.Unlock()

	if !ok {
		return
	}
	s.Close()
	sm.totalClosed.Add(1)
	if sm.onSessionClose != nil {
		sm.onSessionClose(s)
	}
	sm.logger.Info("session removed",
		"session_id", id,
		"active_sessions", sm.Count())
}

// Count returns the number of tracked sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ForEach iterates over all sessions. The callback must not block; it
// runs under the read lock.
func (sm *SessionManager) ForEach(fn func(session.Session) bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, s := range sm.sessions {
		if !fn(s) {
			break
		}
	}
}

// SetOnSessionCreate sets the callback for session tracking.
func (sm *SessionManager) SetOnSessionCreate(fn func(session.Session)) {
	sm.onSessionCreate = fn
}

// SetOnSessionClose sets the callback for session removal.
func (sm *SessionManager) SetOnSessionClose(fn func(session.Session)) {
	sm.onSessionClose = fn
}

func (sm *SessionManager) cleanupLoop() {
	defer close(sm.cleanupDone)
	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sm.cleanupIdle()
		case <-sm.done:
			return
		}
	}
}

// cleanupIdle removes sessions whose clients went quiet past the idle
// timeout. WebSocket sessions rarely get here, their read loop closes
// them first; this is what reaps abandoned polling sessions.
func (sm *SessionManager) cleanupIdle() {
	now := time.Now()
	var expired []string
	sm.mu.RLock()
	for id, s := range sm.sessions {
		if now.Sub(s.LastActive()) > sm.idleTimeout {
			expired = append(expired, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range expired {
		sm.Remove(id)
	}
	if len(expired) > 0 {
		sm.logger.Info("reaped idle sessions",
			"count", len(expired),
			"remaining", sm.Count())
	}
}

// Shutdown stops the cleanup loop and closes every session, waiting
// until their cleanups have run or ctx expires.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	close(sm.done)
	<-sm.cleanupDone

	sm.mu.Lock()
	sessions := make([]session.Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.sessions = make(map[string]session.Session)
	sm.sessionsByIP = make(map[string]int)
	sm.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s session.Session) {
			defer wg.Done()
			s.Close()
			sm.totalClosed.Add(1)
			if sm.onSessionClose != nil {
				sm.onSessionClose(s)
			}
		}(s)
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		sm.logger.Warn("shutdown timed out waiting for sessions", "remaining", len(sessions))
		return ctx.Err()
	}

	sm.logger.Info("session manager shutdown", "closed_sessions", len(sessions))
	return nil
}

// ManagerStats contains aggregated session statistics.
type ManagerStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// Stats returns aggregated statistics.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	active := len(sm.sessions)
	peak := sm.peakSessions
	sm.mu.RUnlock()
	return ManagerStats{
		Active:       active,
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
		Peak:         peak,
	}
}
