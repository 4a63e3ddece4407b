package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parley-dev/parley/pkg/session"
)

func newTestSession(ip string) session.Session {
	return session.NewGoroutineSession(&session.Config{
		Logger: testLogger(),
		Info:   session.Info{IP: ip},
	})
}

func newTestManager(t *testing.T, cfg *Config) *SessionManager {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	sm := NewSessionManager(cfg, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		sm.Shutdown(ctx)
	})
	return sm
}

func TestManagerTrackAndGet(t *testing.T) {
	sm := newTestManager(t, nil)
	s := newTestSession("1.2.3.4")

	if err := sm.Track(s); err != nil {
		t.Fatalf("Track: %v", err)
	}
	got, err := sm.Get(s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != s.ID() {
		t.Errorf("Get returned session %s, want %s", got.ID(), s.ID())
	}
	if _, err := sm.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(missing) = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerMaxSessions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 2
	sm := newTestManager(t, cfg)

	for i := 0; i < 2; i++ {
		if err := sm.Track(newTestSession("")); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
	}
	third := newTestSession("")
	defer third.Close()
	if err := sm.Track(third); !errors.Is(err, ErrMaxSessionsReached) {
		t.Fatalf("Track over limit = %v, want ErrMaxSessionsReached", err)
	}
}

func TestManagerMaxSessionsPerIP(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessionsPerIP = 1
	sm := newTestManager(t, cfg)

	if err := sm.Track(newTestSession("10.0.0.1")); err != nil {
		t.Fatalf("Track first: %v", err)
	}
	dup := newTestSession("10.0.0.1")
	defer dup.Close()
	if err := sm.Track(dup); !errors.Is(err, ErrTooManySessionsFromIP) {
		t.Fatalf("Track same IP = %v, want ErrTooManySessionsFromIP", err)
	}
	if err := sm.Track(newTestSession("10.0.0.2")); err != nil {
		t.Fatalf("Track other IP: %v", err)
	}
}

func TestManagerRemoveClosesAndIsIdempotent(t *testing.T) {
	sm := newTestManager(t, nil)
	s := newTestSession("")
	if err := sm.Track(s); err != nil {
		t.Fatalf("Track: %v", err)
	}

	sm.Remove(s.ID())
	if !s.Closed() {
		t.Error("session not closed by Remove")
	}
	sm.Remove(s.ID())

	if got := sm.Stats().TotalClosed; got != 1 {
		t.Errorf("TotalClosed = %d, want 1", got)
	}
}

func TestManagerDropsSessionWhenTaskEnds(t *testing.T) {
	sm := newTestManager(t, nil)
	s := newTestSession("")
	if err := sm.Track(s); err != nil {
		t.Fatalf("Track: %v", err)
	}

	s.Close()
	waitFor(t, func() bool { return sm.Count() == 0 },
		"ended session still tracked")
}

func TestManagerReapsIdleSessions(t *testing.T) {
	cfg := testConfig()
	cfg.SessionIdleTimeout = 30 * time.Millisecond
	cfg.CleanupInterval = 10 * time.Millisecond
	sm := newTestManager(t, cfg)

	s := newTestSession("")
	if err := sm.Track(s); err != nil {
		t.Fatalf("Track: %v", err)
	}
	waitFor(t, func() bool { return sm.Count() == 0 },
		"idle session not reaped")
	if !s.Closed() {
		t.Error("reaped session not closed")
	}
}

func TestManagerCallbacks(t *testing.T) {
	sm := newTestManager(t, nil)
	var created, closed atomic.Int32
	sm.SetOnSessionCreate(func(session.Session) { created.Add(1) })
	sm.SetOnSessionClose(func(session.Session) { closed.Add(1) })

	s := newTestSession("")
	if err := sm.Track(s); err != nil {
		t.Fatalf("Track: %v", err)
	}
	sm.Remove(s.ID())

	if created.Load() != 1 || closed.Load() != 1 {
		t.Errorf("callbacks = (%d created, %d closed), want (1, 1)",
			created.Load(), closed.Load())
	}
}

func TestManagerShutdownClosesAll(t *testing.T) {
	sm := NewSessionManager(testConfig(), testLogger())
	sessions := make([]session.Session, 3)
	for i := range sessions {
		sessions[i] = newTestSession("")
		if err := sm.Track(sessions[i]); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := sm.Count(); got != 0 {
		t.Errorf("count after shutdown = %d, want 0", got)
	}
	for i, s := range sessions {
		if !s.Closed() {
			t.Errorf("session %d not closed by shutdown", i)
		}
	}
}

func TestManagerStats(t *testing.T) {
	sm := newTestManager(t, nil)
	a, b := newTestSession(""), newTestSession("")
	sm.Track(a)
	sm.Track(b)
	sm.Remove(a.ID())

	stats := sm.Stats()
	if stats.Active != 1 {
		t.Errorf("Active = %d, want 1", stats.Active)
	}
	if stats.TotalCreated != 2 {
		t.Errorf("TotalCreated = %d, want 2", stats.TotalCreated)
	}
	if stats.TotalClosed != 1 {
		t.Errorf("TotalClosed = %d, want 1", stats.TotalClosed)
	}
	if stats.Peak != 2 {
		t.Errorf("Peak = %d, want 2", stats.Peak)
	}
}
