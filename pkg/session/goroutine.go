package session

import (
	"runtime/debug"
	"sync"

	"github.com/parley-dev/parley/pkg/protocol"
)

// GoroutineSession runs its application task on a dedicated goroutine.
// Suspension blocks the calling goroutine; additional goroutines join
// the session with Go. The session closes when the task returns.
type GoroutineSession struct {
	core

	gidMu sync.Mutex
	gids  map[uint64]bool
}

// NewGoroutineSession creates a goroutine-backed session. A nil cfg
// uses DefaultConfig.
func NewGoroutineSession(cfg *Config) *GoroutineSession {
	s := &GoroutineSession{gids: make(map[uint64]bool)}
	s.core.init(KindGoroutine, cfg.withDefaults())
	return s
}

// Start launches the task on a new goroutine bound to this session.
// When the task returns or panics the session closes; a task that wants
// to keep serving events past its body suspends in a hold loop instead
// of returning.
func (s *GoroutineSession) Start(task func()) {
	go func() {
		unit := s.allocUnit()
		gid := goroutineID()
		s.adopt(gid, unit)
		defer s.release(gid, unit)
		defer s.Close()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("task panicked",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		task()
	}()
}

// Go runs fn on a new goroutine bound to this session so that code on
// it can use interactive calls. The binding is removed when fn returns
// or the session closes, whichever comes first; the goroutine itself is
// not stopped by session close, its interactive calls just start
// failing.
func (s *GoroutineSession) Go(fn func()) {
	go func() {
		unit := s.allocUnit()
		gid := goroutineID()
		s.adopt(gid, unit)
		defer s.release(gid, unit)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("session goroutine panicked",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

func (s *GoroutineSession) adopt(gid uint64, unit int64) {
	bindGoroutine(gid, s, unit)
	s.gidMu.Lock()
	s.gids[gid] = true
	s.gidMu.Unlock()
}

func (s *GoroutineSession) release(gid uint64, unit int64) {
	s.gidMu.Lock()
	delete(s.gids, gid)
	s.gidMu.Unlock()
	unbindGoroutine(gid)
	s.retireUnit(unit)
}

// NextClientEvent blocks the calling goroutine until one inbound event
// is available. Goroutines bound to the session consume their own
// correlated mailbox first; foreign callers consume the shared queue
// only.
func (s *GoroutineSession) NextClientEvent() (protocol.Event, error) {
	unit := s.unitFor(goroutineID())
	ch := make(chan waitResult, 1)
	ev, w, err := s.takeOrWait(unit, func(ev protocol.Event, err error) {
		ch <- waitResult{ev: ev, err: err}
	})
	if err != nil {
		return protocol.Event{}, err
	}
	if w == nil {
		return ev, nil
	}
	r := <-ch
	return r.ev, r.err
}

type waitResult struct {
	ev  protocol.Event
	err error
}

func (s *GoroutineSession) unitFor(gid uint64) int64 {
	if v, ok := goroutineBindings.Load(gid); ok {
		if b := v.(*goroutineBinding); b.sess == s {
			return b.unit
		}
	}
	return 0
}

// Close ends the session: wakes suspended consumers, removes every
// goroutine binding so later interactive calls fail with
// ErrSessionNotFound, then runs deferred cleanups.
func (s *GoroutineSession) Close() {
	if !s.beginClose() {
		return
	}
	s.gidMu.Lock()
	gids := make([]uint64, 0, len(s.gids))
	for gid := range s.gids {
		gids = append(gids, gid)
	}
	s.gids = make(map[uint64]bool)
	s.gidMu.Unlock()
	for _, gid := range gids {
		unbindGoroutineOf(gid, s)
	}
	s.runDefers()
	s.logger.Info("session closed", "kind", s.kind.String())
}
