package session

import "sync"

// Per-kind goroutine binding tables. Each execution model registers the
// goroutines it owns in its own table; ambient resolution consults the
// tables in registration order and the kinds never see each other's
// entries.
var (
	// goroutineBindings maps goroutine ID -> *goroutineBinding for
	// KindGoroutine sessions (task goroutines and goroutines adopted
	// with Go).
	goroutineBindings sync.Map

	// coroutineBindings maps goroutine ID -> *coro while a coroutine of
	// a KindCoroutine session is on its goroutine.
	coroutineBindings sync.Map
)

type goroutineBinding struct {
	sess *GoroutineSession
	unit int64
}

func bindGoroutine(gid uint64, s *GoroutineSession, unit int64) {
	goroutineBindings.Store(gid, &goroutineBinding{sess: s, unit: unit})
}

func unbindGoroutine(gid uint64) {
	goroutineBindings.Delete(gid)
}

// unbindGoroutineOf removes the binding for gid only while it still
// belongs to s. Goroutine IDs are reused by the runtime, so an
// unconditional sweep could clip a binding another session made after
// ours ended.
func unbindGoroutineOf(gid uint64, s *GoroutineSession) {
	if v, ok := goroutineBindings.Load(gid); ok {
		if b := v.(*goroutineBinding); b.sess == s {
			goroutineBindings.CompareAndDelete(gid, v)
		}
	}
}

func bindCoroutine(gid uint64, c *coro) {
	coroutineBindings.Store(gid, c)
}

func unbindCoroutine(gid uint64) {
	coroutineBindings.Delete(gid)
}

// currentUnit returns the execution unit ID of the calling goroutine
// within its session, or 0 when the caller is not a bound unit. Unit
// IDs correlate commands with their reply events.
func currentUnit() int64 {
	gid := goroutineID()
	if v, ok := coroutineBindings.Load(gid); ok {
		return v.(*coro).unit
	}
	if v, ok := goroutineBindings.Load(gid); ok {
		return v.(*goroutineBinding).unit
	}
	return 0
}
