package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// implement is one registered execution model: it names its kind and
// resolves the session owning the calling goroutine, consulting only
// its own binding table.
type implement interface {
	implKind() Kind
	current() (Session, bool)
}

var registry struct {
	mu     sync.RWMutex
	impls  []implement
	script bool
}

// Register records the execution model for a task entry point and
// returns its kind together with a normalized runner. The target's
// shape is inspected exactly once: session.Coroutine values select the
// coroutine model; plain func(), func() error and session.Task values
// select the goroutine model; anything else panics. Each model is
// recorded at most once, in first-registration order.
//
// Registering after script mode has booted panics: a process is either
// an application server or a script, never both.
func Register(target any) (Kind, func()) {
	kind, runner := classify(target)
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.script {
		panic("session: cannot register an application task: already in script mode")
	}
	for _, impl := range registry.impls {
		if impl.implKind() == kind {
			return kind, runner
		}
	}
	registry.impls = append(registry.impls, implFor(kind))
	return kind, runner
}

func classify(target any) (Kind, func()) {
	switch t := target.(type) {
	case Coroutine:
		return KindCoroutine, t
	case Task:
		return KindGoroutine, t
	case func():
		return KindGoroutine, t
	case func() error:
		return KindGoroutine, func() {
			if err := t(); err != nil {
				slog.Default().Error("task returned error", "error", err)
			}
		}
	default:
		panic(fmt.Sprintf("session: unsupported task type %T (want func(), func() error, session.Task or session.Coroutine)", target))
	}
}

func implFor(kind Kind) implement {
	switch kind {
	case KindGoroutine:
		return goroutineImpl{}
	case KindCoroutine:
		return coroutineImpl{}
	default:
		panic(fmt.Sprintf("session: no implementation for %v", kind))
	}
}

// Current resolves the ambient session for the calling goroutine.
//
// With nothing registered the first call boots script mode lazily.
// With one model registered only that model is consulted; with several,
// they are probed in registration order and the first that recognizes
// the caller wins. Returns ErrSessionNotFound when no model does.
func Current() (Session, error) {
	registry.mu.RLock()
	impls := registry.impls
	registry.mu.RUnlock()
	if len(impls) == 0 {
		if err := bootScriptMode(); err != nil {
			return nil, err
		}
		registry.mu.RLock()
		impls = registry.impls
		registry.mu.RUnlock()
	}
	for _, impl := range impls {
		if s, ok := impl.current(); ok {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

// RequireKind resolves the ambient session and enforces the execution
// model contract of op. A mismatch panics with a KindMismatchError:
// calling one model's operation under the other is a programming error,
// not a runtime condition.
func RequireKind(required Kind, op string) (Session, error) {
	s, err := Current()
	if err != nil {
		return nil, err
	}
	if s.Kind() != required {
		panic(&KindMismatchError{Op: op, Required: required, Actual: s.Kind()})
	}
	return s, nil
}

// ScriptMode reports whether the process is running as a script with
// the lazily started local server.
func ScriptMode() bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.script
}

// goroutineImpl resolves goroutine-model sessions through the
// goroutine binding table.
type goroutineImpl struct{}

func (goroutineImpl) implKind() Kind { return KindGoroutine }

func (goroutineImpl) current() (Session, bool) {
	if v, ok := goroutineBindings.Load(goroutineID()); ok {
		return v.(*goroutineBinding).sess, true
	}
	return nil, false
}

// coroutineImpl resolves coroutine-model sessions through the
// coroutine binding table.
type coroutineImpl struct{}

func (coroutineImpl) implKind() Kind { return KindCoroutine }

func (coroutineImpl) current() (Session, bool) {
	if v, ok := coroutineBindings.Load(goroutineID()); ok {
		return v.(*coro).sess, true
	}
	return nil, false
}

// resetRegistry clears registered models. Tests only; sessions bound
// through the old models keep working, their tables are untouched.
func resetRegistry() {
	registry.mu.Lock()
	registry.impls = nil
	registry.script = false
	registry.mu.Unlock()
}
