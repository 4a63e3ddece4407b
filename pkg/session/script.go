package session

import (
	"sync"
)

// The script backend is installed by a transport package able to serve
// a script-mode session (pkg/server does this in its init). Keeping it
// behind a hook avoids an import cycle: this package never sees the
// transport.
var scriptBackend struct {
	mu sync.Mutex
	fn func(*GoroutineSession) error
}

// SetScriptBackend installs the starter the registry uses to boot
// script mode: it receives the singleton session and brings up whatever
// serves it, returning once the transport is accepting clients.
func SetScriptBackend(fn func(*GoroutineSession) error) {
	scriptBackend.mu.Lock()
	scriptBackend.fn = fn
	scriptBackend.mu.Unlock()
}

func scriptStarter() func(*GoroutineSession) error {
	scriptBackend.mu.Lock()
	defer scriptBackend.mu.Unlock()
	return scriptBackend.fn
}

// bootScriptMode registers the script implementation and starts its
// server. Called by Current when nothing is registered; the caller is
// adopted afterwards through the implementation's resolution.
func bootScriptMode() error {
	registry.mu.Lock()
	if len(registry.impls) > 0 {
		// Raced with a registration or another boot.
		registry.mu.Unlock()
		return nil
	}
	start := scriptStarter()
	if start == nil {
		registry.mu.Unlock()
		return ErrSessionNotFound
	}
	sess := NewGoroutineSession(&Config{
		Info: Info{Protocol: "script", Backend: "parley"},
	})
	registry.impls = append(registry.impls, &scriptImpl{sess: sess})
	registry.script = true
	registry.mu.Unlock()

	if err := start(sess); err != nil {
		registry.mu.Lock()
		registry.impls = nil
		registry.script = false
		registry.mu.Unlock()
		sess.Close()
		return err
	}
	return nil
}

// scriptImpl is the script-mode implementation: one singleton
// goroutine-model session that adopts any goroutine touching it, the
// way a script's whole process belongs to its single conversation.
type scriptImpl struct {
	sess *GoroutineSession
}

func (i *scriptImpl) implKind() Kind { return KindGoroutine }

func (i *scriptImpl) current() (Session, bool) {
	gid := goroutineID()
	if v, ok := goroutineBindings.Load(gid); ok {
		return v.(*goroutineBinding).sess, true
	}
	if !i.sess.closed.Load() {
		i.sess.adopt(gid, i.sess.allocUnit())
	}
	return i.sess, true
}
