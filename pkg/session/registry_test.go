package session

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestRegisterClassifiesShapes(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	if kind, _ := Register(func() {}); kind != KindGoroutine {
		t.Errorf("func() classified as %v, want %v", kind, KindGoroutine)
	}
	if kind, _ := Register(Task(func() {})); kind != KindGoroutine {
		t.Errorf("Task classified as %v, want %v", kind, KindGoroutine)
	}
	if kind, _ := Register(Coroutine(func() {})); kind != KindCoroutine {
		t.Errorf("Coroutine classified as %v, want %v", kind, KindCoroutine)
	}

	var called bool
	kind, runner := Register(func() error { called = true; return nil })
	if kind != KindGoroutine {
		t.Errorf("func() error classified as %v, want %v", kind, KindGoroutine)
	}
	runner()
	if !called {
		t.Error("normalized runner did not invoke the original task")
	}
}

func TestRegisterUnsupportedTypePanics(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Register(42) must panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "unsupported task type") {
			t.Fatalf("panic = %v, want an unsupported task type message", r)
		}
	}()
	Register(42)
}

func TestCurrentUnboundWithoutScriptBackend(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()

	Register(func() {})
	if _, err := Current(); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Current on unbound goroutine = %v, want ErrSessionNotFound", err)
	}
}

func TestScriptModeBootsLazilyExactlyOnce(t *testing.T) {
	resetRegistry()
	var boots atomic.Int32
	SetScriptBackend(func(s *GoroutineSession) error {
		boots.Add(1)
		return nil
	})
	var scriptSess Session
	defer func() {
		if scriptSess != nil {
			scriptSess.Close()
		}
		SetScriptBackend(nil)
		resetRegistry()
	}()

	first, err := Current()
	if err != nil {
		t.Fatalf("first Current: %v", err)
	}
	scriptSess = first
	if !ScriptMode() {
		t.Error("ScriptMode must report true after the lazy boot")
	}
	if first.Kind() != KindGoroutine {
		t.Errorf("script session kind = %v, want %v", first.Kind(), KindGoroutine)
	}
	if first.Info().Protocol != "script" {
		t.Errorf("script session protocol = %q, want script", first.Info().Protocol)
	}

	second, err := Current()
	if err != nil {
		t.Fatalf("second Current: %v", err)
	}
	if second.ID() != first.ID() {
		t.Error("repeat resolution returned a different session")
	}

	otherID := make(chan string, 1)
	otherErr := make(chan error, 1)
	go func() {
		s, err := Current()
		if err != nil {
			otherErr <- err
			return
		}
		otherID <- s.ID()
	}()
	select {
	case err := <-otherErr:
		t.Fatalf("Current from second goroutine: %v", err)
	case id := <-otherID:
		if id != first.ID() {
			t.Error("second goroutine resolved a different session")
		}
	}

	if got := boots.Load(); got != 1 {
		t.Errorf("backend started %d times, want 1", got)
	}
}

func TestScriptBootFailureRollsBack(t *testing.T) {
	resetRegistry()
	bootErr := errors.New("port already in use")
	SetScriptBackend(func(s *GoroutineSession) error { return bootErr })
	defer func() {
		SetScriptBackend(nil)
		resetRegistry()
	}()

	if _, err := Current(); !errors.Is(err, bootErr) {
		t.Fatalf("Current = %v, want the backend error", err)
	}
	if ScriptMode() {
		t.Error("failed boot must not leave script mode on")
	}
	// With the boot rolled back and no working backend, resolution keeps
	// failing the same way instead of half-working.
	if _, err := Current(); !errors.Is(err, bootErr) {
		t.Fatalf("repeat Current = %v, want the backend error again", err)
	}
}

func TestRegisterAfterScriptBootPanics(t *testing.T) {
	resetRegistry()
	SetScriptBackend(func(s *GoroutineSession) error { return nil })
	var scriptSess Session
	defer func() {
		if scriptSess != nil {
			scriptSess.Close()
		}
		SetScriptBackend(nil)
		resetRegistry()
	}()

	s, err := Current()
	if err != nil {
		t.Fatalf("script boot failed: %v", err)
	}
	scriptSess = s

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Register after script boot must panic")
		}
		if msg, ok := r.(string); !ok || !strings.Contains(msg, "script mode") {
			t.Fatalf("panic = %v, want a script mode conflict message", r)
		}
	}()
	Register(func() {})
}

func TestProbingKeepsModelsSeparate(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()

	Register(func() {})
	Register(Coroutine(func() {}))

	gs := NewGoroutineSession(testConfig())
	cs := NewCoroutineSession(testConfig())

	gotG := make(chan string, 1)
	gs.Start(func() {
		cur, err := Current()
		if err != nil {
			t.Errorf("Current in goroutine task: %v", err)
			gotG <- ""
			return
		}
		gotG <- cur.ID()
	})
	gotC := make(chan string, 1)
	cs.Start(func() {
		cur, err := Current()
		if err != nil {
			t.Errorf("Current in coroutine task: %v", err)
			gotC <- ""
			return
		}
		gotC <- cur.ID()
	})

	if id := <-gotG; id != gs.ID() {
		t.Errorf("goroutine task resolved %q, want %q", id, gs.ID())
	}
	if id := <-gotC; id != cs.ID() {
		t.Errorf("coroutine task resolved %q, want %q", id, cs.ID())
	}
	<-gs.Done()
	<-cs.Done()
}

func TestRequireKindEnforcesModelContract(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()

	Register(func() {})
	gs := NewGoroutineSession(testConfig())

	type outcome struct {
		sess Session
		err  error
		pan  any
	}
	got := make(chan outcome, 2)
	gs.Start(func() {
		s, err := RequireKind(KindGoroutine, "Go")
		got <- outcome{sess: s, err: err}

		func() {
			defer func() { got <- outcome{pan: recover()} }()
			RequireKind(KindCoroutine, "RunAsync")
		}()
	})

	match := <-got
	if match.err != nil || match.sess == nil || match.sess.ID() != gs.ID() {
		t.Fatalf("matching RequireKind = (%v, %v), want the bound session", match.sess, match.err)
	}

	mismatch := <-got
	kerr, ok := mismatch.pan.(*KindMismatchError)
	if !ok {
		t.Fatalf("mismatch panic = %v, want *KindMismatchError", mismatch.pan)
	}
	if kerr.Op != "RunAsync" || kerr.Required != KindCoroutine || kerr.Actual != KindGoroutine {
		t.Errorf("mismatch detail = %+v", kerr)
	}
	want := "session: RunAsync requires a coroutine session, current session is goroutine"
	if kerr.Error() != want {
		t.Errorf("message = %q, want %q", kerr.Error(), want)
	}
	<-gs.Done()
}

func TestRequireKindUnbound(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()

	Register(func() {})
	if _, err := RequireKind(KindGoroutine, "Go"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("RequireKind unbound = %v, want ErrSessionNotFound", err)
	}
}
