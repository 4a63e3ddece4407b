package session

import (
	"errors"
	"testing"

	"github.com/parley-dev/parley/pkg/protocol"
)

func TestDispatchOnRunsExchangeAgainstSession(t *testing.T) {
	s := NewGoroutineSession(testConfig())
	defer s.Close()
	rec := &sinkRecorder{}
	s.AttachSink(rec.sink)

	if err := s.Deliver(protocol.Event{Kind: "input", Data: "reply"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	v, err := DispatchOn(s, func(fx Effects) (any, error) {
		if err := fx.Send(protocol.Output(map[string]any{"text": "prompt"})); err != nil {
			return nil, err
		}
		ev, err := fx.Await()
		if err != nil {
			return nil, err
		}
		return ev.Data, nil
	})
	if err != nil {
		t.Fatalf("exchange failed: %v", err)
	}
	if v != "reply" {
		t.Errorf("exchange result = %v, want the delivered payload", v)
	}
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != protocol.CommandOutput {
		t.Errorf("commands sent = %v, want one output", kinds)
	}
}

func TestDispatchResolvesAmbientSession(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()
	Register(func() {})

	s := NewGoroutineSession(testConfig())
	if err := s.Deliver(protocol.Event{Kind: "input", Data: "ok"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	got := make(chan any, 1)
	errCh := make(chan error, 1)
	s.Start(func() {
		v, err := Dispatch(func(fx Effects) (any, error) {
			return fx.Await()
		})
		if err != nil {
			errCh <- err
			return
		}
		got <- v
	})

	select {
	case err := <-errCh:
		t.Fatalf("dispatch failed: %v", err)
	case v := <-got:
		ev, ok := v.(protocol.Event)
		if !ok || ev.Data != "ok" {
			t.Errorf("dispatch result = %v, want the delivered event", v)
		}
	}
	<-s.Done()
}

func TestDispatchWithoutSession(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()
	Register(func() {})

	if _, err := Dispatch(func(fx Effects) (any, error) {
		return nil, nil
	}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Dispatch unbound = %v, want ErrSessionNotFound", err)
	}
}

func TestEffectsTaskIDTracksUnit(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()
	Register(func() {})

	s := NewGoroutineSession(testConfig())
	ids := make(chan int64, 1)
	s.Start(func() {
		_, _ = Dispatch(func(fx Effects) (any, error) {
			ids <- fx.TaskID()
			return nil, nil
		})
	})

	if id := <-ids; id == 0 {
		t.Error("exchange inside a task must report a nonzero unit")
	}
	<-s.Done()

	if id := currentUnit(); id != 0 {
		t.Errorf("unbound goroutine unit = %d, want 0", id)
	}
}
