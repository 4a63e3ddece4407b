package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/parley-dev/parley/pkg/protocol"
)

// scriptedEffects drives an exchange from a canned event list.
type scriptedEffects struct {
	task    int64
	sendErr error
	sent    []protocol.Command
	replies []protocol.Event
}

func (fx *scriptedEffects) Send(cmd protocol.Command) error {
	if fx.sendErr != nil {
		return fx.sendErr
	}
	fx.sent = append(fx.sent, cmd)
	return nil
}

func (fx *scriptedEffects) Await() (protocol.Event, error) {
	if len(fx.replies) == 0 {
		return protocol.Event{}, errors.New("scripted effects: no reply queued")
	}
	ev := fx.replies[0]
	fx.replies = fx.replies[1:]
	return ev, nil
}

func (fx *scriptedEffects) TaskID() int64 { return fx.task }

func TestEvalJSWrapsExpression(t *testing.T) {
	fx := &scriptedEffects{
		task:    7,
		replies: []protocol.Event{{Kind: protocol.EventJSYield, Task: 7, Data: "value"}},
	}

	v, err := evalJS(`navigator.userAgent`, map[string]any{"n": 1})(fx)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if v != "value" {
		t.Errorf("result = %v, want the yielded data", v)
	}

	if len(fx.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(fx.sent))
	}
	cmd := fx.sent[0]
	if cmd.Kind != protocol.CommandRunScript || cmd.Task != 7 {
		t.Errorf("command = %s task %d, want correlated run_script", cmd.Kind, cmd.Task)
	}
	code, _ := cmd.Spec["code"].(string)
	for _, frag := range []string{`eval("navigator.userAgent")`, protocol.EventJSYield, "(7)"} {
		if !strings.Contains(code, frag) {
			t.Errorf("wrapper missing %q:\n%s", frag, code)
		}
	}
	args, _ := cmd.Spec["args"].(map[string]any)
	if args["n"] != 1 {
		t.Errorf("args not forwarded: %v", cmd.Spec["args"])
	}
}

func TestEvalJSPreservesFalsyResults(t *testing.T) {
	for _, want := range []any{false, float64(0), ""} {
		fx := &scriptedEffects{
			replies: []protocol.Event{{Kind: protocol.EventJSYield, Data: want}},
		}
		v, err := evalJS("flag", nil)(fx)
		if err != nil {
			t.Fatalf("eval of %v failed: %v", want, err)
		}
		if v != want {
			t.Errorf("result = %v (%T), want %v (%T)", v, v, want, want)
		}
	}
}

func TestEvalJSSendFailure(t *testing.T) {
	boom := errors.New("sink gone")
	fx := &scriptedEffects{sendErr: boom}
	if _, err := evalJS("1", nil)(fx); !errors.Is(err, boom) {
		t.Fatalf("eval error = %v, want the send failure", err)
	}
}

func TestEvalJSDesyncPanics(t *testing.T) {
	s := NewGoroutineSession(testConfig())
	defer s.Close()

	if err := s.Deliver(protocol.Event{Kind: "input", Data: "stray"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	defer func() {
		r := recover()
		msg, ok := r.(string)
		if !ok || !strings.Contains(msg, "desync") || !strings.Contains(msg, `"input"`) {
			t.Fatalf("panic = %v, want a desync message naming the stray kind", r)
		}
	}()
	_, _ = EvalJSOn(s, "1 + 1", nil)
	t.Fatal("eval accepted a non-yield event")
}

func TestEvalJSCrossedReplyPanics(t *testing.T) {
	// A yield for some other unit reaching this eval means two
	// correlated conversations crossed.
	fx := &scriptedEffects{
		task:    3,
		replies: []protocol.Event{{Kind: protocol.EventJSYield, Task: 9}},
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("crossed reply did not panic")
		}
	}()
	_, _ = evalJS("1", nil)(fx)
}

func TestEvalJSInsideTask(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()
	Register(func() {})

	s := NewGoroutineSession(testConfig())
	cmdCh := make(chan protocol.Command, 1)
	s.AttachSink(func(cmd protocol.Command) error {
		if cmd.Kind == protocol.CommandRunScript {
			cmdCh <- cmd
		}
		return nil
	})

	got := make(chan any, 1)
	failed := make(chan error, 1)
	s.Start(func() {
		v, err := EvalJS("document.title", nil)
		if err != nil {
			failed <- err
			return
		}
		got <- v
	})

	cmd := <-cmdCh
	if cmd.Task == 0 {
		t.Fatal("run_script from a task must carry its unit ID")
	}
	if err := s.Deliver(protocol.Event{Kind: protocol.EventJSYield, Task: cmd.Task, Data: "Parley"}); err != nil {
		t.Fatalf("deliver yield: %v", err)
	}

	select {
	case err := <-failed:
		t.Fatalf("eval failed: %v", err)
	case v := <-got:
		if v != "Parley" {
			t.Errorf("result = %v, want the yielded title", v)
		}
	}
	<-s.Done()
}

func TestEvalJSOnOutsideAnyUnit(t *testing.T) {
	s := NewGoroutineSession(testConfig())
	defer s.Close()
	rec := &sinkRecorder{}
	s.AttachSink(rec.sink)

	// A foreign caller has unit 0, so the yield arrives uncorrelated
	// through the shared queue.
	if err := s.Deliver(protocol.Event{Kind: protocol.EventJSYield, Data: false}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	v, err := EvalJSOn(s, "document.hidden", nil)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if v != false {
		t.Errorf("result = %v, want false", v)
	}
	cmds := rec.commands()
	if len(cmds) != 1 || cmds[0].Task != 0 {
		t.Errorf("commands = %+v, want one uncorrelated run_script", cmds)
	}
}

func TestEvalJSOnClosedSession(t *testing.T) {
	s := NewGoroutineSession(testConfig())
	s.Close()
	if _, err := EvalJSOn(s, "1", nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("eval on closed session = %v, want ErrSessionClosed", err)
	}
}

func TestRunJSIsFireAndForget(t *testing.T) {
	resetRegistry()
	SetScriptBackend(nil)
	defer resetRegistry()
	Register(func() {})

	s := NewGoroutineSession(testConfig())
	rec := &sinkRecorder{}
	s.AttachSink(rec.sink)

	runErr := make(chan error, 1)
	s.Start(func() {
		runErr <- RunJS("console.log(msg)", map[string]any{"msg": "hi"})
	})
	if err := <-runErr; err != nil {
		t.Fatalf("RunJS: %v", err)
	}
	<-s.Done()

	var scripts []protocol.Command
	for _, cmd := range rec.commands() {
		if cmd.Kind == protocol.CommandRunScript {
			scripts = append(scripts, cmd)
		}
	}
	if len(scripts) != 1 || scripts[0].Task != 0 {
		t.Fatalf("scripts = %+v, want one uncorrelated run_script", scripts)
	}
	if code, _ := scripts[0].Spec["code"].(string); strings.Contains(code, protocol.EventJSYield) {
		t.Error("fire-and-forget script must not carry a submission wrapper")
	}
}

func TestEvalJSWrapperQuoting(t *testing.T) {
	fx := &scriptedEffects{
		replies: []protocol.Event{{Kind: protocol.EventJSYield}},
	}
	expr := "alert(\"hi\\n\")"
	if _, err := evalJS(expr, nil)(fx); err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	code, _ := fx.sent[0].Spec["code"].(string)
	want := fmt.Sprintf("eval(%q)", expr)
	if !strings.Contains(code, want) {
		t.Errorf("wrapper quotes the expression as %s, want %s", code, want)
	}
}
