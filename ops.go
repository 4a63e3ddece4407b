package parley

import (
	"time"

	"github.com/parley-dev/parley/pkg/protocol"
	"github.com/parley-dev/parley/pkg/session"
)

// =============================================================================
// Output
// =============================================================================

// Output sends one raw output spec to the client.
func Output(spec map[string]any) error {
	s, err := session.Current()
	if err != nil {
		return err
	}
	return s.Send(protocol.Output(spec))
}

// Text renders a line of text in the client.
func Text(text string) error {
	return Output(map[string]any{"type": "text", "content": text})
}

// Download pushes a named file to the client, which saves it without
// leaving the page.
func Download(name string, content []byte) error {
	s, err := session.Current()
	if err != nil {
		return err
	}
	return s.Send(protocol.Download(name, content))
}

// =============================================================================
// JavaScript
// =============================================================================

// RunJS executes code in the client, fire and forget. Values in args
// are in scope under their names:
//
//	parley.RunJS("console.log(msg)", parley.Args{"msg": "hi"})
//
// A nil args runs the code with nothing in scope.
func RunJS(code string, args Args) error {
	return session.RunJS(code, args)
}

// EvalJS executes an expression in the client and suspends until its
// value comes back:
//
//	width, err := parley.EvalJS("window.innerWidth", nil)
//
// The expression is evaluated with args in scope, like RunJS. A
// promise result is resolved before it is returned. An undefined
// result, a script error and a rejected promise all arrive as nil.
// Falsy values keep their identity: false comes back as false, not
// nil.
//
// EvalJS panics if the next event reaching the suspended eval is not
// the expression result; that means the client and server disagree
// about the protocol, which no handler can recover from.
func EvalJS(expr string, args Args) (any, error) {
	return session.EvalJS(expr, args)
}

// GoApp switches the client to another app served by the same server.
func GoApp(name string, newWindow bool) error {
	return RunJS("Parley.openApp(app, new_window)", Args{
		"app":        name,
		"new_window": newWindow,
	})
}

// =============================================================================
// Environment
// =============================================================================

// EnvOption sets one client environment key.
type EnvOption func(spec map[string]any)

// WithTitle sets the page title.
func WithTitle(title string) EnvOption {
	return func(spec map[string]any) { spec[protocol.EnvTitle] = title }
}

// WithOutputAnimation toggles output animations.
func WithOutputAnimation(enabled bool) EnvOption {
	return func(spec map[string]any) { spec[protocol.EnvOutputAnimation] = enabled }
}

// WithAutoScrollBottom toggles scrolling to the newest output.
func WithAutoScrollBottom(enabled bool) EnvOption {
	return func(spec map[string]any) { spec[protocol.EnvAutoScrollBottom] = enabled }
}

// WithPullInterval sets how often an HTTP-transport client polls for
// commands.
func WithPullInterval(d time.Duration) EnvOption {
	return func(spec map[string]any) {
		spec[protocol.EnvHTTPPullInterval] = int(d / time.Millisecond)
	}
}

// SetEnv updates the client environment:
//
//	parley.SetEnv(parley.WithTitle("checkout"), parley.WithAutoScrollBottom(false))
//
// With no options it does nothing.
func SetEnv(opts ...EnvOption) error {
	s, err := session.Current()
	if err != nil {
		return err
	}
	spec := make(map[string]any, len(opts))
	for _, opt := range opts {
		opt(spec)
	}
	if len(spec) == 0 {
		return nil
	}
	return s.ApplyEnv(spec)
}

// SetEnvSpec updates the client environment from a raw spec. An
// unknown key panics: sending it would leave the client silently out
// of sync with what the caller believes it configured. Prefer SetEnv,
// whose options cannot produce one.
func SetEnvSpec(spec map[string]any) error {
	s, err := session.Current()
	if err != nil {
		return err
	}
	return s.ApplyEnv(spec)
}

// =============================================================================
// Session state
// =============================================================================

// Data returns the current session's local storage. Values live as
// long as the session and are gone with it.
func Data() (*Store, error) {
	s, err := session.Current()
	if err != nil {
		return nil, err
	}
	return s.Store(), nil
}

// CurrentInfo describes the client behind the current session.
func CurrentInfo() (Info, error) {
	s, err := session.Current()
	if err != nil {
		return Info{}, err
	}
	return s.Info(), nil
}

// DeferCall registers f to run when the current session closes, after
// any previously registered calls. Cleanups run exactly once; a panic
// in one is logged and the rest still run.
func DeferCall(f func()) error {
	s, err := session.Current()
	if err != nil {
		return err
	}
	s.DeferCall(f)
	return nil
}
