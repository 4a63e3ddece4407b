package session

import "github.com/parley-dev/parley/pkg/protocol"

// Effects is the effect surface an interactive exchange runs against:
// emit commands, await one inbound event, identify the issuing
// execution unit for correlation. Tests drive exchanges with scripted
// implementations; live sessions supply the real one.
type Effects interface {
	Send(cmd protocol.Command) error
	Await() (protocol.Event, error)
	TaskID() int64
}

// Exchange is an interactive operation written once against Effects.
// The same exchange runs under either execution model: Await blocks the
// goroutine under the goroutine model and parks the coroutine under the
// coroutine model, the two drivers behind NextClientEvent.
type Exchange func(fx Effects) (any, error)

// Dispatch resolves the ambient session and runs x under its driver.
func Dispatch(x Exchange) (any, error) {
	s, err := Current()
	if err != nil {
		return nil, err
	}
	return x(liveEffects{s: s})
}

// DispatchOn runs x against a specific session, for callers that
// already hold one.
func DispatchOn(s Session, x Exchange) (any, error) {
	return x(liveEffects{s: s})
}

type liveEffects struct {
	s Session
}

func (fx liveEffects) Send(cmd protocol.Command) error { return fx.s.Send(cmd) }
func (fx liveEffects) Await() (protocol.Event, error)  { return fx.s.NextClientEvent() }
func (fx liveEffects) TaskID() int64                   { return currentUnit() }
