package session

import (
	"encoding/json"
	"fmt"

	"github.com/parley-dev/parley/pkg/protocol"
)

// evalWrapper is the submission wrapper around an evaluated expression.
// It reports the value back as a js_yield event carrying the issuing
// unit's correlation ID. A thenable result is awaited first; undefined
// and rejection yield null. Other falsy values come back as themselves.
const evalWrapper = `(function (task) {
  var result = null;
  try { result = eval(%s); } catch (e) { console.error("eval failed:", e); }
  var reply = function (v) {
    Parley.send({ event: %q, task_id: task, data: v === undefined ? null : v });
  };
  if (result && typeof result.then === "function") {
    result.then(reply, function () { reply(null); });
  } else {
    reply(result);
  }
})(%d);`

// EvalJS evaluates a JavaScript expression in the client of the ambient
// session and returns its value, decoded from JSON. args become local
// variables visible to the expression. A promise result is resolved
// before it is returned; a script error or rejected promise returns
// nil, not a Go error.
//
// The reply is correlated with the calling execution unit, so parallel
// evaluations from different units of one session do not cross. Outside
// any unit the reply travels through the session's shared event queue
// instead.
//
// EvalJS panics if the awaited event is not the correlated reply. That
// is a protocol desynchronization between client and server, a bug no
// application code can recover from.
func EvalJS(code string, args map[string]any) (any, error) {
	return Dispatch(evalJS(code, args))
}

// EvalJSOn is EvalJS against a specific session, for callers that
// already hold one.
func EvalJSOn(s Session, code string, args map[string]any) (any, error) {
	return DispatchOn(s, evalJS(code, args))
}

// RunJS executes code in the client of the ambient session without
// waiting for a result.
func RunJS(code string, args map[string]any) error {
	s, err := Current()
	if err != nil {
		return err
	}
	return s.Send(protocol.RunScript(0, code, args))
}

func evalJS(code string, args map[string]any) Exchange {
	return func(fx Effects) (any, error) {
		task := fx.TaskID()
		// A JSON-encoded string is a valid JavaScript string literal,
		// so the expression survives quoting inside the wrapper.
		expr, _ := json.Marshal(code)
		wrapped := fmt.Sprintf(evalWrapper, expr, protocol.EventJSYield, task)
		if err := fx.Send(protocol.RunScript(task, wrapped, args)); err != nil {
			return nil, err
		}
		ev, err := fx.Await()
		if err != nil {
			return nil, err
		}
		if ev.Kind != protocol.EventJSYield || ev.Task != task {
			panic(fmt.Sprintf("session: eval desync: got %q event for task %d, want %q for task %d",
				ev.Kind, ev.Task, protocol.EventJSYield, task))
		}
		return ev.Data, nil
	}
}
