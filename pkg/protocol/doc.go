// Package protocol defines the wire format between a parley session and
// its client.
//
// The protocol is JSON text in both directions. Commands flow from
// server to client, events flow from client to server:
//
//	Server                          Client
//	  │                                │
//	  │──── Command ─────────────────>│
//	  │     {"command","task_id","spec"}
//	  │                                │
//	  │<──── Event ───────────────────│
//	  │     {"event","task_id","data"}
//	  │                                │
//
// # Commands
//
//   - CommandOutput: render content in the client
//   - CommandRunScript: execute JavaScript, optionally submitting a result
//   - CommandDownload: deliver a file (base64 content)
//   - CommandSetEnv: update client environment settings
//   - CommandCloseSession: tell the client the conversation is over
//
// # Events
//
// Event kinds are application-defined except for reserved kinds. An
// event may carry a task correlation ID; correlated events are routed
// to the execution unit that issued the matching command.
//
// EventJSYield is reserved: it is the reply to a script sent by
// CommandRunScript with a submission wrapper, and carries the evaluated
// result (or null) in its data field.
//
// # Environment settings
//
// CommandSetEnv specs are restricted to a fixed key set; ValidateEnv
// rejects anything else. See EnvTitle and friends.
package protocol
