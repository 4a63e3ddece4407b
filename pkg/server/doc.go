// Package server exposes parley applications over HTTP.
//
// Two transports carry the session protocol:
//
//   - WebSocket: commands stream down and events stream up over one
//     connection. The session lives as long as the connection.
//   - HTTP polling: the client pulls buffered commands on an interval
//     and pushes events as they happen. Sessions outlive individual
//     requests and are reaped by idle timeout.
//
// A Server hosts any number of named applications. Each application
// was registered with its execution model, and every new client
// conversation gets its own session of that model.
//
//	srv := server.New(nil, server.Apps{
//		"index": chat,
//		"jobs":  parley.Coroutine(jobs),
//	})
//	srv.Run()
//
// The package also provides the script-mode backend: a process that
// never registered an application boots a private local server on its
// first interactive call and serves that single conversation.
package server
