package parley

import "github.com/parley-dev/parley/pkg/server"

// Apps maps application names to entry points for ServeApps. The
// "index" app is what clients get when they name none.
type Apps = server.Apps

// Serve hosts a single application at addr and blocks until SIGINT or
// SIGTERM triggers a graceful shutdown. The entry point may be any
// shape Register accepts.
//
// For transports, origins, session limits or several named apps, build
// a server.Server directly.
func Serve(addr string, app any) error {
	return ServeApps(addr, Apps{"index": app})
}

// ServeApps hosts several named applications on one server. Clients
// pick one with the app query parameter.
func ServeApps(addr string, apps Apps) error {
	return server.New(server.DefaultConfig().WithAddress(addr), apps).Run()
}
