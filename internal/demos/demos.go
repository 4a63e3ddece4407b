// Package demos bundles the example applications served by the parley
// command. Each one is an ordinary task entry point; together they
// exercise both execution models, the client-side eval round trip and
// the upload spool.
package demos

import (
	"strings"

	"github.com/parley-dev/parley"
	"github.com/parley-dev/parley/pkg/server"
	"github.com/parley-dev/parley/pkg/transfer"
)

// Apps returns the bundled applications keyed by name. A nil store
// omits the upload demo.
func Apps(store transfer.Store) server.Apps {
	apps := server.Apps{
		"index":   index,
		"echo":    echo,
		"monitor": parley.Coroutine(monitor),
		"sysinfo": sysinfo,
	}
	if store != nil {
		apps["upload"] = uploadApp(store)
	}
	return apps
}

// index lists the demos and opens the one the client names.
func index() error {
	if err := parley.SetEnv(parley.WithTitle("parley demos")); err != nil {
		return gone(err)
	}
	if err := parley.Text("demos: echo, monitor, sysinfo, upload"); err != nil {
		return gone(err)
	}
	if err := parley.Text("type a name to open it"); err != nil {
		return gone(err)
	}
	for {
		ev, err := parley.NextClientEvent()
		if err != nil {
			return gone(err)
		}
		name, _ := ev.Data.(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := parley.GoApp(name, false); err != nil {
			return gone(err)
		}
	}
}

// gone maps end-of-conversation errors to a clean exit.
func gone(err error) error {
	if parley.IsGone(err) {
		return nil
	}
	return err
}
