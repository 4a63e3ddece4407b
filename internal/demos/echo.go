package demos

import (
	"fmt"
	"log/slog"

	"github.com/parley-dev/parley"
)

// echo repeats whatever the client says and keeps a running count in
// the session store.
func echo() error {
	if err := parley.SetEnv(parley.WithTitle("parley echo")); err != nil {
		return gone(err)
	}
	info, err := parley.CurrentInfo()
	if err != nil {
		return gone(err)
	}
	greet := "echo ready, quit to leave"
	if info.Protocol != "" {
		greet = "echo ready over " + info.Protocol + ", quit to leave"
	}
	if err := parley.Text(greet); err != nil {
		return gone(err)
	}

	store, err := parley.Data()
	if err != nil {
		return gone(err)
	}
	if err := parley.DeferCall(func() {
		slog.Info("echo session done", "echoed", store.GetInt("echoed"))
	}); err != nil {
		return gone(err)
	}

	for {
		ev, err := parley.NextClientEvent()
		if err != nil {
			return gone(err)
		}
		text, ok := ev.Data.(string)
		if !ok {
			continue
		}
		if text == "quit" {
			return gone(parley.Text("bye"))
		}
		store.Set("echoed", store.GetInt("echoed")+1)
		if err := parley.Text(fmt.Sprintf("#%d: %s", store.GetInt("echoed"), text)); err != nil {
			return gone(err)
		}
	}
}
