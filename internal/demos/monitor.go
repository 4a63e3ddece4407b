package demos

import (
	"context"
	"fmt"
	"time"

	"github.com/parley-dev/parley"
)

// tickEvery is how often the background ticker reports. Tests shrink
// it.
var tickEvery = time.Second

// monitor shows the cooperative model: a ticker coroutine and the main
// event loop share the ticks counter with no locking, because only one
// coroutine of the session runs at a time.
func monitor() {
	if err := parley.SetEnv(parley.WithTitle("parley monitor")); err != nil {
		return
	}
	if err := parley.Text("monitor running: stop, stat, quit"); err != nil {
		return
	}

	ticks := 0
	ticker, err := parley.RunAsync(func() {
		for {
			if _, err := parley.RunGoroutine(sleep(tickEvery)); err != nil {
				return
			}
			ticks++
			if err := parley.Text(fmt.Sprintf("tick %d", ticks)); err != nil {
				return
			}
		}
	})
	if err != nil {
		return
	}

	for {
		ev, err := parley.NextClientEvent()
		if err != nil {
			return
		}
		switch ev.Data {
		case "stop":
			ticker.Close()
			err = parley.Text(fmt.Sprintf("ticker stopped after %d ticks", ticks))
		case "stat":
			err = parley.Text(fmt.Sprintf("ticks=%d ticker alive=%v", ticks, ticker.IsAlive()))
		case "quit":
			_ = parley.Text("bye")
			return
		}
		if err != nil {
			return
		}
	}
}

// sleep returns a bridge function that waits off the scheduler, so
// sibling coroutines keep running during the pause.
func sleep(d time.Duration) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		select {
		case <-time.After(d):
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
