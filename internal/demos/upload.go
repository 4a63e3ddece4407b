package demos

import (
	"fmt"
	"io"

	"github.com/parley-dev/parley"
	"github.com/parley-dev/parley/pkg/transfer"
)

// uploadApp wires the spool store into a conversation: the client
// posts a file to the transfer endpoint, then hands the returned spool
// id to the task as an upload event.
func uploadApp(store transfer.Store) func() error {
	return func() error {
		if err := parley.SetEnv(parley.WithTitle("parley upload")); err != nil {
			return gone(err)
		}
		if err := parley.Text(`POST a file to /transfer, then send {"event":"upload","data":{"spool_id":...}}`); err != nil {
			return gone(err)
		}
		for {
			ev, err := parley.NextClientEvent()
			if err != nil {
				return gone(err)
			}
			if ev.Kind != "upload" {
				continue
			}
			f, err := transfer.FromEvent(store, ev)
			if err != nil {
				if err := parley.Text("claim failed: " + err.Error()); err != nil {
					return gone(err)
				}
				continue
			}
			n, _ := io.Copy(io.Discard, f.Reader)
			f.Close()
			if err := parley.Text(fmt.Sprintf("received %s (%s, %d bytes)",
				f.Filename, f.ContentType, n)); err != nil {
				return gone(err)
			}
		}
	}
}
