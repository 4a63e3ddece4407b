// Package transfer moves files between the browser and session tasks.
//
// Interactive transports are poor at large binary payloads: a big
// upload inside a WebSocket frame blocks the heartbeat, and base64
// inline content bloats the command stream. This package spools files
// over plain HTTP instead and hands sessions a small claim ticket.
//
//  1. The client POSTs the file to the transfer endpoint.
//  2. The server spools it (disk or S3) and returns a spool ID.
//  3. The client sends an "upload" event carrying the spool ID.
//  4. The session task claims the file by ID, which consumes it.
//
// Mount the endpoint and wire it to a store:
//
//	store, _ := transfer.NewDiskStore(os.TempDir(), 10<<20)
//	srv.Handle("/transfer", transfer.Handler(store))
//
// Claim in the task after the client submits:
//
//	ev, err := parley.NextClientEvent()
//	if err != nil {
//	    return
//	}
//	file, err := transfer.FromEvent(store, ev)
//	if err != nil {
//	    return
//	}
//	defer file.Close()
//
// Unclaimed spool files expire; run a cleanup loop with StartCleanup.
package transfer
