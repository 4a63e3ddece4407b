package session

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// goroutineID returns the runtime's ID for the calling goroutine,
// parsed from the first line of its stack trace ("goroutine <id> ...").
// There is no public API for this; the format has been stable across
// Go releases and the parse is cheap enough for per-call resolution.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))
	if len(fields) == 0 {
		panic("session: cannot parse goroutine ID from stack")
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		panic(fmt.Sprintf("session: cannot parse goroutine ID: %v", err))
	}
	return id
}
