package session

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/parley-dev/parley/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testConfig() *Config {
	return &Config{Logger: testLogger()}
}

// sinkRecorder captures commands written through a session sink.
type sinkRecorder struct {
	mu   sync.Mutex
	cmds []protocol.Command
}

func (r *sinkRecorder) sink(cmd protocol.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *sinkRecorder) commands() []protocol.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Command, len(r.cmds))
	copy(out, r.cmds)
	return out
}

func (r *sinkRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.cmds))
	for i, cmd := range r.cmds {
		kinds[i] = cmd.Kind
	}
	return kinds
}

// waiterCount exposes the suspended consumer count to tests.
func (c *core) waiterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waitq)
}

// extCancelCount exposes the number of coroutines parked on external
// work to tests.
func (sc *scheduler) extCancelCount() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	n := 0
	for _, c := range sc.coros {
		if c.extCancel != nil {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestGenerateSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := generateSessionID()
		if len(id) != 32 {
			t.Fatalf("session ID length = %d, want 32", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		seen[id] = true
	}
}

func TestGoroutineIDStable(t *testing.T) {
	if goroutineID() != goroutineID() {
		t.Fatal("goroutine ID changed between calls on the same goroutine")
	}
	otherCh := make(chan uint64, 1)
	go func() { otherCh <- goroutineID() }()
	if other := <-otherCh; other == goroutineID() {
		t.Fatal("two goroutines reported the same ID")
	}
}
