package session

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-dev/parley/pkg/protocol"
)

// core holds the state and behavior shared by both execution models:
// identity, the outbound command path, the inbound event queue with its
// consumer bookkeeping, the local store, environment settings and
// deferred cleanups. The embedding type supplies the suspension
// mechanics.
type core struct {
	id        string
	kind      Kind
	createdAt time.Time
	info      Info
	logger    *slog.Logger
	store     *Store

	sendMu sync.Mutex
	sink   func(protocol.Command) error
	outbuf []protocol.Command

	mu     sync.Mutex
	shared []protocol.Event
	waitq  []*eventWaiter
	boxes  map[int64]*mailbox
	units  map[int64]bool
	defers []func()
	env    map[string]any

	maxPending int
	nextUnit   atomic.Int64
	closed     atomic.Bool
	done       chan struct{}

	lastActive atomic.Int64
	eventsRecv atomic.Uint64
	eventsDrop atomic.Uint64
	cmdsSent   atomic.Uint64
}

// eventWaiter is one suspended NextClientEvent call. deliver is invoked
// exactly once, after the waiter has been unlinked from the session.
type eventWaiter struct {
	unit    int64
	deliver func(protocol.Event, error)
}

// mailbox holds correlated events for one execution unit.
type mailbox struct {
	pending []protocol.Event
	waiter  *eventWaiter
}

func (c *core) init(kind Kind, cfg Config) {
	c.id = generateSessionID()
	c.kind = kind
	c.createdAt = time.Now()
	c.info = cfg.Info
	c.logger = cfg.Logger.With("session_id", c.id)
	c.store = NewStore()
	c.boxes = make(map[int64]*mailbox)
	c.units = make(map[int64]bool)
	c.env = make(map[string]any)
	c.maxPending = cfg.MaxPendingEvents
	c.done = make(chan struct{})
	c.touch()
}

func (c *core) ID() string           { return c.id }
func (c *core) Kind() Kind           { return c.kind }
func (c *core) CreatedAt() time.Time { return c.createdAt }
func (c *core) Info() Info           { return c.info }
func (c *core) Store() *Store        { return c.store }
func (c *core) Closed() bool         { return c.closed.Load() }

func (c *core) Done() <-chan struct{} { return c.done }

func (c *core) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// Touch marks the session active now.
func (c *core) Touch() {
	c.touch()
}

// LastActive returns the time of the last send or delivery.
func (c *core) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

// allocUnit registers a new execution unit and returns its ID.
func (c *core) allocUnit() int64 {
	unit := c.nextUnit.Add(1)
	c.mu.Lock()
	c.units[unit] = true
	c.mu.Unlock()
	return unit
}

// retireUnit forgets a finished execution unit. Correlated events still
// pending for it are dropped.
func (c *core) retireUnit(unit int64) {
	c.mu.Lock()
	delete(c.units, unit)
	delete(c.boxes, unit)
	c.mu.Unlock()
}

// Send emits one command to the client, or buffers it while no sink is
// attached.
func (c *core) Send(cmd protocol.Command) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	c.sendRaw(cmd)
	c.touch()
	return nil
}

// sendRaw writes through the sink or buffers, without the closed check.
// The close path uses it to get the final close notice out.
func (c *core) sendRaw(cmd protocol.Command) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.cmdsSent.Add(1)
	if c.sink == nil {
		c.outbuf = append(c.outbuf, cmd)
		return
	}
	if err := c.sink(cmd); err != nil {
		c.logger.Warn("command write failed", "command", cmd.Kind, "error", err)
	}
}

// AttachSink connects the transport write path and flushes buffered
// commands through it in order.
func (c *core) AttachSink(sink func(protocol.Command) error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	buffered := c.outbuf
	c.outbuf = nil
	c.sink = sink
	for _, cmd := range buffered {
		if err := sink(cmd); err != nil {
			c.logger.Warn("buffered command write failed", "command", cmd.Kind, "error", err)
		}
	}
}

// DetachSink disconnects the transport write path.
func (c *core) DetachSink() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.sink = nil
}

// DrainCommands removes and returns all buffered commands.
func (c *core) DrainCommands() []protocol.Command {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	drained := c.outbuf
	c.outbuf = nil
	return drained
}

// Deliver hands an inbound client event to the session. Events with a
// task correlation go to that unit's mailbox, waking its suspended
// consumer if any. Uncorrelated events go to the oldest suspended
// consumer, or queue up to the configured bound.
func (c *core) Deliver(ev protocol.Event) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	var w *eventWaiter
	c.mu.Lock()
	if ev.Task != 0 {
		if !c.units[ev.Task] {
			c.mu.Unlock()
			c.eventsDrop.Add(1)
			c.logger.Warn("event for unknown task dropped", "task_id", ev.Task, "event", ev.Kind)
			return nil
		}
		box := c.box(ev.Task)
		if box.waiter != nil {
			w = box.waiter
			box.waiter = nil
			c.unlink(w)
		} else {
			box.pending = append(box.pending, ev)
		}
	} else {
		if len(c.waitq) > 0 {
			w = c.waitq[0]
			c.waitq = c.waitq[1:]
			if box := c.boxes[w.unit]; box != nil && box.waiter == w {
				box.waiter = nil
			}
		} else if len(c.shared) >= c.maxPending {
			c.mu.Unlock()
			c.eventsDrop.Add(1)
			return ErrEventQueueFull
		} else {
			c.shared = append(c.shared, ev)
		}
	}
	c.mu.Unlock()
	c.eventsRecv.Add(1)
	c.touch()
	if w != nil {
		w.deliver(ev, nil)
	}
	return nil
}

func (c *core) box(unit int64) *mailbox {
	b := c.boxes[unit]
	if b == nil {
		b = &mailbox{}
		c.boxes[unit] = b
	}
	return b
}

// cancelWaiter withdraws a registered waiter. Reports false when the
// waiter was already taken by a delivery, in which case its deliver
// callback has fired or is about to.
func (c *core) cancelWaiter(w *eventWaiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.waitq {
		if q == w {
			c.waitq = append(c.waitq[:i], c.waitq[i+1:]...)
			if box := c.boxes[w.unit]; box != nil && box.waiter == w {
				box.waiter = nil
			}
			return true
		}
	}
	return false
}

// unlink removes w from the wait queue.
func (c *core) unlink(w *eventWaiter) {
	for i, q := range c.waitq {
		if q == w {
			c.waitq = append(c.waitq[:i], c.waitq[i+1:]...)
			return
		}
	}
}

// takeOrWait consumes an available event for unit, or registers a
// waiter whose deliver callback will be invoked exactly once with an
// event or an error. The unit's own mailbox has priority over the
// shared queue.
func (c *core) takeOrWait(unit int64, deliver func(protocol.Event, error)) (protocol.Event, *eventWaiter, error) {
	if c.closed.Load() {
		return protocol.Event{}, nil, ErrSessionClosed
	}
	c.mu.Lock()
	if unit != 0 {
		if box := c.boxes[unit]; box != nil && len(box.pending) > 0 {
			ev := box.pending[0]
			box.pending = box.pending[1:]
			c.mu.Unlock()
			return ev, nil, nil
		}
	}
	if len(c.shared) > 0 {
		ev := c.shared[0]
		c.shared = c.shared[1:]
		c.mu.Unlock()
		return ev, nil, nil
	}
	// Close sets the flag before detaching waiters under mu; recheck so
	// a waiter registered now cannot be stranded.
	if c.closed.Load() {
		c.mu.Unlock()
		return protocol.Event{}, nil, ErrSessionClosed
	}
	w := &eventWaiter{unit: unit, deliver: deliver}
	c.waitq = append(c.waitq, w)
	if unit != 0 {
		c.box(unit).waiter = w
	}
	c.mu.Unlock()
	return protocol.Event{}, w, nil
}

// DeferCall registers f to run exactly once at session close, in
// registration order. After Close the registration is dropped.
func (c *core) DeferCall(f func()) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		c.logger.Debug("deferred call registered after close, dropped")
		return
	}
	c.defers = append(c.defers, f)
	c.mu.Unlock()
}

// ApplyEnv validates an environment spec, records it and sends it to
// the client. An unknown key is a caller bug: it panics before anything
// is recorded or sent.
func (c *core) ApplyEnv(spec map[string]any) error {
	if err := protocol.ValidateEnv(spec); err != nil {
		panic(err)
	}
	c.mu.Lock()
	for k, v := range spec {
		c.env[k] = v
	}
	c.mu.Unlock()
	return c.Send(protocol.SetEnv(spec))
}

// EnvValue returns the last applied value for an environment key.
func (c *core) EnvValue(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env[key]
}

// PullInterval interprets the http_pull_interval setting, which
// arrives as milliseconds from SetEnv specs.
func (c *core) PullInterval(def time.Duration) time.Duration {
	switch v := c.EnvValue(protocol.EnvHTTPPullInterval).(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	default:
		return def
	}
}

// beginClose marks the session closed, notifies the client, and wakes
// every suspended consumer with ErrSessionClosed. Returns false when
// the session was already closed. The embedding type tears down its
// execution units afterwards and then calls runDefers.
func (c *core) beginClose() bool {
	if c.closed.Swap(true) {
		return false
	}
	c.sendRaw(protocol.CloseSession())
	close(c.done)
	c.mu.Lock()
	waiters := c.waitq
	c.waitq = nil
	for _, box := range c.boxes {
		box.waiter = nil
	}
	c.shared = nil
	c.mu.Unlock()
	for _, w := range waiters {
		w.deliver(protocol.Event{}, ErrSessionClosed)
	}
	return true
}

// runDefers runs deferred cleanups in registration order. A panic in
// one is recovered and logged; the rest still run.
func (c *core) runDefers() {
	c.mu.Lock()
	fns := c.defers
	c.defers = nil
	c.mu.Unlock()
	for _, f := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("deferred cleanup panicked",
						"panic", r,
						"stack", string(debug.Stack()))
				}
			}()
			f()
		}()
	}
}

// Stats returns a snapshot of session counters.
func (c *core) Stats() Stats {
	c.mu.Lock()
	pendingEvents := len(c.shared)
	for _, box := range c.boxes {
		pendingEvents += len(box.pending)
	}
	c.mu.Unlock()
	c.sendMu.Lock()
	pendingCommands := len(c.outbuf)
	c.sendMu.Unlock()
	return Stats{
		ID:              c.id,
		Kind:            c.kind,
		CreatedAt:       c.createdAt,
		LastActive:      c.LastActive(),
		EventsReceived:  c.eventsRecv.Load(),
		EventsDropped:   c.eventsDrop.Load(),
		CommandsSent:    c.cmdsSent.Load(),
		PendingEvents:   pendingEvents,
		PendingCommands: pendingCommands,
		StoreKeys:       c.store.Len(),
		Closed:          c.closed.Load(),
	}
}
