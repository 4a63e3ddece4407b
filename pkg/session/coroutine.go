package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/parley-dev/parley/pkg/protocol"
)

// CoroutineSession runs all of its tasks on one cooperative scheduler.
// Exactly one coroutine executes at a time and control transfers only
// at suspension points, so tasks may share session state without
// locking. The session closes when every coroutine has finished.
type CoroutineSession struct {
	core
	sched *scheduler
}

// NewCoroutineSession creates a coroutine-backed session. A nil cfg
// uses DefaultConfig.
func NewCoroutineSession(cfg *Config) *CoroutineSession {
	s := &CoroutineSession{}
	s.core.init(KindCoroutine, cfg.withDefaults())
	s.sched = newScheduler(s)
	return s
}

// Start runs task as the session's main coroutine.
func (s *CoroutineSession) Start(task func()) {
	s.sched.spawn(task)
	s.sched.start()
}

// RunAsync schedules fn as a new coroutine of this session and returns
// its handle. The coroutine starts at the next scheduling turn.
func (s *CoroutineSession) RunAsync(fn func()) (*TaskHandle, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	c := s.sched.spawn(fn)
	s.sched.start()
	return &TaskHandle{c: c}, nil
}

// RunGoroutine runs fn on an ordinary goroutine outside the scheduler,
// parks the calling coroutine until fn completes, and returns fn's
// exact result and error. Other coroutines of the session keep running
// meanwhile. The ctx is canceled when the session closes or the
// coroutine's handle is closed; fn must honor it for prompt shutdown.
//
// Calling RunGoroutine from outside a session coroutine panics.
func (s *CoroutineSession) RunGoroutine(fn func(context.Context) (any, error)) (any, error) {
	c := s.currentCoro()
	if c == nil {
		panic("session: RunGoroutine called outside a session coroutine")
	}
	return c.await(fn)
}

// NextClientEvent suspends the calling coroutine until one inbound
// event is available; the scheduler keeps running other coroutines
// meanwhile. Callers outside the scheduler block their goroutine on the
// shared queue instead.
func (s *CoroutineSession) NextClientEvent() (protocol.Event, error) {
	c := s.currentCoro()
	if c == nil {
		ch := make(chan waitResult, 1)
		ev, w, err := s.takeOrWait(0, func(ev protocol.Event, err error) {
			ch <- waitResult{ev: ev, err: err}
		})
		if err != nil {
			return protocol.Event{}, err
		}
		if w == nil {
			return ev, nil
		}
		r := <-ch
		return r.ev, r.err
	}

	if c.canceled.Load() {
		return protocol.Event{}, ErrTaskCanceled
	}
	ev, w, err := s.takeOrWait(c.unit, func(ev protocol.Event, err2 error) {
		s.sched.wake(c, ev, err2)
	})
	if err != nil {
		return protocol.Event{}, err
	}
	if w == nil {
		return ev, nil
	}
	s.sched.setWaiter(c, w)
	if perr := c.park(); perr != nil {
		return protocol.Event{}, perr
	}
	return c.pendingEv, nil
}

func (s *CoroutineSession) currentCoro() *coro {
	if v, ok := coroutineBindings.Load(goroutineID()); ok {
		if c := v.(*coro); c.sess == s {
			return c
		}
	}
	return nil
}

// Close ends the session: wakes suspended consumers with
// ErrSessionClosed, cancels outstanding external work and lets every
// coroutine unwind through its suspension points before deferred
// cleanups run. When called from outside the scheduler it waits for the
// unwind to finish.
func (s *CoroutineSession) Close() {
	s.beginClose()
	s.sched.shutdown()
	if s.currentCoro() != nil || s.sched.onSchedulerGoroutine() {
		return
	}
	<-s.sched.drained
}

// finishClose runs the tail of the close sequence on the scheduler
// goroutine once every coroutine has finished.
func (s *CoroutineSession) finishClose() {
	s.beginClose()
	s.runDefers()
	s.logger.Info("session closed", "kind", s.kind.String())
}

// TaskHandle controls a coroutine spawned with RunAsync.
type TaskHandle struct {
	c *coro
}

// IsAlive reports whether the coroutine has neither finished nor been
// closed.
func (h *TaskHandle) IsAlive() bool {
	return h.c.alive.Load()
}

// Close cancels the coroutine cooperatively: it stops being alive
// immediately, wakes with ErrTaskCanceled at its current or next
// suspension point so its deferred cleanups run, and executes no
// further application code. Closing a finished or already closed
// handle is a no-op.
func (h *TaskHandle) Close() {
	c := h.c
	if c.canceled.Swap(true) {
		return
	}
	c.alive.Store(false)
	sc := c.sess.sched
	sc.mu.Lock()
	switch {
	case c.finished:
		sc.mu.Unlock()
	case c.waiter != nil:
		w := c.waiter
		c.waiter = nil
		sc.mu.Unlock()
		if c.sess.cancelWaiter(w) {
			sc.wake(c, protocol.Event{}, ErrTaskCanceled)
		}
	case c.extCancel != nil:
		cancel := c.extCancel
		sc.mu.Unlock()
		cancel()
	default:
		sc.mu.Unlock()
		sc.poke()
	}
}

// coro is one cooperatively scheduled task. Its goroutine runs only
// between a resume send and the next yield receive, so at most one
// coro of a session is ever executing.
type coro struct {
	sess *CoroutineSession
	unit int64
	fn   func()

	resume chan struct{}
	yield  chan coroStatus

	// Written by the waker before the coro is enqueued, read by the
	// coro after resuming; the scheduler handoff orders the accesses.
	pendingEv  protocol.Event
	pendingErr error
	extVal     any
	extErr     error

	// Guarded by the scheduler mutex.
	queued    bool
	finished  bool
	waiter    *eventWaiter
	extCancel context.CancelFunc

	started  bool // scheduler goroutine only
	canceled atomic.Bool
	alive    atomic.Bool
}

type coroStatus int

const (
	coroParked coroStatus = iota
	coroFinished
)

// main is the coro goroutine body. It binds the goroutine for ambient
// resolution, runs fn with panic recovery, and reports the final yield.
func (c *coro) main() {
	gid := goroutineID()
	bindCoroutine(gid, c)
	defer func() {
		if r := recover(); r != nil {
			c.sess.logger.Error("coroutine panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
		c.alive.Store(false)
		unbindCoroutine(gid)
		c.sess.retireUnit(c.unit)
		c.yield <- coroFinished
	}()
	c.fn()
}

// park yields control to the scheduler and blocks until woken. The
// returned error is what the suspension point must surface:
// cancellation first, then whatever the waker delivered, then session
// closure.
func (c *coro) park() error {
	c.yield <- coroParked
	<-c.resume
	if c.canceled.Load() {
		return ErrTaskCanceled
	}
	if c.pendingErr != nil {
		return c.pendingErr
	}
	if c.sess.closed.Load() {
		return ErrSessionClosed
	}
	return nil
}

// await implements RunGoroutine for this coro.
func (c *coro) await(fn func(context.Context) (any, error)) (any, error) {
	if c.canceled.Load() {
		return nil, ErrTaskCanceled
	}
	if c.sess.closed.Load() {
		return nil, ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(context.Background())
	sc := c.sess.sched
	sc.mu.Lock()
	c.extCancel = cancel
	sc.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				sc.complete(c, nil, fmt.Errorf("session: RunGoroutine panicked: %v", r))
			}
		}()
		v, err := fn(ctx)
		sc.complete(c, v, err)
	}()
	perr := c.park()
	cancel()
	sc.mu.Lock()
	c.extCancel = nil
	sc.mu.Unlock()
	if perr != nil {
		return nil, perr
	}
	return c.extVal, c.extErr
}

// scheduler steps the coroutines of one session, one at a time.
type scheduler struct {
	sess *CoroutineSession

	mu      sync.Mutex
	runq    []*coro
	coros   []*coro
	live    int
	started bool

	kick    chan struct{}
	drained chan struct{}
	loopGID atomic.Uint64
}

func newScheduler(s *CoroutineSession) *scheduler {
	return &scheduler{
		sess:    s,
		kick:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
}

func (sc *scheduler) spawn(fn func()) *coro {
	c := &coro{
		sess:   sc.sess,
		unit:   sc.sess.allocUnit(),
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan coroStatus),
	}
	c.alive.Store(true)
	sc.mu.Lock()
	sc.live++
	sc.coros = append(sc.coros, c)
	sc.enqueueLocked(c)
	sc.mu.Unlock()
	sc.poke()
	return c
}

func (sc *scheduler) start() {
	sc.mu.Lock()
	if sc.started {
		sc.mu.Unlock()
		return
	}
	sc.started = true
	sc.mu.Unlock()
	go sc.run()
}

// run is the scheduling loop. It exits when no coroutine is live, which
// is either the natural end of the session or the end of the close
// unwind; the close tail runs here in both cases.
func (sc *scheduler) run() {
	sc.loopGID.Store(goroutineID())
	for {
		c := sc.next()
		if c == nil {
			break
		}
		sc.step(c)
	}
	sc.sess.finishClose()
	close(sc.drained)
}

func (sc *scheduler) next() *coro {
	for {
		sc.mu.Lock()
		if len(sc.runq) > 0 {
			c := sc.runq[0]
			sc.runq = sc.runq[1:]
			c.queued = false
			sc.mu.Unlock()
			return c
		}
		if sc.live == 0 {
			sc.mu.Unlock()
			return nil
		}
		sc.mu.Unlock()
		<-sc.kick
	}
}

// step resumes one coroutine and waits until it parks or finishes.
func (sc *scheduler) step(c *coro) {
	if !c.started {
		if c.canceled.Load() || sc.sess.closed.Load() {
			// Never ran: nothing to unwind.
			sc.mu.Lock()
			c.finished = true
			sc.live--
			sc.mu.Unlock()
			c.alive.Store(false)
			sc.sess.retireUnit(c.unit)
			return
		}
		c.started = true
		go c.main()
	} else {
		c.resume <- struct{}{}
	}
	if status := <-c.yield; status == coroFinished {
		sc.mu.Lock()
		c.finished = true
		sc.live--
		sc.mu.Unlock()
	}
}

// wake makes a parked coroutine runnable with the given event or error.
func (sc *scheduler) wake(c *coro, ev protocol.Event, err error) {
	sc.mu.Lock()
	if c.finished {
		sc.mu.Unlock()
		return
	}
	c.pendingEv, c.pendingErr = ev, err
	c.waiter = nil
	sc.enqueueLocked(c)
	sc.mu.Unlock()
	sc.poke()
}

// complete delivers the result of external work and wakes the coro.
func (sc *scheduler) complete(c *coro, v any, err error) {
	sc.mu.Lock()
	c.extVal, c.extErr = v, err
	sc.mu.Unlock()
	sc.wake(c, protocol.Event{}, nil)
}

func (sc *scheduler) setWaiter(c *coro, w *eventWaiter) {
	sc.mu.Lock()
	c.waiter = w
	sc.mu.Unlock()
}

func (sc *scheduler) enqueueLocked(c *coro) {
	if !c.queued && !c.finished {
		c.queued = true
		sc.runq = append(sc.runq, c)
	}
}

func (sc *scheduler) poke() {
	select {
	case sc.kick <- struct{}{}:
	default:
	}
}

// shutdown cancels outstanding external work and makes sure the loop is
// running so the close unwind can drain. Parked consumers were already
// woken by the session's close sweep.
func (sc *scheduler) shutdown() {
	sc.mu.Lock()
	cancels := make([]context.CancelFunc, 0)
	for _, c := range sc.coros {
		if c.extCancel != nil {
			cancels = append(cancels, c.extCancel)
		}
	}
	needStart := !sc.started
	sc.started = true
	sc.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	if needStart {
		go sc.run()
	}
	sc.poke()
}

func (sc *scheduler) onSchedulerGoroutine() bool {
	return sc.loopGID.Load() == goroutineID()
}
