package async

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// An Executor is an execution context for coroutines: a concurrent ready
// queue, a deadline-ordered timer queue, and a dispatch operation that any
// number of worker goroutines may run.
//
// Frames spawned on an executor ([Run], [Lazy] and friends) resume inline
// on whichever goroutine completes what they await; the executor's own
// queues come into play through [Executor.Schedule],
// [Executor.ScheduleAfter] and [Executor.Post]. One uniform dispatch loop
// serves explicitly scheduled, timer-driven and externally posted work.
//
// The executor tracks a count of outstanding work: spawned frames count
// automatically, and external collaborators may add their own with
// [Executor.AddWork]. When the count drops to zero the executor stops
// implicitly, letting dispatch loops exit; [Executor.Stop] forces that at
// any time, and [Executor.Reset] re-arms a stopped executor.
type Executor struct {
	mu      sync.Mutex
	ready   []Continuation
	timers  timerQueue
	wakec   chan struct{}
	stopc   chan struct{}
	stopped bool
	work    atomic.Int64
	sem     *semaphore.Weighted
	hint    int64
}

// NewExecutor creates an executor whose dispatch loops allow at most hint
// goroutines to resume work at the same time. A hint of zero or less means
// GOMAXPROCS. The hint caps active dispatchers; it does not start any
// goroutines itself.
func NewExecutor(hint int) *Executor {
	if hint <= 0 {
		hint = runtime.GOMAXPROCS(0)
	}
	e := &Executor{
		wakec: make(chan struct{}, 1),
		stopc: make(chan struct{}),
		hint:  int64(hint),
		sem:   semaphore.NewWeighted(int64(hint)),
	}
	Logger().Debug("async: executor created", zap.Int("concurrency_hint", hint))
	return e
}

// Run dispatches work until the executor stops: it promotes due timers
// into the ready queue, pops ready continuations and resumes them, and
// sleeps until the earliest deadline when idle.
//
// Run may be called from any number of goroutines at once; each call is
// one worker. Every call returns once the executor stops, whether by
// [Executor.Stop] or by the work count reaching zero.
func (e *Executor) Run() {
	log := Logger()
	log.Debug("async: dispatch loop started")
	defer log.Debug("async: dispatch loop exited")

	for {
		c, have, wait, running := e.poll()
		if !running {
			return
		}
		if have {
			// The semaphore enforces the concurrency hint: it bounds how
			// many workers resume work at once, not how many exist.
			_ = e.sem.Acquire(context.Background(), 1)
			c.Resume()
			e.sem.Release(1)
			continue
		}

		e.mu.Lock()
		stopc := e.stopc
		e.mu.Unlock()

		if wait < 0 {
			select {
			case <-e.wakec:
			case <-stopc:
			}
			continue
		}
		tm := time.NewTimer(wait)
		select {
		case <-e.wakec:
		case <-stopc:
		case <-tm.C:
		}
		tm.Stop()
	}
}

// poll promotes due timers and pops one ready continuation. With nothing
// ready it returns the time until the next deadline, or a negative wait
// when there are no pending timers.
func (e *Executor) poll() (c Continuation, have bool, wait time.Duration, running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return c, false, 0, false
	}

	now := time.Now()
	for !e.timers.Empty() && !e.timers.Peek().when.After(now) {
		op := e.timers.Pop()
		if op.claimed.CompareAndSwap(false, true) {
			e.ready = append(e.ready, op.cont)
		}
		// A lost claim means the operation was cancelled; the entry is
		// discarded here, having been removed from play the moment the
		// cancellation callback won the claim.
	}

	if len(e.ready) != 0 {
		c = e.ready[0]
		e.ready[0] = Continuation{}
		e.ready = e.ready[1:]
		return c, true, 0, true
	}

	if e.timers.Empty() {
		return c, false, -1, true
	}
	wait = e.timers.Peek().when.Sub(now)
	if wait <= 0 {
		wait = time.Nanosecond
	}
	return c, false, wait, true
}

// post enqueues c as ready and nudges a sleeping worker.
func (e *Executor) post(c Continuation) {
	e.mu.Lock()
	e.ready = append(e.ready, c)
	e.mu.Unlock()
	select {
	case e.wakec <- struct{}{}:
	default:
	}
}

// Post enqueues f to run on one of the executor's dispatch loops. It is
// the entry point for external completion sources (such as an I/O layer)
// to hand finished work back to the executor.
//
// Post is safe for concurrent use.
func (e *Executor) Post(f func()) {
	e.post(ContinueFunc(f))
}

// Stop makes all dispatch loops exit as soon as they finish the work they
// are currently resuming. Pending ready entries and timers are kept;
// a subsequent [Executor.Reset] re-arms the executor and dispatch resumes
// where it left off.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.stopc)
		Logger().Debug("async: executor stopped")
	}
	e.mu.Unlock()
}

// Reset re-arms a stopped executor so Run can dispatch again.
// Resetting a running executor is a no-op.
func (e *Executor) Reset() {
	e.mu.Lock()
	if e.stopped {
		e.stopped = false
		e.stopc = make(chan struct{})
		Logger().Debug("async: executor reset")
	}
	e.mu.Unlock()
}

// AddWork adds n outstanding work items to the executor's count, keeping
// dispatch loops alive until a matching number of [Executor.WorkDone]
// calls. Spawned frames are counted automatically; AddWork is for external
// collaborators with in-flight operations of their own.
func (e *Executor) AddWork(n int) {
	e.addWork(int64(n))
}

// WorkDone removes one outstanding work item. When the count reaches zero
// the executor stops.
func (e *Executor) WorkDone() {
	e.workDone()
}

func (e *Executor) addWork(n int64) {
	if e.work.Add(n) < 0 {
		panic("async(Executor): negative work count")
	}
}

func (e *Executor) workDone() {
	n := e.work.Add(-1)
	if n < 0 {
		panic("async(Executor): negative work count")
	}
	if n == 0 {
		e.Stop()
	}
}

// Schedule unconditionally suspends co and re-enqueues it on the ready
// queue, to be resumed by one of the executor's dispatch loops. It is the
// way a long-running computation yields its carrier.
func (e *Executor) Schedule(co *Coroutine) {
	co.Await(scheduleOp{e})
}

// ScheduleAfter suspends co and resumes it on a dispatch loop once d has
// elapsed. If token is cancelled first, the timer entry is withdrawn and
// co resumes immediately with [ErrCanceled]. Timers are best-effort:
// resumption happens at or after the deadline, never before.
func (e *Executor) ScheduleAfter(co *Coroutine, d time.Duration, token CancelToken) error {
	if err := token.Err(); err != nil {
		return err
	}
	op := &timedOp{e: e, when: time.Now().Add(d), token: token}
	co.Await(op)
	if op.err != nil {
		return op.err
	}
	if op.reg != nil {
		// The timer won the claim. Quiesce the cancellation callback
		// before op goes out of scope; a callback that lost the claim
		// backs off quickly, so this wait is bounded.
		op.reg.Unregister()
	}
	return nil
}

type scheduleOp struct {
	e *Executor
}

func (op scheduleOp) Ready() bool {
	return false
}

func (op scheduleOp) Suspend(c Continuation) bool {
	op.e.post(c)
	return true
}

// timedOp is one pending ScheduleAfter: a timer queue entry plus an
// optional cancellation registration racing to claim it. Whichever side
// wins the claim resumes the continuation, exactly once; the loser backs
// off entirely.
type timedOp struct {
	e       *Executor
	when    time.Time
	token   CancelToken
	cont    Continuation
	reg     *CancelRegistration
	claimed atomic.Bool
	err     error
}

func (op *timedOp) Ready() bool {
	return false
}

func (op *timedOp) Suspend(c Continuation) bool {
	op.cont = c
	// Register before arming the timer: once the entry is in the queue
	// a dispatch loop may resume the continuation, and the resumed side
	// reads op.reg. With this ordering that read is safe whenever the
	// timer wins the claim.
	if op.token.CanBeCanceled() {
		op.reg = op.token.Register(op.cancel)
		if op.claimed.Load() {
			// Cancelled during registration; the callback already posted
			// the continuation, so no timer entry is needed.
			return true
		}
	}
	op.e.mu.Lock()
	op.e.timers.Push(op)
	op.e.mu.Unlock()
	select {
	case op.e.wakec <- struct{}{}:
	default:
	}
	return true
}

func (op *timedOp) cancel() {
	if op.claimed.CompareAndSwap(false, true) {
		op.err = ErrCanceled
		op.e.post(op.cont)
	}
}
