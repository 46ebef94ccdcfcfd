package async

import (
	"sync/atomic"

	"go.uber.org/multierr"
)

const (
	taskPending int32 = iota
	taskWaiting
	taskDone
)

// taskCore is the result slot and completion state machine shared by
// the producer and the single consumer of a [Task].
//
// The state transition in Suspend and settle resolves the race between
// registering the continuation and concurrent completion on another
// goroutine: exactly one side observes the other's transition, so the
// continuation is resumed exactly once, either by the completer or inline
// by the awaiter's carrier.
type taskCore[T any] struct {
	state    atomic.Int32
	detached atomic.Bool
	cont     Continuation
	value    T
	err      error
}

func (c *taskCore[T]) Ready() bool {
	return c.state.Load() == taskDone
}

func (c *taskCore[T]) Suspend(cont Continuation) bool {
	c.cont = cont
	if c.state.CompareAndSwap(taskPending, taskWaiting) {
		return true
	}
	if c.state.Load() != taskDone {
		panic("async(Task): awaited twice")
	}
	return false
}

// settle publishes the result. It reports whether a registered continuation
// must be resumed by the caller.
func (c *taskCore[T]) settle(v T, err error) (Continuation, bool) {
	c.value, c.err = v, err
	if c.state.Swap(taskDone) == taskWaiting {
		return c.cont, true
	}
	return Continuation{}, false
}

// A Task is an eagerly started asynchronous computation producing a value
// of type T.
//
// Execution begins inside [Run], on the calling goroutine, and proceeds
// until the body first suspends or completes; the task then continues
// concurrently, resumed by whatever it awaits on. A Task has a single
// owner: it must be awaited at most once while pending, and awaiting from
// two goroutines concurrently is a contract violation that panics.
//
// A Task that is never awaited keeps its frame goroutine parked until it
// completes; [Task.Detach] gives up result access so the handle can simply
// be dropped.
type Task[T any] struct {
	core *taskCore[T]
	co   *Coroutine
}

// Run spawns an eager task on e executing fn.
//
// fn runs synchronously on the calling goroutine until its first suspension
// point. A panic in fn before the first suspension propagates to the result
// slot, not to the caller of Run.
func Run[T any](e *Executor, fn func(co *Coroutine) (T, error)) *Task[T] {
	t := &Task[T]{core: &taskCore[T]{}}
	co := newCoroutine(e)
	t.co = co
	e.addWork(1)
	co.body = func() {
		v, err := runBody(co, fn)
		w, resume := t.core.settle(v, err)
		co.finish()
		if resume {
			w.Resume()
		}
		e.workDone()
	}
	co.carry()
	return t
}

// runBody executes fn, converting an escaped panic into a *PanicError.
func runBody[T any](co *Coroutine, fn func(co *Coroutine) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn(co)
}

// Ready reports whether the task has completed.
func (t *Task[T]) Ready() bool {
	return t.core.Ready()
}

// Await suspends co until the task completes and returns its result.
// The task's own error, if any, is returned verbatim. Awaiting a detached
// task returns [ErrBrokenPromise].
func (t *Task[T]) Await(co *Coroutine) (T, error) {
	if t.core.detached.Load() {
		var zero T
		return zero, ErrBrokenPromise
	}
	co.Await(t.core)
	return t.core.value, t.core.err
}

// WhenReady suspends co until the task completes, without returning
// the task's error. It returns [ErrBrokenPromise] if the task has been
// detached, and nil otherwise.
func (t *Task[T]) WhenReady(co *Coroutine) error {
	if t.core.detached.Load() {
		return ErrBrokenPromise
	}
	co.Await(t.core)
	return nil
}

// Wait blocks the calling goroutine until the task completes and returns
// its result. It is the bridge for non-coroutine callers; inside a task
// body, use Await instead.
func (t *Task[T]) Wait() (T, error) {
	if t.core.detached.Load() {
		var zero T
		return zero, ErrBrokenPromise
	}
	wait(t.core)
	return t.core.value, t.core.err
}

// Detach permanently gives up access to the task's result. The body keeps
// running to completion; any later await returns [ErrBrokenPromise].
func (t *Task[T]) Detach() {
	t.core.detached.Store(true)
}

// wait parks the calling goroutine on a until it completes.
func wait(a Awaitable) {
	if a.Ready() {
		return
	}
	done := make(chan struct{})
	if a.Suspend(ContinueFunc(func() { close(done) })) {
		<-done
	}
}

// WhenAll awaits every task and returns their values in argument order.
// Errors of failed tasks are combined into one.
func WhenAll[T any](co *Coroutine, tasks ...*Task[T]) ([]T, error) {
	vs := make([]T, len(tasks))
	var err error
	for i, t := range tasks {
		v, terr := t.Await(co)
		vs[i] = v
		err = multierr.Append(err, terr)
	}
	return vs, err
}

const (
	lazyNotStarted int32 = iota
	lazyStarted
	lazyDone
)

// lazyCore is the completion state of a [LazyTask]. The consumer is always
// suspended before the producer starts, so unlike taskCore there is no
// registration/completion race to resolve; the states only track whether
// the producer has been started and finished.
type lazyCore[T any] struct {
	state    atomic.Int32
	detached atomic.Bool
	cont     Continuation
	co       *Coroutine
	value    T
	err      error
}

func (c *lazyCore[T]) Ready() bool {
	return c.state.Load() == lazyDone
}

// Suspend starts the producer on the calling goroutine. It serves blocking
// waiters; coroutine awaiters go through suspendTransfer so that the
// producer is carried by the awaiter's trampoline instead.
func (c *lazyCore[T]) Suspend(cont Continuation) bool {
	c.cont = cont
	if c.state.CompareAndSwap(lazyNotStarted, lazyStarted) {
		c.co.carry()
		return true
	}
	if c.state.Load() != lazyDone {
		panic("async(LazyTask): awaited twice")
	}
	return false
}

func (c *lazyCore[T]) suspendTransfer(cont Continuation) (Continuation, bool) {
	c.cont = cont
	if c.state.CompareAndSwap(lazyNotStarted, lazyStarted) {
		return Continuation{co: c.co}, true
	}
	if c.state.Load() != lazyDone {
		panic("async(LazyTask): awaited twice")
	}
	return Continuation{}, false
}

func (c *lazyCore[T]) settle(v T, err error) Continuation {
	c.value, c.err = v, err
	c.state.Store(lazyDone)
	return c.cont
}

// A LazyTask is an asynchronous computation whose body does not start,
// and whose frame goroutine is not even spawned, until the task is first
// awaited. The awaiting side is already suspended when the producer starts,
// so completion resumes it directly.
//
// Chains of lazily started, synchronously completing tasks are resumed
// through the carrier trampoline, keeping stack depth constant regardless
// of chain length.
//
// Like [Task], a LazyTask has a single owner and a single awaiter.
type LazyTask[T any] struct {
	core *lazyCore[T]
}

// Lazy creates a task on e that will execute fn when first awaited.
// If the task is never awaited, fn never runs.
func Lazy[T any](e *Executor, fn func(co *Coroutine) (T, error)) *LazyTask[T] {
	l := &LazyTask[T]{core: &lazyCore[T]{}}
	co := newCoroutine(e)
	l.core.co = co
	co.body = func() {
		e.addWork(1)
		v, err := runBody(co, fn)
		w := l.core.settle(v, err)
		co.finish()
		w.Resume()
		e.workDone()
	}
	return l
}

// Ready reports whether the task has completed.
func (l *LazyTask[T]) Ready() bool {
	return l.core.Ready()
}

// Await suspends co, starts the body if this is the first await, and
// returns the task's result once it completes. Awaiting a detached task
// returns [ErrBrokenPromise].
func (l *LazyTask[T]) Await(co *Coroutine) (T, error) {
	if l.core.detached.Load() {
		var zero T
		return zero, ErrBrokenPromise
	}
	co.Await(l.core)
	return l.core.value, l.core.err
}

// WhenReady suspends co until the task completes, without returning
// the task's error, starting the body if needed.
func (l *LazyTask[T]) WhenReady(co *Coroutine) error {
	if l.core.detached.Load() {
		return ErrBrokenPromise
	}
	co.Await(l.core)
	return nil
}

// Wait blocks the calling goroutine until the task completes, starting
// the body if this is the first await.
func (l *LazyTask[T]) Wait() (T, error) {
	if l.core.detached.Load() {
		var zero T
		return zero, ErrBrokenPromise
	}
	wait(l.core)
	return l.core.value, l.core.err
}

// Detach permanently gives up access to the task's result. A detached
// LazyTask that was never awaited never runs.
func (l *LazyTask[T]) Detach() {
	l.core.detached.Store(true)
}
