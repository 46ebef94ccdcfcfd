package async

import "sync/atomic"

// sharedWaiter is one suspended awaiter on a shared completion node.
// Waiters form an intrusive stack pushed with a CAS on the list head;
// no lock is ever taken to enqueue.
type sharedWaiter struct {
	cont Continuation
	next *sharedWaiter
}

// sharedClosed marks a drained node: once the head holds it, the result
// slot is published and awaiting no longer suspends.
var sharedClosed = &sharedWaiter{}

// sharedCore is the reference-counted completion node behind [SharedTask]
// and [SharedLazyTask] handles. All handle copies point at one core; the
// garbage collector stands in for the reference count.
type sharedCore[T any] struct {
	head    atomic.Pointer[sharedWaiter]
	started atomic.Bool
	co      *Coroutine
	value   T
	err     error
}

func (c *sharedCore[T]) Ready() bool {
	return c.head.Load() == sharedClosed
}

// push adds a waiter unless the node has already completed.
func (c *sharedCore[T]) push(n *sharedWaiter) bool {
	for {
		h := c.head.Load()
		if h == sharedClosed {
			return false
		}
		n.next = h
		if c.head.CompareAndSwap(h, n) {
			return true
		}
	}
}

func (c *sharedCore[T]) Suspend(cont Continuation) bool {
	if !c.push(&sharedWaiter{cont: cont}) {
		return false
	}
	if c.started.CompareAndSwap(false, true) {
		c.co.carry()
	}
	return true
}

func (c *sharedCore[T]) suspendTransfer(cont Continuation) (Continuation, bool) {
	if !c.push(&sharedWaiter{cont: cont}) {
		return Continuation{}, false
	}
	if c.started.CompareAndSwap(false, true) {
		return Continuation{co: c.co}, true
	}
	return Continuation{}, true
}

// settle publishes the result and detaches the waiter list. Every waiter
// that managed to enqueue before the swap is returned exactly once;
// any later awaiter observes the closed head and resumes inline.
func (c *sharedCore[T]) settle(v T, err error) *sharedWaiter {
	c.value, c.err = v, err
	return c.head.Swap(sharedClosed)
}

func newSharedCore[T any](e *Executor, fn func(co *Coroutine) (T, error)) *sharedCore[T] {
	c := &sharedCore[T]{}
	co := newCoroutine(e)
	c.co = co
	co.body = func() {
		e.addWork(1)
		v, err := runBody(co, fn)
		w := c.settle(v, err)
		co.finish()
		// Resumption order across waiters is unspecified; this drain happens
		// to run in reverse registration order. Each waiter is resumed
		// exactly once, on this goroutine.
		for ; w != nil; w = w.next {
			w.cont.Resume()
		}
		e.workDone()
	}
	return c
}

// A SharedTask is an eagerly started asynchronous computation that any
// number of consumers may await concurrently. Handles are values; copies
// share one completion node.
//
// Every awaiter observes the same value, or the same error, and each is
// resumed exactly once. The stored value is never consumed by awaiting;
// it remains readable for any number of later awaits.
//
// Copying, Ready and awaiting are safe to call concurrently from multiple
// goroutines. Overwriting a handle variable while another goroutine uses
// that same variable is not.
type SharedTask[T any] struct {
	core *sharedCore[T]
}

// RunShared spawns an eager shared task on e executing fn. Like [Run],
// fn runs on the calling goroutine until its first suspension point.
func RunShared[T any](e *Executor, fn func(co *Coroutine) (T, error)) SharedTask[T] {
	c := newSharedCore(e, fn)
	c.started.Store(true)
	c.co.carry()
	return SharedTask[T]{core: c}
}

// Ready reports whether the task has completed.
func (t SharedTask[T]) Ready() bool {
	return t.core.Ready()
}

// Await suspends co until the task completes and returns its result.
func (t SharedTask[T]) Await(co *Coroutine) (T, error) {
	co.Await(t.core)
	return t.core.value, t.core.err
}

// WhenReady suspends co until the task completes, without returning
// the task's error.
func (t SharedTask[T]) WhenReady(co *Coroutine) {
	co.Await(t.core)
}

// Wait blocks the calling goroutine until the task completes and returns
// its result.
func (t SharedTask[T]) Wait() (T, error) {
	wait(t.core)
	return t.core.value, t.core.err
}

// A SharedLazyTask is a [SharedTask] whose body does not start until the
// first await of any handle copy.
type SharedLazyTask[T any] struct {
	core *sharedCore[T]
}

// LazyShared creates a shared task on e that will execute fn when any copy
// of the returned handle is first awaited. If it is never awaited, fn
// never runs.
func LazyShared[T any](e *Executor, fn func(co *Coroutine) (T, error)) SharedLazyTask[T] {
	return SharedLazyTask[T]{core: newSharedCore(e, fn)}
}

// Ready reports whether the task has completed.
func (t SharedLazyTask[T]) Ready() bool {
	return t.core.Ready()
}

// Await suspends co, starts the body if this is the first await of any
// copy, and returns the task's result once it completes.
func (t SharedLazyTask[T]) Await(co *Coroutine) (T, error) {
	co.Await(t.core)
	return t.core.value, t.core.err
}

// WhenReady suspends co until the task completes, without returning
// the task's error, starting the body if needed.
func (t SharedLazyTask[T]) WhenReady(co *Coroutine) {
	co.Await(t.core)
}

// Wait blocks the calling goroutine until the task completes, starting
// the body if this is the first await of any copy.
func (t SharedLazyTask[T]) Wait() (T, error) {
	wait(t.core)
	return t.core.value, t.core.err
}
