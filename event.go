package async

import "sync/atomic"

// eventSet marks a signaled event. Any other non-nil state pointer is
// a parked waiter.
var eventSet = &eventWaiter{}

type eventWaiter struct {
	cont Continuation
}

// An Event is a manual-reset event with at most one consumer waiting at
// a time.
//
// Setting the event resumes the parked waiter, if any, synchronously on
// the setting goroutine. Awaiting an already-set event does not suspend.
// The zero Event is valid and starts unset.
//
// At most one coroutine may wait at a time; a second concurrent waiter is
// a contract violation and panics. The caller must also ensure Reset never
// races a concurrent Set.
type Event struct {
	state atomic.Pointer[eventWaiter]
}

// Set signals the event. If a coroutine is waiting, it is resumed on the
// calling goroutine before Set returns. Setting an already-set event is
// a no-op.
func (e *Event) Set() {
	old := e.state.Swap(eventSet)
	if old != nil && old != eventSet {
		old.cont.Resume()
	}
}

// Reset returns the event to the unset state. Resetting an unset event is
// a no-op.
func (e *Event) Reset() {
	e.state.CompareAndSwap(eventSet, nil)
}

// Ready reports whether the event is set.
func (e *Event) Ready() bool {
	return e.state.Load() == eventSet
}

// Suspend implements [Awaitable].
func (e *Event) Suspend(c Continuation) bool {
	n := &eventWaiter{cont: c}
	for {
		old := e.state.Load()
		if old == eventSet {
			return false
		}
		if old != nil {
			panic("async(Event): a consumer is already waiting")
		}
		if e.state.CompareAndSwap(nil, n) {
			return true
		}
	}
}

// Wait suspends co until the event is set.
func (e *Event) Wait(co *Coroutine) {
	co.Await(e)
}
