package async

import "time"

// A Continuation resumes one suspended computation. It is handed to an
// [Awaitable] when a coroutine suspends, and whoever completes the
// awaitable invokes it, exactly once, to carry the computation onward on
// the completing goroutine.
//
// The zero Continuation is inert; resuming it is a no-op.
type Continuation struct {
	co *Coroutine
	fn func()
}

// ContinueFunc adapts f into a Continuation that runs f when resumed.
// It is how non-coroutine code, such as a blocking Wait, parks on an
// awaitable.
func ContinueFunc(f func()) Continuation {
	return Continuation{fn: f}
}

// Resume runs the suspended computation on the calling goroutine until
// its next suspension point.
func (c Continuation) Resume() {
	switch {
	case c.co != nil:
		c.co.carry()
	case c.fn != nil:
		c.fn()
	}
}

// An Awaitable is anything a coroutine can suspend on.
//
// Await first consults Ready; a true result completes the await with no
// suspension. Otherwise the frame parks and Suspend is called with the
// frame's continuation. Suspend returns true if the continuation was
// registered for a later resume, and false if the awaitable completed in
// the meantime, in which case the awaiting frame is resumed inline by its
// current carrier and the continuation must not be invoked.
type Awaitable interface {
	Ready() bool
	Suspend(c Continuation) bool
}

// A transferable is an Awaitable that, on suspension, can hand the
// carrier another continuation to run next: the waiting consumer of
// a yield, or the producer frame of a lazily started task. The carrier
// trampoline runs these handoffs iteratively, so chains of symmetric
// transfers use constant stack.
//
// suspended has the same meaning as in [Awaitable.Suspend]; next is only
// meaningful when suspended is true, and a zero next means no handoff.
type transferable interface {
	Awaitable
	suspendTransfer(c Continuation) (next Continuation, suspended bool)
}

// A Scheduler re-enqueues coroutines onto some execution context.
// [Executor] is the canonical implementation.
type Scheduler interface {
	Schedule(co *Coroutine)
}

// A DelayedScheduler additionally resumes coroutines after a delay,
// honoring cancellation.
type DelayedScheduler interface {
	Scheduler
	ScheduleAfter(co *Coroutine, d time.Duration, token CancelToken) error
}
