package async

const (
	statusNotStarted = iota
	statusRunning
	statusSuspended
	statusDone
)

// A Coroutine is an execution of code that can suspend, similar to
// a goroutine but cooperative: it only ever runs while a carrier drives it.
//
// A coroutine frame is backed by a goroutine that is parked whenever the
// frame is not running. Resuming the frame hands control to that goroutine
// and blocks the carrier until the frame suspends again or completes, so
// the frame always runs on exactly one carrier at a time, though it may be
// carried by a different goroutine after every suspension.
//
// Code running inside a frame receives its Coroutine as an argument
// (see [Run], [Lazy] and friends) and suspends by awaiting: either through
// the typed await methods of the handle types, or directly through
// [Coroutine.Await] for any [Awaitable].
type Coroutine struct {
	executor *Executor
	resumec  chan struct{}
	yieldc   chan struct{}
	body     func()
	pending  Awaitable
	status   int32
	launched bool
}

func newCoroutine(e *Executor) *Coroutine {
	return &Coroutine{
		executor: e,
		resumec:  make(chan struct{}),
		yieldc:   make(chan struct{}),
	}
}

// Executor returns the [Executor] this coroutine was spawned on.
func (co *Coroutine) Executor() *Executor {
	return co.executor
}

// Await suspends co until a completes.
//
// If a is already completed, Await returns without suspending. Otherwise
// the frame parks and its continuation is registered with a; whichever
// goroutine completes a then carries co until its next suspension point.
//
// Await must only be called from within co's own body function.
func (co *Coroutine) Await(a Awaitable) {
	if a == nil || a.Ready() {
		return
	}
	co.pending = a
	co.status = statusSuspended
	co.yieldc <- struct{}{}
	<-co.resumec
	co.status = statusRunning
}

// finish marks the frame completed and releases the current carrier.
// The body goroutine keeps running after finish returns; completion duties
// that resume other frames (draining waiter lists) must happen after finish
// so that they never run while a carrier still holds this frame.
func (co *Coroutine) finish() {
	co.status = statusDone
	co.yieldc <- struct{}{}
}

// carry resumes co and runs it until it suspends or completes.
//
// carry is the trampoline: an awaitable that turns out to be completed by
// the time the frame suspends is resumed inline as the next loop iteration,
// and an awaitable that starts a producer frame (lazy tasks, generators)
// hands that frame back for the loop to carry next. Stack depth stays
// constant regardless of how long such chains grow.
func (co *Coroutine) carry() {
	cur := co
	for {
		if !cur.launched {
			cur.launched = true
			body := cur.body
			resumec := cur.resumec
			go func() {
				<-resumec
				body()
			}()
		}
		cur.status = statusRunning
		cur.resumec <- struct{}{}
		<-cur.yieldc
		if cur.status == statusDone {
			return
		}

		a := cur.pending
		cur.pending = nil
		c := Continuation{co: cur}

		if t, ok := a.(transferable); ok {
			next, suspended := t.suspendTransfer(c)
			if !suspended {
				continue
			}
			switch {
			case next.co != nil:
				cur = next.co
				continue
			case next.fn != nil:
				next.fn()
			}
			return
		}

		if !a.Suspend(c) {
			continue
		}
		return
	}
}
