package async

import "sync/atomic"

// stopUnwind is panicked through a producer parked at a yield point to run
// its in-scope defers during teardown.
type stopUnwind struct{}

// An AsyncGenerator is a lazily evaluated sequence whose producer runs in
// its own coroutine frame and may suspend on arbitrary awaitables between
// yields, not only at yield points.
//
// The producer does not start until the first [AsyncGenerator.Next]. Next
// resumes the producer; yielding suspends the producer and resumes the
// consumer, so at most one of the two runs at a time.
//
// An AsyncGenerator has a single consumer. [AsyncGenerator.Stop] must not
// be called while a consumer is suspended in Next; that precondition is
// the caller's to uphold, not the runtime's to detect.
type AsyncGenerator[T any] struct {
	co       *Coroutine
	consumer Continuation
	producer Continuation
	value    T
	err      error

	started bool
	done    bool

	// yieldParked is true while the producer is suspended exactly at
	// a yield point, as opposed to mid-operation on some other awaitable.
	yieldParked bool

	// stopReq is read by the producer at yield points; it is an atomic
	// because a mid-operation producer may observe it from whichever
	// goroutine resumes its internal await.
	stopReq  atomic.Bool
	finished chan struct{}
}

// An AsyncYielder is the producer-side handle of an [AsyncGenerator].
type AsyncYielder[T any] struct {
	g *AsyncGenerator[T]
}

// NewAsyncGenerator creates an async generator on e running fn. fn yields
// elements through y and may await freely; its return, or returned error,
// ends the sequence. Nothing runs until the first Next.
func NewAsyncGenerator[T any](e *Executor, fn func(co *Coroutine, y *AsyncYielder[T]) error) *AsyncGenerator[T] {
	g := &AsyncGenerator[T]{finished: make(chan struct{})}
	co := newCoroutine(e)
	g.co = co
	co.body = func() {
		e.addWork(1)
		err, stopped := runProducer(co, g, fn)
		if !stopped {
			g.err = err
		}
		g.done = true
		w := g.consumer
		g.consumer = Continuation{}
		co.finish()
		close(g.finished)
		w.Resume()
		e.workDone()
	}
	return g
}

// runProducer executes fn, separating teardown unwinds from real panics.
func runProducer[T any](co *Coroutine, g *AsyncGenerator[T], fn func(co *Coroutine, y *AsyncYielder[T]) error) (err error, stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stopUnwind); ok {
				stopped = true
				return
			}
			err = newPanicError(r)
		}
	}()
	return fn(co, &AsyncYielder[T]{g: g}), false
}

// Yield hands v to the consumer and suspends the producer until the next
// call to Next. If the generator is being torn down, Yield does not
// return: it unwinds the producer frame, running its defers.
func (y *AsyncYielder[T]) Yield(v T) {
	g := y.g
	if g.stopReq.Load() {
		panic(stopUnwind{})
	}
	g.value = v
	g.co.Await(asyncYieldOp[T]{g})
	if g.stopReq.Load() {
		panic(stopUnwind{})
	}
}

// Next suspends co until the producer yields its next element or finishes.
// It returns ok=false at the end of the sequence, together with the
// producer's error, if any.
func (g *AsyncGenerator[T]) Next(co *Coroutine) (v T, ok bool, err error) {
	if g.done {
		return v, false, g.err
	}
	co.Await(asyncNextOp[T]{g})
	if g.done {
		return v, false, g.err
	}
	return g.value, true, nil
}

// Stop requests teardown of the producer.
//
// If the producer is suspended exactly at a yield point, its frame is torn
// down immediately: the yield unwinds, every in-scope defer runs, and only
// then does Stop return. If the producer is suspended mid-operation, it is
// left to reach its next yield point or completion, and unwinds there.
// Stopping a finished or never-started generator just ends the sequence.
func (g *AsyncGenerator[T]) Stop() {
	if g.done {
		return
	}
	if !g.started {
		g.done = true
		return
	}
	g.stopReq.Store(true)
	if g.yieldParked {
		g.yieldParked = false
		p := g.producer
		g.producer = Continuation{}
		p.Resume()
		<-g.finished
	}
}

type asyncNextOp[T any] struct {
	g *AsyncGenerator[T]
}

func (op asyncNextOp[T]) Ready() bool {
	return op.g.done
}

func (op asyncNextOp[T]) Suspend(c Continuation) bool {
	next, suspended := op.suspendTransfer(c)
	if suspended {
		next.Resume()
	}
	return suspended
}

// suspendTransfer parks the consumer and hands the producer frame to the
// carrier, resuming it where it last yielded (or starting it).
func (op asyncNextOp[T]) suspendTransfer(c Continuation) (Continuation, bool) {
	g := op.g
	g.consumer = c
	g.started = true
	if g.yieldParked {
		g.yieldParked = false
		p := g.producer
		g.producer = Continuation{}
		return p, true
	}
	return Continuation{co: g.co}, true
}

type asyncYieldOp[T any] struct {
	g *AsyncGenerator[T]
}

func (op asyncYieldOp[T]) Ready() bool {
	return false
}

func (op asyncYieldOp[T]) Suspend(c Continuation) bool {
	next, _ := op.suspendTransfer(c)
	next.Resume()
	return true
}

// suspendTransfer parks the producer at its yield point and hands the
// waiting consumer back to the carrier.
func (op asyncYieldOp[T]) suspendTransfer(c Continuation) (Continuation, bool) {
	g := op.g
	g.producer = c
	g.yieldParked = true
	next := g.consumer
	g.consumer = Continuation{}
	return next, true
}
