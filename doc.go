// Package async is an asynchronous execution runtime: computation handles
// for work that may complete later, generators, cooperative cancellation,
// and synchronization primitives that suspend instead of blocking.
//
// Go already has goroutines, so the point of this library is not
// concurrency itself. It is the shape of the concurrency: explicit handles
// for eventual results, explicit suspension points, and an executor that
// decides which goroutine resumes which suspended computation and when.
//
// # Coroutines and Carriers
//
// Every computation here runs inside a coroutine frame. A frame is backed
// by a goroutine, but that goroutine only runs while a carrier drives it:
// resuming a frame hands control over and blocks the carrier until the
// frame suspends again or completes. A frame therefore runs on exactly one
// goroutine at a time, while possibly being carried by a different one
// after every suspension. This is the same migration a thread-pooled
// runtime performs, expressed with a channel handoff.
//
// Suspension happens only at await points. An [Awaitable] is the contract
// between a suspension point and whatever completes it; its two-phase
// ready/suspend protocol resolves, with a single atomic transition, the
// race between registering a continuation and concurrent completion on
// another goroutine. Anything may implement it, including external
// completion sources such as an I/O layer.
//
// # Tasks
//
// [Task] starts eagerly and runs until its first suspension before the
// constructor returns. [LazyTask] does not run at all until first awaited;
// since its single awaiter is already suspended when the body starts,
// completion resumes the awaiter directly. Both are single-owner,
// single-awaiter handles. [SharedTask] and [SharedLazyTask] are their
// multi-consumer counterparts: copyable handles onto one completion node
// with a lock-free waiter list, every awaiter resumed exactly once with
// the same result.
//
// Chains of synchronously completing computations are resumed through
// a trampoline in the carrier, so stack depth stays constant no matter how
// long a chain grows.
//
// # Generators
//
// [Generator] is a plain lazy sequence; [RecursiveGenerator] additionally
// splices nested generators into its output while resuming the innermost
// producer in constant time per element; [AsyncGenerator] produces
// elements from a coroutine frame that may await between yields, and tears
// itself down through its own defers when stopped at a yield point.
//
// # Cancellation
//
// A [CancelSource] flips a one-way flag observed by any number of
// [CancelToken] values; a [CancelRegistration] attaches a callback that
// runs exactly once when cancellation is requested. Deregistration
// rendezvouses with a concurrently running callback, so captured state is
// never used after the deregistering side has moved on. Cancellation is
// purely cooperative: nothing is preempted, flags are checked and
// callbacks fired, nothing more.
//
// # The Executor
//
// An [Executor] owns a ready queue and a timer queue and exposes one
// dispatch operation, [Executor.Run], that any number of worker goroutines
// may call: due timers are promoted, ready continuations are popped and
// resumed. [Executor.Schedule] re-enqueues the calling coroutine,
// [Executor.ScheduleAfter] resumes it after a delay or on cancellation,
// and [Executor.Post] lets external collaborators hand completions to the
// dispatch loops. Work tracking stops the executor when the count of
// outstanding work reaches zero.
//
// # Contracts
//
// Misuse that the library can detect at a call site (awaiting a
// single-awaiter task twice while pending, a second waiter on an [Event],
// unlocking an unheld [Mutex]) panics rather than returning an error:
// these are programming defects, not runtime conditions. Recoverable
// outcomes are errors: a task's own error returns verbatim from Await,
// [ErrCanceled] reports observed cancellation, [ErrBrokenPromise] reports
// awaiting a detached computation, and a panic in a task body surfaces as
// a [*PanicError] carrying the captured stack.
package async
