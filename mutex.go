package async

import "sync/atomic"

// muLockedNoWaiters is the state of a held mutex with an empty wait list.
// A nil state means unlocked; any other pointer is the newest waiter.
var muLockedNoWaiters = &muWaiter{}

type muWaiter struct {
	cont Continuation
	next *muWaiter
}

// A Mutex is a mutual exclusion lock for coroutines. A failed acquisition
// never blocks the calling goroutine: the coroutine suspends and enqueues
// itself on an intrusive wait list with a compare-and-swap, and [Mutex.Unlock]
// transfers ownership by resuming the next waiter.
//
// The zero Mutex is unlocked and ready for use. The order in which
// contending waiters acquire the lock is unspecified.
type Mutex struct {
	state atomic.Pointer[muWaiter]

	// waiters is the dequeue side of the wait list, oldest first. It is
	// only ever touched by the current lock holder, so it needs no
	// synchronization of its own.
	waiters *muWaiter
}

// TryLock attempts to acquire the lock without suspending and reports
// whether it succeeded.
func (m *Mutex) TryLock() bool {
	return m.state.CompareAndSwap(nil, muLockedNoWaiters)
}

// Lock suspends co until it holds the lock. If the lock is free, Lock
// acquires it without suspending.
func (m *Mutex) Lock(co *Coroutine) {
	co.Await(muLockOp{m})
}

// LockScoped is like Lock but returns a guard that releases the lock
// exactly once:
//
//	g := m.LockScoped(co)
//	defer g.Unlock()
func (m *Mutex) LockScoped(co *Coroutine) *MutexGuard {
	m.Lock(co)
	return &MutexGuard{m: m}
}

// Unlock releases the lock. If coroutines are waiting, ownership transfers
// directly to the next waiter, which is resumed on the calling goroutine.
// Unlocking an unheld mutex is a contract violation and panics.
func (m *Mutex) Unlock() {
	w := m.waiters
	if w == nil {
		if m.state.CompareAndSwap(muLockedNoWaiters, nil) {
			return
		}
		// Waiters have accumulated in state, newest first. Claim them and
		// reverse into the holder-side list so handoff is oldest first.
		head := m.state.Swap(muLockedNoWaiters)
		if head == nil || head == muLockedNoWaiters {
			panic("async(Mutex): unlock of unlocked mutex")
		}
		for head != nil {
			next := head.next
			head.next = w
			w = head
			head = next
		}
	}
	m.waiters = w.next
	w.cont.Resume()
}

// A MutexGuard releases its mutex once. The zero guard is inert.
type MutexGuard struct {
	m *Mutex
}

// Unlock releases the guarded mutex. Calls after the first are no-ops.
func (g *MutexGuard) Unlock() {
	if m := g.m; m != nil {
		g.m = nil
		m.Unlock()
	}
}

type muLockOp struct {
	m *Mutex
}

// Ready attempts the non-suspending fast path; a successful try-lock means
// the await completes immediately with the lock held.
func (op muLockOp) Ready() bool {
	return op.m.TryLock()
}

func (op muLockOp) Suspend(c Continuation) bool {
	n := &muWaiter{cont: c}
	for {
		old := op.m.state.Load()
		if old == nil {
			// Lock released between the try-lock and now; take it and
			// resume inline.
			if op.m.state.CompareAndSwap(nil, muLockedNoWaiters) {
				return false
			}
			continue
		}
		if old == muLockedNoWaiters {
			n.next = nil
		} else {
			n.next = old
		}
		if op.m.state.CompareAndSwap(old, n) {
			return true
		}
	}
}
