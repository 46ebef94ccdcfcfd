package async

import (
	"sync"
	"sync/atomic"
)

// cancelCell is the shared state behind one source and any number of
// tokens: a one-way requested flag and the registered callbacks.
//
// The flag is an atomic so that Canceled checks never contend; the mutex
// guards only registration bookkeeping (insert, remove, snapshot), never
// a callback invocation.
type cancelCell struct {
	requested atomic.Bool
	mu        sync.Mutex
	regs      map[*CancelRegistration]struct{}
}

// A CancelSource owns the authority to request cancellation. Create one
// with [NewCancelSource], hand out tokens with [CancelSource.Token], and
// request cancellation with [CancelSource.Cancel].
type CancelSource struct {
	cell *cancelCell
}

// NewCancelSource creates a new, not yet cancelled source.
func NewCancelSource() *CancelSource {
	return &CancelSource{cell: &cancelCell{regs: make(map[*CancelRegistration]struct{})}}
}

// Cancel requests cancellation: the flag flips exactly once and every
// registered callback runs exactly once, on the calling goroutine, in
// unspecified order. Calling Cancel again is a no-op.
//
// Cancellation is purely cooperative. Nothing is preempted; token holders
// observe the flag at their next check and registered callbacks do the
// prompt work (such as withdrawing a timer). A callback that panics
// crashes the process; panics are deliberately not recovered here.
func (s *CancelSource) Cancel() {
	cell := s.cell
	if !cell.requested.CompareAndSwap(false, true) {
		return
	}
	cell.mu.Lock()
	regs := make([]*CancelRegistration, 0, len(cell.regs))
	for r := range cell.regs {
		regs = append(regs, r)
		delete(cell.regs, r)
	}
	cell.mu.Unlock()
	for _, r := range regs {
		r.fn()
		close(r.done)
	}
}

// Canceled reports whether cancellation has been requested.
func (s *CancelSource) Canceled() bool {
	return s.cell.requested.Load()
}

// Token returns a read-only observer of this source.
func (s *CancelSource) Token() CancelToken {
	return CancelToken{cell: s.cell}
}

// A CancelToken observes the cancellation state of its source.
//
// The zero CancelToken has no backing source: it can never be cancelled,
// which [CancelToken.CanBeCanceled] exposes so operations can skip their
// cancellation handling entirely.
type CancelToken struct {
	cell *cancelCell
}

// CanBeCanceled reports whether the token has a backing source at all.
func (t CancelToken) CanBeCanceled() bool {
	return t.cell != nil
}

// Canceled reports whether cancellation has been requested. It never
// returns an error and never blocks.
func (t CancelToken) Canceled() bool {
	return t.cell != nil && t.cell.requested.Load()
}

// Err returns [ErrCanceled] if cancellation has been requested and nil
// otherwise, for use at cooperative check points:
//
//	if err := token.Err(); err != nil {
//		return zero, err
//	}
func (t CancelToken) Err() error {
	if t.Canceled() {
		return ErrCanceled
	}
	return nil
}

// Register attaches fn to the token's cell. If cancellation has already
// been requested, fn runs synchronously before Register returns and
// nothing is stored. Otherwise fn will run exactly once, on the goroutine
// that calls [CancelSource.Cancel].
//
// fn must not panic; a panicking callback crashes the process.
func (t CancelToken) Register(fn func()) *CancelRegistration {
	if t.cell == nil || fn == nil {
		return &CancelRegistration{}
	}
	r := &CancelRegistration{cell: t.cell, fn: fn, done: make(chan struct{})}
	t.cell.mu.Lock()
	if t.cell.requested.Load() {
		t.cell.mu.Unlock()
		fn()
		return &CancelRegistration{}
	}
	t.cell.regs[r] = struct{}{}
	t.cell.mu.Unlock()
	return r
}

// A CancelRegistration ties one callback to one token. Unregister it when
// the state the callback captures is about to go away.
type CancelRegistration struct {
	cell     *cancelCell
	fn       func()
	done     chan struct{}
	detached bool
}

// Unregister removes the callback. If a concurrent [CancelSource.Cancel]
// is invoking this very callback on another goroutine, Unregister blocks
// until that invocation finishes, so that after Unregister returns the
// callback is neither running nor ever going to run, and whatever it
// captured may be freed.
//
// A callback must not call Unregister on its own registration; doing so
// would deadlock on that rendezvous.
func (r *CancelRegistration) Unregister() {
	if r == nil || r.cell == nil {
		return
	}
	r.cell.mu.Lock()
	if r.detached {
		r.cell.mu.Unlock()
		return
	}
	if _, ok := r.cell.regs[r]; ok {
		delete(r.cell.regs, r)
		r.detached = true
		r.cell.mu.Unlock()
		return
	}
	r.cell.mu.Unlock()
	<-r.done
}
