package async

import "iter"

// A Generator is a lazily evaluated synchronous sequence.
//
// The producer does not run until the first call to Next, which resumes it
// up to its first yield; each further Next resumes it to the next yield or
// to completion. A panic in the producer propagates out of the Next call
// that resumed it.
//
// A Generator is for use by one consumer at a time.
type Generator[T any] struct {
	seq  iter.Seq[T]
	next func() (T, bool)
	stop func()
	done bool
}

// NewGenerator creates a generator over seq. Nothing runs until the first
// call to Next.
func NewGenerator[T any](seq iter.Seq[T]) *Generator[T] {
	return &Generator[T]{seq: seq}
}

// Next resumes the producer and returns its next value. It returns ok=false
// once the producer has completed or the generator has been stopped.
func (g *Generator[T]) Next() (v T, ok bool) {
	if g.done {
		return v, false
	}
	if g.next == nil {
		g.next, g.stop = iter.Pull(g.seq)
	}
	v, ok = g.next()
	if !ok {
		g.done = true
	}
	return v, ok
}

// Stop abandons the sequence early, running the producer's pending defers.
// Stopping a finished or never-started generator is a no-op.
func (g *Generator[T]) Stop() {
	if g.done {
		return
	}
	g.done = true
	if g.stop != nil {
		g.stop()
	}
}

// All returns the remaining elements as a range-able sequence. Breaking out
// of the range stops the generator.
func (g *Generator[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := g.Next()
			if !ok {
				return
			}
			if !yield(v) {
				g.Stop()
				return
			}
		}
	}
}

// recItem is one production of a recursive generator frame: either a leaf
// value or a nested generator to splice in.
type recItem[T any] struct {
	value T
	sub   *RecursiveGenerator[T]
}

type recFrame[T any] struct {
	next func() (recItem[T], bool)
	stop func()
}

// A RecursiveYielder is the producer-side handle of
// a [RecursiveGenerator].
type RecursiveYielder[T any] struct {
	yield func(recItem[T]) bool
}

// Yield produces one element. It reports false when the consumer has
// stopped iterating, in which case the producer should return.
func (y *RecursiveYielder[T]) Yield(v T) bool {
	return y.yield(recItem[T]{value: v})
}

// YieldFrom splices all elements of g into the sequence at this point.
// g must be a fresh, not yet iterated generator.
func (y *RecursiveYielder[T]) YieldFrom(g *RecursiveGenerator[T]) bool {
	return y.yield(recItem[T]{sub: g})
}

// A RecursiveGenerator is a [Generator] whose producer may splice nested
// generators into its own sequence with [RecursiveYielder.YieldFrom].
//
// The iterator keeps an explicit chain from the innermost producing frame
// back to the root, so advancing resumes the leaf directly: the cost of one
// step does not grow with nesting depth. The same chain guarantees that
// early termination and escaping panics tear down every nesting level
// exactly once, innermost first.
type RecursiveGenerator[T any] struct {
	body    func(y *RecursiveYielder[T])
	stack   []*recFrame[T]
	started bool
	done    bool
}

// NewRecursiveGenerator creates a recursive generator running body.
// Nothing runs until the first call to Next.
func NewRecursiveGenerator[T any](body func(y *RecursiveYielder[T])) *RecursiveGenerator[T] {
	return &RecursiveGenerator[T]{body: body}
}

func (g *RecursiveGenerator[T]) push(sub *RecursiveGenerator[T]) {
	f := &recFrame[T]{}
	f.next, f.stop = iter.Pull(func(yield func(recItem[T]) bool) {
		sub.body(&RecursiveYielder[T]{yield: yield})
	})
	g.stack = append(g.stack, f)
}

// Next resumes the innermost suspended producer and returns the next
// element of the flattened sequence. A panic escaping any nesting level
// tears down the remaining levels, then propagates to the caller.
func (g *RecursiveGenerator[T]) Next() (v T, ok bool) {
	if g.done {
		return v, false
	}
	if !g.started {
		g.started = true
		g.push(g)
	}
	defer func() {
		if r := recover(); r != nil {
			g.Stop()
			panic(r)
		}
	}()
	for {
		if len(g.stack) == 0 {
			g.done = true
			return v, false
		}
		leaf := g.stack[len(g.stack)-1]
		item, ok := leaf.next()
		if !ok {
			leaf.stop()
			g.stack = g.stack[:len(g.stack)-1]
			continue
		}
		if item.sub != nil {
			g.push(item.sub)
			continue
		}
		return item.value, true
	}
}

// Stop abandons the sequence early, tearing down every suspended nesting
// level exactly once, innermost first.
func (g *RecursiveGenerator[T]) Stop() {
	if g.done {
		return
	}
	g.done = true
	for i := len(g.stack) - 1; i >= 0; i-- {
		g.stack[i].stop()
	}
	g.stack = nil
}

// All returns the remaining elements as a range-able sequence. Breaking out
// of the range stops the generator.
func (g *RecursiveGenerator[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, ok := g.Next()
			if !ok {
				return
			}
			if !yield(v) {
				g.Stop()
				return
			}
		}
	}
}
