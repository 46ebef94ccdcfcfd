package async_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/taskvar/async"
)

func TestTask(t *testing.T) {
	t.Run("Value", func(t *testing.T) {
		e := async.NewExecutor(1)

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			return 42, nil
		})

		v, err := task.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})
	t.Run("Error", func(t *testing.T) {
		e := async.NewExecutor(1)

		errBoom := errors.New("boom")

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			return 0, errBoom
		})

		_, err := task.Wait()
		require.ErrorIs(t, err, errBoom)
	})
	t.Run("EagerStart", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ran bool

		task := async.Run(e, func(co *async.Coroutine) (struct{}, error) {
			ran = true
			return struct{}{}, nil
		})

		// A body with no suspension points completes before Run returns.
		if !ran {
			t.Error("eager task did not run before the constructor returned.")
		}
		if !task.Ready() {
			t.Error("task is not ready after completing synchronously.")
		}
	})
	t.Run("AwaitFromTask", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ev async.Event

		inner := async.Run(e, func(co *async.Coroutine) (string, error) {
			ev.Wait(co)
			return "done", nil
		})
		outer := async.Run(e, func(co *async.Coroutine) (string, error) {
			return inner.Await(co)
		})

		if outer.Ready() {
			t.Fatal("outer task completed before the event was set.")
		}

		ev.Set()

		v, err := outer.Wait()
		require.NoError(t, err)
		require.Equal(t, "done", v)
	})
	t.Run("AwaitCompleted", func(t *testing.T) {
		e := async.NewExecutor(1)

		inner := async.Run(e, func(co *async.Coroutine) (int, error) {
			return 7, nil
		})

		// Awaiting an already-completed task never suspends and may be
		// repeated freely.
		for range 3 {
			outer := async.Run(e, func(co *async.Coroutine) (int, error) {
				return inner.Await(co)
			})
			v, err := outer.Wait()
			require.NoError(t, err)
			require.Equal(t, 7, v)
		}
	})
	t.Run("Panic", func(t *testing.T) {
		e := async.NewExecutor(1)

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			panic("blown fuse")
		})

		_, err := task.Wait()

		var pe *async.PanicError
		require.ErrorAs(t, err, &pe)
		require.Equal(t, "blown fuse", pe.Value)
		require.NotEmpty(t, pe.Stack)
	})
	t.Run("PanicWithError", func(t *testing.T) {
		e := async.NewExecutor(1)

		errBoom := errors.New("boom")

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			panic(errBoom)
		})

		_, err := task.Wait()
		require.ErrorIs(t, err, errBoom)
	})
	t.Run("Detach", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ran atomic.Bool

		var ev async.Event

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			ev.Wait(co)
			ran.Store(true)
			return 1, nil
		})

		task.Detach()

		_, err := task.Wait()
		require.ErrorIs(t, err, async.ErrBrokenPromise)
		require.ErrorIs(t, task.WhenReady(nil), async.ErrBrokenPromise)

		// The body keeps running to completion regardless.
		ev.Set()

		if !ran.Load() {
			t.Error("detached task did not run to completion.")
		}
	})
	t.Run("WhenReady", func(t *testing.T) {
		e := async.NewExecutor(1)

		errBoom := errors.New("boom")

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			return 0, errBoom
		})

		outer := async.Run(e, func(co *async.Coroutine) (struct{}, error) {
			// WhenReady does not surface the task's own error.
			return struct{}{}, task.WhenReady(co)
		})

		_, err := outer.Wait()
		require.NoError(t, err)
	})
	t.Run("WhenAll", func(t *testing.T) {
		e := async.NewExecutor(1)

		errA := errors.New("a failed")
		errB := errors.New("b failed")

		tasks := []*async.Task[int]{
			async.Run(e, func(co *async.Coroutine) (int, error) { return 1, nil }),
			async.Run(e, func(co *async.Coroutine) (int, error) { return 0, errA }),
			async.Run(e, func(co *async.Coroutine) (int, error) { return 3, nil }),
			async.Run(e, func(co *async.Coroutine) (int, error) { return 0, errB }),
		}

		outer := async.Run(e, func(co *async.Coroutine) ([]int, error) {
			return async.WhenAll(co, tasks...)
		})

		vs, err := outer.Wait()
		require.Equal(t, []int{1, 0, 3, 0}, vs)
		require.ErrorIs(t, err, errA)
		require.ErrorIs(t, err, errB)
		require.Len(t, multierr.Errors(err), 2)
	})
}

func TestLazyTask(t *testing.T) {
	t.Run("NeverAwaitedNeverRuns", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ran atomic.Bool

		task := async.Lazy(e, func(co *async.Coroutine) (int, error) {
			ran.Store(true)
			return 1, nil
		})

		if task.Ready() {
			t.Fatal("lazy task is ready before being awaited.")
		}
		if ran.Load() {
			t.Fatal("lazy task ran before being awaited.")
		}

		task.Detach()

		if ran.Load() {
			t.Error("detached lazy task ran.")
		}
	})
	t.Run("StartsOnFirstAwait", func(t *testing.T) {
		e := async.NewExecutor(1)

		var runs atomic.Int32

		task := async.Lazy(e, func(co *async.Coroutine) (int, error) {
			runs.Add(1)
			return 42, nil
		})

		v, err := task.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)
		require.Equal(t, int32(1), runs.Load())

		// The result remains readable after completion.
		v, err = task.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)
		require.Equal(t, int32(1), runs.Load())
	})
	t.Run("AwaitFromTask", func(t *testing.T) {
		e := async.NewExecutor(1)

		inner := async.Lazy(e, func(co *async.Coroutine) (int, error) {
			return 21, nil
		})
		outer := async.Run(e, func(co *async.Coroutine) (int, error) {
			v, err := inner.Await(co)
			return v * 2, err
		})

		v, err := outer.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})
	t.Run("DeepChain", func(t *testing.T) {
		e := async.NewExecutor(1)

		// A long chain of lazily started, synchronously completing tasks.
		// Both the start sweep (root to leaf) and the completion sweep
		// (leaf to root) must run in constant stack.
		const depth = 10000

		next := async.Lazy(e, func(co *async.Coroutine) (int, error) {
			return 0, nil
		})
		for range depth {
			prev := next
			next = async.Lazy(e, func(co *async.Coroutine) (int, error) {
				v, err := prev.Await(co)
				return v + 1, err
			})
		}

		v, err := next.Wait()
		require.NoError(t, err)
		require.Equal(t, depth, v)
	})
	t.Run("Error", func(t *testing.T) {
		e := async.NewExecutor(1)

		errBoom := errors.New("boom")

		task := async.Lazy(e, func(co *async.Coroutine) (int, error) {
			return 0, errBoom
		})

		_, err := task.Wait()
		require.ErrorIs(t, err, errBoom)
	})
}
