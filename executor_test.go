package async_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskvar/async"
)

func TestExecutor(t *testing.T) {
	t.Run("Schedule", func(t *testing.T) {
		e := async.NewExecutor(1)

		workerDone := make(chan struct{})
		go func() {
			e.Run()
			close(workerDone)
		}()

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			// Yield the carrier; a dispatch loop resumes us.
			e.Schedule(co)
			return 42, nil
		})

		v, err := task.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)

		// The work count dropped to zero with the task, stopping the
		// executor and releasing the worker.
		<-workerDone
	})
	t.Run("Post", func(t *testing.T) {
		e := async.NewExecutor(1)

		workerDone := make(chan struct{})
		go func() {
			e.Run()
			close(workerDone)
		}()

		ran := make(chan struct{})

		e.AddWork(1)
		e.Post(func() {
			close(ran)
			e.WorkDone()
		})

		<-ran
		<-workerDone
	})
	t.Run("MultipleWorkers", func(t *testing.T) {
		e := async.NewExecutor(4)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.Run()
			}()
		}

		const jobs = 100

		done := make(chan struct{}, jobs)

		e.AddWork(1)
		for range jobs {
			e.AddWork(1)
			e.Post(func() {
				done <- struct{}{}
				e.WorkDone()
			})
		}
		e.WorkDone()

		for range jobs {
			<-done
		}
		wg.Wait()
	})
	t.Run("StopAndReset", func(t *testing.T) {
		e := async.NewExecutor(1)

		e.AddWork(1)

		workerDone := make(chan struct{})
		go func() {
			e.Run()
			close(workerDone)
		}()

		e.Stop()
		<-workerDone

		// Stop keeps pending work; Reset re-arms dispatch where it left
		// off.
		ran := make(chan struct{})
		e.Post(func() {
			close(ran)
			e.WorkDone()
		})

		e.Reset()
		go e.Run()

		<-ran
	})
	t.Run("ImplicitStop", func(t *testing.T) {
		e := async.NewExecutor(1)

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			return 1, nil
		})

		if _, err := task.Wait(); err != nil {
			t.Fatal(err)
		}

		// The only work item completed, so dispatch loops must exit
		// immediately.
		done := make(chan struct{})
		go func() {
			e.Run()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after the work count hit zero.")
		}
	})
}

func TestScheduleAfter(t *testing.T) {
	t.Run("DeadlineOrder", func(t *testing.T) {
		e := async.NewExecutor(1)

		go e.Run()

		var mu sync.Mutex
		var order []time.Duration

		spawn := func(d time.Duration) *async.Task[struct{}] {
			return async.Run(e, func(co *async.Coroutine) (struct{}, error) {
				err := e.ScheduleAfter(co, d, async.CancelToken{})
				mu.Lock()
				order = append(order, d)
				mu.Unlock()
				return struct{}{}, err
			})
		}

		// Started out of deadline order on purpose.
		tasks := []*async.Task[struct{}]{
			spawn(30 * time.Millisecond),
			spawn(10 * time.Millisecond),
			spawn(20 * time.Millisecond),
		}

		for _, task := range tasks {
			_, err := task.Wait()
			require.NoError(t, err)
		}

		require.Equal(t, []time.Duration{
			10 * time.Millisecond,
			20 * time.Millisecond,
			30 * time.Millisecond,
		}, order)
	})
	t.Run("NeverEarly", func(t *testing.T) {
		e := async.NewExecutor(1)

		go e.Run()

		const d = 20 * time.Millisecond

		start := time.Now()

		task := async.Run(e, func(co *async.Coroutine) (time.Duration, error) {
			err := e.ScheduleAfter(co, d, async.CancelToken{})
			return time.Since(start), err
		})

		elapsed, err := task.Wait()
		require.NoError(t, err)
		require.GreaterOrEqual(t, elapsed, d)
	})
	t.Run("Canceled", func(t *testing.T) {
		e := async.NewExecutor(1)

		go e.Run()

		src := async.NewCancelSource()

		task := async.Run(e, func(co *async.Coroutine) (struct{}, error) {
			return struct{}{}, e.ScheduleAfter(co, time.Hour, src.Token())
		})

		require.False(t, task.Ready())

		// Cancellation withdraws the timer; the task resumes promptly
		// rather than at the deadline.
		src.Cancel()

		_, err := task.Wait()
		require.ErrorIs(t, err, async.ErrCanceled)
	})
	t.Run("AlreadyCanceled", func(t *testing.T) {
		e := async.NewExecutor(1)

		src := async.NewCancelSource()
		src.Cancel()

		// No worker is running: a pre-cancelled token fails the operation
		// without ever suspending or arming a timer.
		task := async.Run(e, func(co *async.Coroutine) (struct{}, error) {
			return struct{}{}, e.ScheduleAfter(co, time.Hour, src.Token())
		})

		require.True(t, task.Ready())

		_, err := task.Wait()
		require.ErrorIs(t, err, async.ErrCanceled)
	})
	t.Run("ZeroDelay", func(t *testing.T) {
		e := async.NewExecutor(1)

		go e.Run()

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			err := e.ScheduleAfter(co, 0, async.CancelToken{})
			return 42, err
		})

		v, err := task.Wait()
		require.NoError(t, err)
		require.Equal(t, 42, v)
	})
}
