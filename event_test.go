package async_test

import (
	"testing"

	"github.com/taskvar/async"
)

func TestEvent(t *testing.T) {
	t.Run("SetBeforeWait", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ev async.Event
		ev.Set()

		if !ev.Ready() {
			t.Fatal("event is not ready after Set.")
		}

		// Awaiting a set event completes without suspending.
		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			ev.Wait(co)
			return 1, nil
		})

		if !task.Ready() {
			t.Error("waiter of a set event did not complete synchronously.")
		}
	})
	t.Run("WaitThenSet", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ev async.Event

		var order []string

		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			order = append(order, "before")
			ev.Wait(co)
			order = append(order, "after")
			return 1, nil
		})

		if task.Ready() {
			t.Fatal("waiter completed before Set.")
		}

		// Set resumes the parked waiter on the calling goroutine.
		ev.Set()

		if !task.Ready() {
			t.Fatal("waiter did not complete after Set.")
		}
		if len(order) != 2 || order[0] != "before" || order[1] != "after" {
			t.Errorf("unexpected resume order: %v", order)
		}
	})
	t.Run("SetTwice", func(t *testing.T) {
		var ev async.Event
		ev.Set()
		ev.Set()

		if !ev.Ready() {
			t.Fatal("event is not ready after double Set.")
		}
	})
	t.Run("Reset", func(t *testing.T) {
		e := async.NewExecutor(1)

		var ev async.Event
		ev.Set()
		ev.Reset()

		if ev.Ready() {
			t.Fatal("event is ready after Reset.")
		}

		// The event is reusable: a fresh waiter parks and a fresh Set
		// resumes it.
		task := async.Run(e, func(co *async.Coroutine) (int, error) {
			ev.Wait(co)
			return 1, nil
		})

		if task.Ready() {
			t.Fatal("waiter completed while the event was reset.")
		}

		ev.Set()

		if !task.Ready() {
			t.Error("waiter did not complete after the second Set.")
		}
	})
	t.Run("ResetUnset", func(t *testing.T) {
		var ev async.Event
		ev.Reset()

		if ev.Ready() {
			t.Fatal("event became ready from Reset alone.")
		}
	})
}
