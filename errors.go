package async

import "errors"

var (
	// ErrBrokenPromise is returned when awaiting a computation that can no
	// longer deliver a result, such as a task that has been detached.
	ErrBrokenPromise = errors.New("async: broken promise")

	// ErrCanceled is returned when an operation observes a cancellation
	// request on its [CancelToken].
	ErrCanceled = errors.New("async: operation canceled")
)
