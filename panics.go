package async

import (
	"fmt"
	"runtime/debug"
)

// A PanicError is the stored form of a panic that escaped a task or
// generator body. It carries the recovered value and the stack trace
// captured at recovery time.
//
// Awaiting a computation whose body panicked yields a *PanicError as
// the computation's error.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.Value, p.Stack)
}

// Unwrap makes an underlying error value available to [errors.Is] and
// [errors.As] when the panic value was itself an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
