package route

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a recovered panic value.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes panics raised with an error value, such as a failed type
// assertion.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recovered wraps a value returned by recover together with the current
// stack. Call it from the deferred function that recovered.
func Recovered(p any) *PanicError {
	return &PanicError{Value: p, Stack: debug.Stack()}
}

func panicError(p any) error {
	return Recovered(p)
}
