package lazy

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	ErrDoubleInit   = errors.New("lazy: slot written twice")
	ErrGuardNotHeld = errors.New("lazy: guard released while unlocked")
	ErrClosed       = errors.New("lazy: cell used after close")
	ErrPoisoned     = errors.New("lazy: cell poisoned")
	ErrInitAborted  = errors.New("initializer exited without returning")
)

// PoisonError is the panic value of every access to a cell whose initializer
// panicked or exited early.
type PoisonError struct {
	// Value is what the initializer panicked with, or ErrInitAborted.
	Value any
	Stack []byte
}

func newPoisonError(r any) *PoisonError {
	if r == nil {
		r = ErrInitAborted
	}
	return &PoisonError{
		Value: r,
		Stack: debug.Stack(),
	}
}

func (e *PoisonError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPoisoned, e.Value)
}

func (e *PoisonError) Is(target error) bool {
	return target == ErrPoisoned
}

// Unwrap exposes the initializer's panic value when it was an error.
func (e *PoisonError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
