package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for store construction and draining.
var (
	// ErrDrainInProgress indicates Flush was called while a drain was
	// already running. Flush promises that nothing remains queued when
	// it returns, a guarantee that cannot be honored mid-drain.
	ErrDrainInProgress = errors.New("drain already in progress")

	// ErrNilScheduler indicates NewStore was called without a scheduler.
	ErrNilScheduler = errors.New("scheduler is required")

	// ErrNoProcessor indicates a record's context does not implement
	// Processor, so the record had no dispatch target.
	ErrNoProcessor = errors.New("record context does not implement Processor")

	// ErrStoreClosed indicates the store's backing queues were released.
	ErrStoreClosed = errors.New("event store closed")
)

// RegistrationError reports a failed deferred-callback registration.
// The store cannot function without its safe-point hook, so
// construction aborts with this error.
type RegistrationError struct {
	// Err is the scheduler's error.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registering drain callback: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a record's processor.
// It includes the stack trace for debugging.
type PanicError struct {
	// Kind is the kind of the record being dispatched.
	Kind Kind
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("processor panicked on %s record: %v", e.Kind, e.Value)
}

// DispatchError wraps a fault contained during a drain pass.
type DispatchError struct {
	// Kind is the kind of the record that faulted.
	Kind Kind
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatching %s record: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DispatchError) Unwrap() error {
	return e.Err
}
