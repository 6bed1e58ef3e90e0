// Package memprof provides allocation profiling for embedded managed runtimes.
package memprof

import (
	"errors"
	"fmt"
)

// Sentinel errors for the capture lifecycle.
var (
	// ErrAlreadyRunning indicates Start() was called on a running capture.
	ErrAlreadyRunning = errors.New("capture already running")

	// ErrNotRunning indicates Stop() was called on a capture that is not running.
	ErrNotRunning = errors.New("capture not running")

	// ErrCaptureClosed indicates an operation on a closed capture.
	ErrCaptureClosed = errors.New("capture closed")
)

// Sentinel errors for class tracking.
var (
	// ErrClassRequired indicates Track() was called with an empty class name.
	ErrClassRequired = errors.New("class name required")

	// ErrClassPoisoned indicates the class was quarantined after repeated
	// handler failures and can no longer be tracked.
	ErrClassPoisoned = errors.New("class poisoned")
)

// CaptureError wraps errors from capture operations.
type CaptureError struct {
	// SessionID is the capture session where the operation failed.
	SessionID string
	// Op is the operation that failed ("create store", "flush", "close store").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s in session %s: %v", e.Op, e.SessionID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// CallbackError wraps a failure from a per-class tracking callback.
// The drain pass contains it like any other handler fault: the record
// is consumed, the fault is counted, and the pass continues.
type CallbackError struct {
	// Class is the tracked class whose callback failed.
	Class string
	// Event is the lifecycle event being handled ("alloc", "free").
	Event string
	// Err is the underlying error. Panics inside a callback are
	// converted to errors before wrapping.
	Err error
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s callback for class %s: %v", e.Event, e.Class, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CallbackError) Unwrap() error {
	return e.Err
}
