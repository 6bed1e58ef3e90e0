package errors

import "fmt"

// OverflowError indicates a bounded buffer rejected growth.
type OverflowError struct {
	Capacity  int
	Requested int
}

// Error implements the error interface.
func (e *OverflowError) Error() string {
	return fmt.Sprintf("buffer at capacity %d rejected growth to %d", e.Capacity, e.Requested)
}

// DeliveryError indicates a report could not be delivered to a sink.
type DeliveryError struct {
	Sink     string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivering report: %v", e.Err)
	if e.Sink != "" {
		msg = fmt.Sprintf("delivering report via %s sink: %v", e.Sink, e.Err)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s (after %d attempts)", msg, e.Attempts)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
