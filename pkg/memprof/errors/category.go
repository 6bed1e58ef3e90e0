// Package errors provides error categorization and redelivery policies
// for the profiler.
//
// The package implements a layered approach:
//   - Categorization: classify errors for appropriate handling
//   - Retry: redeliver reports past transient failures with exponential backoff
//   - Containment: profiling errors degrade fidelity, never the host
package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/memprof/pkg/memprof/event"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: sink write failures, storage timeouts.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: invalid configuration, a store at capacity.
	CategoryPermanent

	// CategoryMisuse indicates the caller broke an API contract.
	// Examples: flushing during a drain, closing a draining store.
	CategoryMisuse
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryMisuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Misuse creates a misuse error.
func Misuse(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryMisuse, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	// Check for already-categorized errors
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	// Contract violations on the event store
	if errors.Is(err, event.ErrDrainInProgress) || errors.Is(err, event.ErrStoreClosed) {
		return CategoryMisuse
	}

	// A buffer that rejected growth stays full until something drains it
	var overflowErr *OverflowError
	if errors.As(err, &overflowErr) {
		return CategoryPermanent
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}

	// Sink delivery is I/O; failures are usually transient
	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		return CategoryTransient
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsMisuse reports whether the error is an API contract violation.
func IsMisuse(err error) bool {
	return Categorize(err) == CategoryMisuse
}
