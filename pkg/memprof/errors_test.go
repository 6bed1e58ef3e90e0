package memprof

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/memprof/pkg/memprof/event"
)

// TestCaptureError_Error tests CaptureError formatting.
func TestCaptureError_Error(t *testing.T) {
	err := &CaptureError{
		SessionID: "cap-1a2b3c4d",
		Op:        "flush",
		Err:       errors.New("drain already in progress"),
	}

	assert.Equal(t, "capture flush in session cap-1a2b3c4d: drain already in progress", err.Error())
}

// TestCaptureError_Unwrap tests CaptureError unwrapping.
func TestCaptureError_Unwrap(t *testing.T) {
	err := &CaptureError{
		SessionID: "cap-00000000",
		Op:        "flush",
		Err:       event.ErrDrainInProgress,
	}

	assert.ErrorIs(t, err, event.ErrDrainInProgress)
}

// TestCallbackError_Error tests CallbackError formatting.
func TestCallbackError_Error(t *testing.T) {
	err := &CallbackError{
		Class: "App::User",
		Event: "free",
		Err:   errors.New("index out of range"),
	}

	assert.Equal(t, "free callback for class App::User: index out of range", err.Error())
}

// TestCallbackError_Unwrap tests CallbackError unwrapping.
func TestCallbackError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")
	err := &CallbackError{
		Class: "Widget",
		Event: "alloc",
		Err:   underlying,
	}

	assert.ErrorIs(t, err, underlying)
}

// TestSentinelErrors_AreDistinct ensures the sentinels never alias.
func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrAlreadyRunning,
		ErrNotRunning,
		ErrCaptureClosed,
		ErrClassRequired,
		ErrClassPoisoned,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
