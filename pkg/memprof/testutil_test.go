package memprof

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/memprof/pkg/memprof/host"
)

// Shared helpers for the root package tests.

// testObject stands in for a host-owned value. Pointer identity makes
// each one a distinct comparable reference.
type testObject struct {
	id int
}

// objects creates n distinct object references.
func objects(n int) []host.Ref {
	refs := make([]host.Ref, n)
	for i := range refs {
		refs[i] = &testObject{id: i}
	}
	return refs
}

// newTestCapture creates a capture on a private store driven by its
// own scheduler, so the test controls exactly when drains run.
func newTestCapture(t *testing.T, opts ...CaptureOption) (*Capture, *host.CooperativeScheduler) {
	t.Helper()
	sched := host.NewCooperativeScheduler()
	capture, err := NewCapture(append([]CaptureOption{WithScheduler(sched)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { capture.Close() })
	return capture, sched
}

// startedCapture is newTestCapture with a tracked class and capture
// already running.
func startedCapture(t *testing.T, class string, trackOpts ...TrackOption) (*Capture, *host.CooperativeScheduler) {
	t.Helper()
	capture, sched := newTestCapture(t)
	require.NoError(t, capture.Track(class, trackOpts...))
	require.NoError(t, capture.Start())
	return capture, sched
}
