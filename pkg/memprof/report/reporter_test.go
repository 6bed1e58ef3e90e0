package report_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/memprof/pkg/memprof/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource hands out numbered snapshots.
type countingSource struct {
	sessionID string
	count     atomic.Uint64
}

func (s *countingSource) Snapshot() report.Snapshot {
	n := s.count.Add(1)
	return report.New(s.sessionID, []report.ClassStat{
		{Class: "Widget", Allocated: 10 * n, Retained: int64(n)},
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReportDeliversToAllSinks(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	first := &captureSink{name: "first"}
	second := &captureSink{name: "second"}

	rep := report.NewReporter(source, []report.Sink{first, second}, report.ReporterConfig{
		Logger: quietLogger(),
	})

	snap := rep.Report(context.Background())
	assert.Equal(t, "cap-rep", snap.SessionID)

	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
	assert.Equal(t, snap.ID, first.last().ID)

	stats := rep.Stats()
	assert.Equal(t, uint64(1), stats.Cycles)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, uint64(0), stats.Failures)
}

func TestReporterDeliversOnTrigger(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	sink := &captureSink{}

	rep := report.NewReporter(source, []report.Sink{sink}, report.ReporterConfig{
		Interval: -1, // manual cycles only
		Logger:   quietLogger(),
	})
	rep.Start(context.Background())
	defer rep.Close()

	rep.Trigger()

	require.Eventually(t, func() bool {
		return sink.callCount() == 1
	}, time.Second, 2*time.Millisecond)
}

func TestTriggersCoalesceWhilePending(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	sink := &captureSink{}

	rep := report.NewReporter(source, []report.Sink{sink}, report.ReporterConfig{
		Interval: -1,
		Logger:   quietLogger(),
	})

	// Queue triggers before the loop starts; they collapse into one
	rep.Trigger()
	rep.Trigger()
	rep.Trigger()

	rep.Start(context.Background())
	defer rep.Close()

	require.Eventually(t, func() bool {
		return sink.callCount() == 1
	}, time.Second, 2*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sink.callCount())
}

func TestReporterRunsOnInterval(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	sink := &captureSink{}

	rep := report.NewReporter(source, []report.Sink{sink}, report.ReporterConfig{
		Interval: 5 * time.Millisecond,
		Logger:   quietLogger(),
	})
	rep.Start(context.Background())
	defer rep.Close()

	require.Eventually(t, func() bool {
		return sink.callCount() >= 2
	}, time.Second, 2*time.Millisecond)
}

func TestReporterContainsSinkPanic(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	healthy := &captureSink{name: "healthy"}
	exploding := sinkFunc{name: "exploding", fn: func(context.Context, report.Snapshot) error {
		panic("sink blew up")
	}}

	rep := report.NewReporter(source, []report.Sink{exploding, healthy}, report.ReporterConfig{
		Logger: quietLogger(),
	})

	rep.Report(context.Background())

	assert.Equal(t, 1, healthy.callCount())

	stats := rep.Stats()
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.Failures)
}

func TestReporterReportsDeliveryOutcomes(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	failing := &captureSink{name: "failing", err: errors.New("disk full")}

	var mu sync.Mutex
	outcomes := make(map[string]error)

	rep := report.NewReporter(source, []report.Sink{failing, &captureSink{name: "fine"}},
		report.ReporterConfig{
			Logger: quietLogger(),
			OnDeliver: func(sink string, err error) {
				mu.Lock()
				defer mu.Unlock()
				outcomes[sink] = err
			},
		})

	rep.Report(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes["failing"])
	assert.NoError(t, outcomes["fine"])
}

func TestReporterRecordsMetrics(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	metrics := &recordingMetrics{}

	rep := report.NewReporter(source, []report.Sink{&captureSink{}}, report.ReporterConfig{
		Logger:  quietLogger(),
		Metrics: metrics,
	})

	rep.Report(context.Background())

	assert.Equal(t, 1, metrics.reportCalls())
}

func TestReporterCloseStopsLoop(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	sink := &captureSink{}

	rep := report.NewReporter(source, []report.Sink{sink}, report.ReporterConfig{
		Interval: -1,
		Logger:   quietLogger(),
	})

	assert.False(t, rep.Running())
	rep.Start(context.Background())
	assert.True(t, rep.Running())

	require.NoError(t, rep.Close())
	assert.False(t, rep.Running())

	// Close is idempotent
	require.NoError(t, rep.Close())

	// Triggers after close reach nobody
	rep.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sink.callCount())
}

func TestReporterStartIsIdempotent(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}
	sink := &captureSink{}

	rep := report.NewReporter(source, []report.Sink{sink}, report.ReporterConfig{
		Interval: -1,
		Logger:   quietLogger(),
	})
	defer rep.Close()

	rep.Start(context.Background())
	rep.Start(context.Background())

	rep.Trigger()
	require.Eventually(t, func() bool {
		return sink.callCount() == 1
	}, time.Second, 2*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sink.callCount())
}

func TestReporterNoSinks(t *testing.T) {
	source := &countingSource{sessionID: "cap-rep"}

	rep := report.NewReporter(source, nil, report.ReporterConfig{Logger: quietLogger()})
	snap := rep.Report(context.Background())

	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, uint64(1), rep.Stats().Cycles)
}

// recordingMetrics counts recorder invocations.
type recordingMetrics struct {
	mu      sync.Mutex
	reports int
}

func (m *recordingMetrics) RecordDrain(context.Context, int, int, time.Duration) {}

func (m *recordingMetrics) RecordDrop(context.Context, string) {}

func (m *recordingMetrics) RecordReport(_ context.Context, _ string, _ time.Duration, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports++
}

func (m *recordingMetrics) RecordSnapshot(context.Context, int, int64) {}

func (m *recordingMetrics) reportCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports
}
