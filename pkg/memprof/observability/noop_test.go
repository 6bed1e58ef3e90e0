package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	// All methods are safe to call and do nothing.
	m.RecordDrain(ctx, 100, 2, time.Millisecond)
	m.RecordDrop(ctx, "allocated")
	m.RecordReport(ctx, "file", time.Millisecond, errors.New("ignored"))
	m.RecordSnapshot(ctx, 5, 1000)
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	t.Run("capture span returns context unchanged", func(t *testing.T) {
		newCtx, span := sm.StartCaptureSpan(ctx, "cap-1")
		assert.Equal(t, ctx, newCtx)
		assert.NotNil(t, span)
		assert.False(t, span.IsRecording())
	})

	t.Run("flush span returns context unchanged", func(t *testing.T) {
		newCtx, span := sm.StartFlushSpan(ctx, 10)
		assert.Equal(t, ctx, newCtx)
		assert.False(t, span.IsRecording())
	})

	t.Run("report span returns context unchanged", func(t *testing.T) {
		newCtx, span := sm.StartReportSpan(ctx, "file", "snap-1")
		assert.Equal(t, ctx, newCtx)
		assert.False(t, span.IsRecording())
	})

	t.Run("end and event are no-ops", func(t *testing.T) {
		_, span := sm.StartCaptureSpan(ctx, "cap-1")
		sm.EndSpanWithError(span, errors.New("ignored"))
		sm.EndSpanWithError(nil, nil)
		sm.AddSpanEvent(ctx, "ignored", attribute.String("k", "v"))
	})
}
