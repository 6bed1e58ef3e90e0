package report

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	mperrors "github.com/randalmurphal/memprof/pkg/memprof/errors"
	"github.com/randalmurphal/memprof/pkg/memprof/filter"
	"github.com/randalmurphal/memprof/pkg/memprof/template"
)

// Sink delivers snapshots to a destination.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Name identifies the sink in logs, metrics, and errors.
	Name() string

	// Deliver publishes one snapshot. Failures should be wrapped in
	// *errors.DeliveryError so callers can categorize them.
	Deliver(ctx context.Context, snap Snapshot) error
}

// LogSink writes snapshot summaries to a structured logger. Totals go
// out at info level, per-class rows at debug.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, snap Snapshot) error {
	s.logger.InfoContext(ctx, "memory snapshot",
		"snapshot_id", snap.ID,
		"session_id", snap.SessionID,
		"classes", snap.Totals.Classes,
		"allocated", snap.Totals.Allocated,
		"freed", snap.Totals.Freed,
		"retained", snap.Totals.Retained,
	)
	for _, cs := range snap.Classes {
		s.logger.DebugContext(ctx, "class statistics",
			"snapshot_id", snap.ID,
			"class", cs.Class,
			"allocated", cs.Allocated,
			"freed", cs.Freed,
			"retained", cs.Retained,
		)
	}
	return nil
}

// StoreSink persists snapshots to a Store.
type StoreSink struct {
	store Store
}

// NewStoreSink creates a sink backed by the given store.
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

// Name implements Sink.
func (s *StoreSink) Name() string { return "store" }

// Deliver implements Sink.
func (s *StoreSink) Deliver(_ context.Context, snap Snapshot) error {
	if err := s.store.Save(snap); err != nil {
		return &mperrors.DeliveryError{Sink: s.Name(), Err: err}
	}
	return nil
}

// DefaultPathTemplate places snapshot files under per-session directories.
const DefaultPathTemplate = "{{session}}/{{snapshot}}.json"

// FileSink writes each snapshot to a JSON file under a base directory.
// Relative paths come from a template expanded with {{session}},
// {{snapshot}}, and {{date}}.
type FileSink struct {
	dir      string
	pathTmpl string
	expander *template.Expander
}

// NewFileSink creates a file sink rooted at dir. An empty pathTemplate
// uses DefaultPathTemplate.
func NewFileSink(dir, pathTemplate string) *FileSink {
	if pathTemplate == "" {
		pathTemplate = DefaultPathTemplate
	}
	return &FileSink{
		dir:      dir,
		pathTmpl: pathTemplate,
		expander: template.NewExpander(template.WithMissingAction(template.MissingError)),
	}
}

// Name implements Sink.
func (s *FileSink) Name() string { return "file" }

// Deliver implements Sink.
func (s *FileSink) Deliver(_ context.Context, snap Snapshot) error {
	rel, err := s.expander.Expand(s.pathTmpl, map[string]any{
		"session":  snap.SessionID,
		"snapshot": snap.ID,
		"date":     snap.TakenAt.Format("2006-01-02"),
	})
	if err != nil {
		return &mperrors.DeliveryError{Sink: s.Name(), Err: err}
	}

	path := filepath.Join(s.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &mperrors.DeliveryError{Sink: s.Name(), Err: err}
	}

	data, err := snap.Encode()
	if err != nil {
		return &mperrors.DeliveryError{Sink: s.Name(), Err: err}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &mperrors.DeliveryError{Sink: s.Name(), Err: err}
	}
	return nil
}

// RetrySink wraps another sink with a retry policy. Transient delivery
// failures back off and retry; permanent and misuse failures return
// immediately.
type RetrySink struct {
	sink   Sink
	policy mperrors.Policy
}

// NewRetrySink wraps sink with the given policy.
func NewRetrySink(sink Sink, policy mperrors.Policy) *RetrySink {
	return &RetrySink{sink: sink, policy: policy}
}

// Name implements Sink.
func (s *RetrySink) Name() string { return s.sink.Name() }

// Deliver implements Sink.
func (s *RetrySink) Deliver(ctx context.Context, snap Snapshot) error {
	result := mperrors.RetryContext(ctx, s.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.sink.Deliver(ctx, snap)
	})
	if result.Err == nil {
		return nil
	}

	var delivery *mperrors.DeliveryError
	if errors.As(result.Err, &delivery) {
		delivery.Attempts = result.Attempts
		return result.Err
	}
	return &mperrors.DeliveryError{Sink: s.Name(), Attempts: result.Attempts, Err: result.Err}
}

// FilterSink restricts which class rows a wrapped sink sees. Rejected
// rows are dropped and totals recomputed before delegation.
type FilterSink struct {
	sink Sink
	keep filter.Filter
}

// NewFilterSink wraps sink so only classes matching keep are delivered.
// A nil filter keeps everything.
func NewFilterSink(sink Sink, keep filter.Filter) *FilterSink {
	if keep == nil {
		keep = filter.All()
	}
	return &FilterSink{sink: sink, keep: keep}
}

// Name implements Sink.
func (s *FilterSink) Name() string { return s.sink.Name() }

// Deliver implements Sink.
func (s *FilterSink) Deliver(ctx context.Context, snap Snapshot) error {
	kept := make([]ClassStat, 0, len(snap.Classes))
	for _, cs := range snap.Classes {
		if s.keep.Match(cs.Class) {
			kept = append(kept, cs)
		}
	}
	snap.Classes = kept
	snap.Totals = computeTotals(kept)
	return s.sink.Deliver(ctx, snap)
}
