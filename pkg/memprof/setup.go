package memprof

import (
	"fmt"

	"github.com/randalmurphal/memprof/pkg/memprof/config"
	"github.com/randalmurphal/memprof/pkg/memprof/event"
	"github.com/randalmurphal/memprof/pkg/memprof/filter"
	"github.com/randalmurphal/memprof/pkg/memprof/observability"
	"github.com/randalmurphal/memprof/pkg/memprof/report"
)

// FromConfig assembles a capture session from configuration, plus a
// reporting pipeline when a report section is present. The reporter is
// nil otherwise.
//
// Recognized keys: track_all, classes, filter, parking,
// poison_threshold, queue.warn_every, and the report section
// (interval, store, sinks). Queue tuning keys make the capture build
// a private event store. Options are applied after the config-derived
// ones, so callers can inject a scheduler, logger, or metrics:
//
//	cfg, err := config.FromFile("memprof.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	capture, reporter, err := memprof.FromConfig(cfg,
//	    memprof.WithScheduler(sched),
//	    memprof.WithLogger(logger))
//
// Resources the assembly creates (reporter, snapshot store, private
// event store) are owned by the capture and released by Close.
func FromConfig(cfg config.Config, opts ...CaptureOption) (*Capture, *report.Reporter, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}

	base := make([]CaptureOption, 0, len(opts)+3)
	if cfg.Bool("track_all", false) {
		base = append(base, WithTrackAll(true))
	}
	if expr := cfg.String("filter", ""); expr != "" {
		keep, err := filter.Parse(expr)
		if err != nil {
			return nil, nil, fmt.Errorf("filter: %w", err)
		}
		base = append(base, WithFilter(keep))
	}
	if storeCfg, tuned := storeTuning(cfg); tuned {
		base = append(base, WithStoreConfig(storeCfg))
	}
	base = append(base, opts...)

	capture, err := NewCapture(base...)
	if err != nil {
		return nil, nil, err
	}

	classes := cfg.StringSlice("classes", nil)
	for _, class := range classes {
		if err := capture.Track(class); err != nil {
			capture.Close()
			return nil, nil, fmt.Errorf("track %s: %w", class, err)
		}
	}
	if capture.logger != nil {
		capture.logger = observability.EnrichLogger(capture.logger, capture.sessionID, len(classes))
	}

	if !cfg.Has("report") {
		return capture, nil, nil
	}
	reporter, err := buildReporter(capture, cfg.Section("report"))
	if err != nil {
		capture.Close()
		return nil, nil, err
	}
	return capture, reporter, nil
}

// storeTuning extracts private-store settings. The capture only builds
// a private store when at least one is configured.
func storeTuning(cfg config.Config) (event.StoreConfig, bool) {
	var storeCfg event.StoreConfig
	tuned := false
	if warn := cfg.Section("queue").Duration("warn_every", 0); warn > 0 {
		storeCfg.WarnEvery = warn
		tuned = true
	}
	if parking := cfg.Int("parking", 0); parking > 0 {
		storeCfg.Parking = parking
		tuned = true
	}
	if threshold := cfg.Int("poison_threshold", 0); threshold > 0 {
		storeCfg.PoisonThreshold = threshold
		tuned = true
	}
	return storeCfg, tuned
}

func buildReporter(capture *Capture, cfg config.Config) (*report.Reporter, error) {
	store, err := buildSnapshotStore(cfg)
	if err != nil {
		return nil, err
	}

	env := report.SinkEnv{Logger: capture.logger, Store: store}
	var sinks []report.Sink
	if sections := cfg.Sections("sinks"); len(sections) > 0 {
		sinks, err = report.NewRegistry().BuildAll(sections, env)
		if err != nil {
			if store != nil {
				store.Close()
			}
			return nil, err
		}
	} else {
		// Default pipeline: log each snapshot, and persist it when a
		// store is configured.
		sinks = []report.Sink{report.NewLogSink(capture.logger)}
		if store != nil {
			sinks = append(sinks, report.NewStoreSink(store))
		}
	}

	reporterCfg := report.DefaultReporterConfig
	reporterCfg.Interval = cfg.Duration("interval", reporterCfg.Interval)
	reporterCfg.Logger = capture.logger
	reporterCfg.Metrics = capture.metrics
	reporterCfg.Spans = capture.spans
	reporter := report.NewReporter(capture, sinks, reporterCfg)

	capture.addCloser(reporter)
	if store != nil {
		capture.addCloser(store)
	}
	return reporter, nil
}

func buildSnapshotStore(cfg config.Config) (report.Store, error) {
	if !cfg.Has("store") {
		return nil, nil
	}
	store := cfg.Section("store")
	switch driver := store.String("driver", "memory"); driver {
	case "memory":
		if max := store.Int("max", 0); max > 0 {
			return report.NewBoundedMemoryStore(max), nil
		}
		return report.NewMemoryStore(), nil
	case "sqlite":
		return report.NewSQLiteStore(store.String("path", ""))
	default:
		return nil, fmt.Errorf("report.store: unknown driver %q", driver)
	}
}
