/*
Package memprof provides allocation profiling for embedded managed runtimes.

# Overview

memprof captures object lifecycle events from a managed runtime host
and aggregates them into per-class allocation statistics. Trace points
fire in contexts where the host forbids heap allocation and reentry,
so events are never processed inline: they are buffered into a
double-buffered event store and attributed later, when the host reaches
a safe point.

The design centers on a few properties:
  - Enqueue is cheap and reentrancy-safe: producers keep appending
    while a drain iterates the other queue
  - Every successfully enqueued event is dispatched exactly once, in
    insertion order
  - A failing or panicking handler is contained per record and never
    aborts a drain pass
  - Mark and relocation walks cover every reference the profiler
    retains, keeping it coherent with moving collectors

# Basic Usage

Create a capture, track classes, and drive safe points through the
scheduler:

	sched := host.NewCooperativeScheduler()
	capture, err := memprof.NewCapture(memprof.WithScheduler(sched))
	if err != nil {
	    log.Fatal(err)
	}
	defer capture.Close()

	capture.Track("MyApp::User")
	capture.Start()

	// In the host's trace points:
	capture.ObjectAllocated("MyApp::User", user)
	capture.ObjectFreed("MyApp::User", user)

	// At the host's next safe point:
	sched.RunPending()

	stats, _ := capture.Statistics("MyApp::User")
	fmt.Printf("allocated=%d retained=%d\n", stats.Allocated, stats.Retained)

Captures created without a scheduler attach to the process-wide shared
store and drain when the host runs host.Default().RunPending().

# Tracking Callbacks

Attach per-class callbacks to observe individual events. Callbacks run
during the drain pass, outside the restricted trace-point context:

	capture.Track("MyApp::Order",
	    memprof.WithAllocationCallback(func(obj host.Ref) error {
	        return index.Add(obj)
	    }),
	    memprof.WithFreeCallback(func(obj host.Ref) error {
	        return index.Remove(obj)
	    }))

A callback error or panic is contained: the fault is counted against
the class and the drain continues. Classes whose callbacks keep
failing can be quarantined via the store's poison threshold.

# Track-All Mode

Instead of naming classes, capture everything a filter matches:

	capture, err := memprof.NewCapture(
	    memprof.WithTrackAll(true),
	    memprof.WithFilter(filter.Prefix("MyApp::")))

Classes appear in the statistics as their first events drain.

# Reporting

Publish periodic snapshots to sinks:

	store := report.NewMemoryStore()
	reporter := report.NewReporter(capture, []report.Sink{
	    report.NewLogSink(logger),
	    report.NewStoreSink(store),
	}, report.ReporterConfig{Interval: time.Minute})

	reporter.Start(ctx)
	defer reporter.Close()

Snapshots diff and roll up over time windows; see the report package.

# Configuration

Assemble a capture and reporting pipeline from YAML:

	cfg, err := config.FromFile("memprof.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	capture, reporter, err := memprof.FromConfig(cfg,
	    memprof.WithScheduler(sched))

With a configuration like:

	track_all: true
	filter: "prefix:MyApp::"
	poison_threshold: 3
	report:
	  interval: 1m
	  store:
	    driver: sqlite
	    path: profiles.db
	  sinks:
	    - type: log
	    - type: store

# Observability

Enable logging, metrics, and tracing:

	capture, err := memprof.NewCapture(
	    memprof.WithLogger(logger),
	    memprof.WithMetrics(observability.NewMetricsRecorder()),
	    memprof.WithSpans(observability.NewSpanManager()))

Logs include structured fields: session_id, records, duration_ms.
OpenTelemetry metrics: memprof.events.enqueued, memprof.drains,
memprof.drain.duration, memprof.reports.delivered, and friends.
Spans cover capture sessions, flushes, and report deliveries.

# Thread Safety

  - ObjectAllocated, ObjectFreed, and Flush belong to the host's
    execution path; neither the store's enqueue nor its drain runs
    concurrently with itself
  - Statistics readers (Statistics, Each, Snapshot, Count) are safe
    from any goroutine
  - Reporter and snapshot stores are safe for concurrent use

# Subpackages

  - queue: growable event buffers with power-of-two doubling
  - event: double-buffered store, fault containment, parking, poisoning
  - host: scheduler and collector contracts for the embedding runtime
  - filter: class-name filter expressions
  - report: snapshots, stores (memory, SQLite), sinks, reporter, rollups
  - config: typed configuration with YAML/JSON loading
  - errors: error categorization and retry policies
  - observability: logging, metrics, and tracing helpers
  - template: placeholder expansion for report paths
*/
package memprof
