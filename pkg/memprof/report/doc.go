// Package report turns capture statistics into durable, deliverable
// snapshots.
//
// # Snapshots
//
// A Snapshot is a point-in-time aggregate of per-class allocation
// statistics, identified by a short snap- ID and stamped with its
// session. Snapshots serialize to JSON and deep-copy cleanly, so
// stores and sinks can hold them without aliasing the capture's
// internal state.
//
// # Stores
//
// Store implementations persist snapshots across report cycles.
// MemoryStore keeps everything in a map and suits tests and
// short-lived sessions; the bounded variant rejects saves past a fixed
// limit. SQLiteStore persists to a single-file database and survives
// process restarts.
//
// # Sinks
//
// A Sink delivers one snapshot somewhere: LogSink to a structured
// logger, StoreSink to a Store, FileSink to template-named JSON files.
// FilterSink narrows the class rows a sink sees, and RetrySink adds
// backoff retries for transient failures. The Registry maps sink type
// names to factories so pipelines can be assembled from config.
//
// # Reporter
//
// The Reporter is the pump: on every tick (or Trigger call) it pulls a
// snapshot from its Source and fans it out to all sinks concurrently.
// A failing or panicking sink is logged and counted; the cycle and the
// other sinks continue.
//
//	rep := report.NewReporter(capture, sinks, report.ReporterConfig{
//		Interval: 30 * time.Second,
//	})
//	rep.Start(ctx)
//	defer rep.Close()
//
// Rollup and Diff summarize windows of successive snapshots: Diff
// computes per-class deltas between two snapshots, and Rollup tracks
// peak retention across a window.
package report
