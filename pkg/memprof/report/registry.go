package report

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/randalmurphal/memprof/pkg/memprof/config"
	mperrors "github.com/randalmurphal/memprof/pkg/memprof/errors"
	"github.com/randalmurphal/memprof/pkg/memprof/filter"
)

// SinkEnv carries shared dependencies available to sink factories.
type SinkEnv struct {
	// Logger for sinks that log. May be nil.
	Logger *slog.Logger

	// Store backs store sinks. Nil when no store was configured.
	Store Store
}

// SinkFactory builds a sink from its config section.
type SinkFactory func(cfg config.Config, env SinkEnv) (Sink, error)

// Registry maps sink type names to factories so config can assemble
// report pipelines. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]SinkFactory
}

// NewRegistry creates a registry with the built-in sink types
// registered: log, store, and file.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]SinkFactory{
			"log":   buildLogSink,
			"store": buildStoreSink,
			"file":  buildFileSink,
		},
	}
}

// Register adds a sink factory under a type name.
// Registering a name twice is an error.
func (r *Registry) Register(name string, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("sink type %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Names returns the registered sink type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs a sink from a config section. The section's "type"
// key selects the factory. A "filter" expression wraps the sink in a
// FilterSink; "retry: true" wraps it in a RetrySink with the default
// policy.
func (r *Registry) Build(cfg config.Config, env SinkEnv) (Sink, error) {
	typ := cfg.String("type", "")
	if typ == "" {
		return nil, fmt.Errorf("sink config missing type")
	}

	r.mu.RLock()
	factory, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown sink type %q", typ)
	}

	sink, err := factory(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("build %s sink: %w", typ, err)
	}

	if expr := cfg.String("filter", ""); expr != "" {
		keep, err := filter.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("%s sink filter: %w", typ, err)
		}
		sink = NewFilterSink(sink, keep)
	}

	if cfg.Bool("retry", false) {
		sink = NewRetrySink(sink, mperrors.DefaultPolicy)
	}

	return sink, nil
}

// BuildAll constructs one sink per config section, in order.
func (r *Registry) BuildAll(sections []config.Config, env SinkEnv) ([]Sink, error) {
	sinks := make([]Sink, 0, len(sections))
	for i, section := range sections {
		sink, err := r.Build(section, env)
		if err != nil {
			return nil, fmt.Errorf("sink %d: %w", i, err)
		}
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func buildLogSink(_ config.Config, env SinkEnv) (Sink, error) {
	return NewLogSink(env.Logger), nil
}

func buildStoreSink(_ config.Config, env SinkEnv) (Sink, error) {
	if env.Store == nil {
		return nil, fmt.Errorf("store sink requires a configured store")
	}
	return NewStoreSink(env.Store), nil
}

func buildFileSink(cfg config.Config, _ SinkEnv) (Sink, error) {
	dir := cfg.String("dir", "")
	if dir == "" {
		return nil, fmt.Errorf("file sink requires a dir")
	}
	return NewFileSink(dir, cfg.String("path_template", "")), nil
}
