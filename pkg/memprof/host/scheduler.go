package host

import (
	"errors"
	"sync"
)

// DeferredJob is a callback the host runs at its next safe point.
type DeferredJob func()

// JobHandle identifies a registered deferred job.
type JobHandle int

// InvalidJobHandle is returned by failed registrations.
const InvalidJobHandle JobHandle = -1

// DefaultMaxJobs bounds the scheduler's registration table. Deferred
// job slots model a scarce host resource: subsystems register exactly
// once at startup and reuse the handle for their lifetime.
const DefaultMaxJobs = 32

// ErrNoJobSlots is returned when the registration table is full.
var ErrNoJobSlots = errors.New("no deferred job slots available")

// ErrNilJob is returned when registering a nil callback.
var ErrNilJob = errors.New("deferred job is required")

// Scheduler defers work to the host's next safe point.
//
// Register is called once per subsystem and may fail when the table is
// exhausted. Trigger requests one future invocation of the registered
// job; repeated triggers between runs coalesce into a single
// invocation.
type Scheduler interface {
	Register(job DeferredJob) (JobHandle, error)
	Trigger(handle JobHandle)
}

// CooperativeScheduler is an in-process Scheduler for hosts that drive
// safe points explicitly. Producers may Trigger from any goroutine; the
// embedding host calls RunPending at each safe point, or selects on
// Wakeups when it runs an event loop.
type CooperativeScheduler struct {
	mu      sync.Mutex
	jobs    []DeferredJob
	pending []bool
	max     int

	wake chan struct{}
}

// SchedulerOption configures a CooperativeScheduler.
type SchedulerOption func(*CooperativeScheduler)

// WithMaxJobs overrides the registration table size.
func WithMaxJobs(n int) SchedulerOption {
	return func(s *CooperativeScheduler) {
		if n > 0 {
			s.max = n
		}
	}
}

// NewCooperativeScheduler creates a scheduler with an empty job table.
func NewCooperativeScheduler(opts ...SchedulerOption) *CooperativeScheduler {
	s := &CooperativeScheduler{
		max:  DefaultMaxJobs,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job to the table and returns its handle. Handles stay
// valid for the scheduler's lifetime; there is no unregister.
func (s *CooperativeScheduler) Register(job DeferredJob) (JobHandle, error) {
	if job == nil {
		return InvalidJobHandle, ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.jobs) >= s.max {
		return InvalidJobHandle, ErrNoJobSlots
	}

	s.jobs = append(s.jobs, job)
	s.pending = append(s.pending, false)
	return JobHandle(len(s.jobs) - 1), nil
}

// Trigger marks the job pending and performs a non-blocking wake-up.
// Triggers for unknown handles are ignored.
func (s *CooperativeScheduler) Trigger(handle JobHandle) {
	s.mu.Lock()
	if handle < 0 || int(handle) >= len(s.jobs) {
		s.mu.Unlock()
		return
	}
	s.pending[handle] = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// RunPending runs each pending job once and reports how many ran. The
// pending set is snapshotted before running, so a job that re-triggers
// itself runs again on the next call, not within this one.
func (s *CooperativeScheduler) RunPending() int {
	s.mu.Lock()
	var ready []DeferredJob
	for i, pending := range s.pending {
		if pending {
			s.pending[i] = false
			ready = append(ready, s.jobs[i])
		}
	}
	s.mu.Unlock()

	for _, job := range ready {
		job()
	}
	return len(ready)
}

// HasPending reports whether any job is awaiting a safe point.
func (s *CooperativeScheduler) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pending := range s.pending {
		if pending {
			return true
		}
	}
	return false
}

// Wakeups exposes the wake-up channel so an event-loop embedding can
// select on it instead of polling. The channel has capacity one;
// receiving drains all wake-ups issued so far.
func (s *CooperativeScheduler) Wakeups() <-chan struct{} {
	return s.wake
}

var (
	defaultScheduler     *CooperativeScheduler
	defaultSchedulerOnce sync.Once
)

// Default returns the process-wide scheduler, creating it on first use.
// Hosts that drive their own scheduler should pass it explicitly
// instead; Default exists so process-wide subsystems have a registration
// target without extra setup.
func Default() *CooperativeScheduler {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler = NewCooperativeScheduler()
	})
	return defaultScheduler
}
