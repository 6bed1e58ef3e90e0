package event

import (
	"sync"
	"time"

	"github.com/randalmurphal/memprof/pkg/memprof/host"
)

// PoisonConfig configures detection of classes whose records
// consistently fault during dispatch.
type PoisonConfig struct {
	// FailureThreshold is the number of contained faults within the
	// window before a class is flagged. Default: 3
	FailureThreshold int

	// Window is how long a failure streak is remembered. A streak older
	// than the window restarts from zero. Default: 1 hour
	Window time.Duration

	// OnDetect is called once, when a class crosses the threshold.
	OnDetect func(class host.Ref, failures int)
}

// DefaultPoisonConfig provides reasonable defaults.
var DefaultPoisonConfig = PoisonConfig{
	FailureThreshold: 3,
	Window:           time.Hour,
}

// PoisonDetector flags classes whose records repeatedly fault, so the
// owner can stop tracking them instead of paying for the same fault on
// every drain. Classes are compared by host.Ref identity and must be
// comparable.
//
// The detector only observes: flagged classes still dispatch normally.
// Acting on a flag is the owner's call.
type PoisonDetector struct {
	mu      sync.Mutex
	config  PoisonConfig
	streaks map[host.Ref]*failureStreak
}

type failureStreak struct {
	count   int
	firstAt time.Time
}

// NewPoisonDetector creates a detector with the given configuration.
// Zero fields fall back to DefaultPoisonConfig.
func NewPoisonDetector(config PoisonConfig) *PoisonDetector {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultPoisonConfig.FailureThreshold
	}
	if config.Window <= 0 {
		config.Window = DefaultPoisonConfig.Window
	}
	return &PoisonDetector{
		config:  config,
		streaks: make(map[host.Ref]*failureStreak),
	}
}

// RecordFailure notes a contained fault for class and reports whether
// the class is now flagged.
func (d *PoisonDetector) RecordFailure(class host.Ref) bool {
	now := time.Now()

	d.mu.Lock()
	streak, ok := d.streaks[class]
	if !ok || now.Sub(streak.firstAt) > d.config.Window {
		streak = &failureStreak{firstAt: now}
		d.streaks[class] = streak
	}
	streak.count++
	count := streak.count
	d.mu.Unlock()

	if count == d.config.FailureThreshold && d.config.OnDetect != nil {
		d.config.OnDetect(class, count)
	}
	return count >= d.config.FailureThreshold
}

// Poisoned reports whether class has crossed the failure threshold
// within the window.
func (d *PoisonDetector) Poisoned(class host.Ref) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	streak, ok := d.streaks[class]
	if !ok {
		return false
	}
	if time.Since(streak.firstAt) > d.config.Window {
		delete(d.streaks, class)
		return false
	}
	return streak.count >= d.config.FailureThreshold
}

// FailureCount returns the current streak length for class.
func (d *PoisonDetector) FailureCount(class host.Ref) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	streak, ok := d.streaks[class]
	if !ok || time.Since(streak.firstAt) > d.config.Window {
		return 0
	}
	return streak.count
}

// Clear forgets the streak for class, unflagging it.
func (d *PoisonDetector) Clear(class host.Ref) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.streaks, class)
}

// Flagged returns every class currently over the threshold.
func (d *PoisonDetector) Flagged() []host.Ref {
	d.mu.Lock()
	defer d.mu.Unlock()

	var flagged []host.Ref
	for class, streak := range d.streaks {
		if time.Since(streak.firstAt) > d.config.Window {
			continue
		}
		if streak.count >= d.config.FailureThreshold {
			flagged = append(flagged, class)
		}
	}
	return flagged
}
