package config

import (
	"fmt"
	"time"
)

// Validate checks a profiler configuration against the expected
// schema: key types, positive durations, known store drivers, and
// sink sections carrying a type. It validates shape only; semantic
// checks like filter syntax happen where the values are consumed.
//
// Unknown keys are not an error, so configurations can carry
// application-specific extras.
func Validate(cfg Config) error {
	if err := checkBool(cfg, "track_all", "track_all"); err != nil {
		return err
	}
	if err := checkStringSlice(cfg, "classes", "classes"); err != nil {
		return err
	}
	if err := checkString(cfg, "filter", "filter"); err != nil {
		return err
	}
	if err := checkCount(cfg, "parking", "parking"); err != nil {
		return err
	}
	if err := checkCount(cfg, "poison_threshold", "poison_threshold"); err != nil {
		return err
	}
	if err := checkDuration(cfg.Section("queue"), "warn_every", "queue.warn_every"); err != nil {
		return err
	}
	return validateReport(cfg.Section("report"))
}

func validateReport(report Config) error {
	if err := checkDuration(report, "interval", "report.interval"); err != nil {
		return err
	}

	if report.Has("store") {
		switch report.Any("store", nil).(type) {
		case map[string]any, Config:
		default:
			return fmt.Errorf("report.store: expected a section with a driver key")
		}
		store := report.Section("store")
		switch driver := store.String("driver", "memory"); driver {
		case "memory":
		case "sqlite":
			if store.String("path", "") == "" {
				return fmt.Errorf("report.store: sqlite driver requires a path")
			}
		default:
			return fmt.Errorf("report.store: unknown driver %q", driver)
		}
		if err := checkCount(store, "max", "report.store.max"); err != nil {
			return err
		}
	}

	if report.Has("sinks") {
		sections := report.Sections("sinks")
		if sections == nil {
			return fmt.Errorf("report.sinks: expected a list of sections")
		}
		for i, sink := range sections {
			if sink.String("type", "") == "" {
				return fmt.Errorf("report.sinks[%d]: missing type", i)
			}
		}
	}
	return nil
}

func checkBool(cfg Config, key, label string) error {
	v, ok := cfg.data[key]
	if !ok || v == nil {
		return nil
	}
	if _, isBool := v.(bool); !isBool {
		return fmt.Errorf("%s: expected bool, got %T", label, v)
	}
	return nil
}

func checkString(cfg Config, key, label string) error {
	v, ok := cfg.data[key]
	if !ok || v == nil {
		return nil
	}
	if _, isString := v.(string); !isString {
		return fmt.Errorf("%s: expected string, got %T", label, v)
	}
	return nil
}

func checkStringSlice(cfg Config, key, label string) error {
	v, ok := cfg.data[key]
	if !ok || v == nil {
		return nil
	}
	if cfg.StringSlice(key, nil) == nil {
		return fmt.Errorf("%s: expected a list of strings", label)
	}
	return nil
}

// checkCount validates a non-negative integer key.
func checkCount(cfg Config, key, label string) error {
	v, ok := cfg.data[key]
	if !ok || v == nil {
		return nil
	}
	switch v.(type) {
	case int, int64, float64:
		if cfg.Int(key, -1) < 0 {
			return fmt.Errorf("%s: expected a non-negative integer, got %v", label, v)
		}
		return nil
	default:
		return fmt.Errorf("%s: expected integer, got %T", label, v)
	}
}

// checkDuration validates a positive duration key, accepting the same
// forms the Duration accessor coerces.
func checkDuration(cfg Config, key, label string) error {
	v, ok := cfg.data[key]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive, got %v", label, d)
		}
		return nil
	case int, int64, float64, time.Duration:
		if cfg.Duration(key, 0) <= 0 {
			return fmt.Errorf("%s: must be positive, got %v", label, val)
		}
		return nil
	default:
		return fmt.Errorf("%s: expected duration, got %T", label, v)
	}
}
