/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting profiler settings from YAML/JSON structures
without verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "track_all":        false,
	    "poison_threshold": 3,
	    "filter":           "prefix:MyApp::",
	})

	trackAll := cfg.Bool("track_all", false)
	threshold := cfg.Int("poison_threshold", 0)
	expr := cfg.String("filter", "*")

# Profiler Schema

A full profiler configuration looks like:

	track_all: false
	classes: [MyApp::User, MyApp::Order]
	filter: "prefix:MyApp:: and not suffix:Test"
	parking: 100
	poison_threshold: 3
	queue:
	  warn_every: 5s
	report:
	  interval: 1m
	  store:
	    driver: sqlite
	    path: profiles.db
	  sinks:
	    - type: log
	    - type: file
	      dir: profiles
	      path_template: "{{session}}/{{snapshot}}.json"

Nested sections are reached with Section and Sections:

	interval := cfg.Section("report").Duration("interval", time.Minute)
	for _, sink := range cfg.Section("report").Sections("sinks") {
	    kind := sink.String("type", "log")
	}

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Numeric types handle reasonable conversions:
  - int from float64 (only without a fractional part)
  - float64 from int

All methods return the default value if the key is missing, the value
cannot be converted, or the conversion would lose precision.

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("memprof.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
