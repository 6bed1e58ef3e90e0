package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FromFile loads a profiler configuration from a file, auto-detecting
// the format by extension. Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read profiler config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("profiler config %s: unsupported extension %q (want .yaml, .yml, or .json)", filepath.Base(path), ext)
	}
}

// FromYAML parses YAML data into a profiler Config. An empty document
// yields an empty Config whose getters all return their defaults.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse profiler config yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a profiler Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse profiler config json: %w", err)
	}
	return New(m), nil
}
