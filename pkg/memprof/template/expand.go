package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {{name}} with optional inner whitespace.
// Names can contain alphanumerics, underscores, and dots.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// Expander expands {{name}} placeholders in strings.
//
// Create with NewExpander and configure with Option functions.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
}

// NewExpander creates a new Expander with the given options.
//
// Default configuration:
//   - MissingAction: MissingKeep (keep placeholders as-is)
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands placeholders in s using the provided vars.
//
// Errors are only returned when MissingAction is MissingError and a
// placeholder names a variable that is not found.
//
// Example:
//
//	exp := NewExpander()
//	result, err := exp.Expand("profile-{{session}}.json", map[string]any{"session": "cap-1a2b"})
//	// result: "profile-cap-1a2b.json"
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missingVars []string
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missingVars = append(missingVars, name)
			return match
		default: // MissingKeep
			return match
		}
	})

	if len(missingVars) > 0 {
		return result, &UndefinedVariableError{Names: missingVars}
	}

	return result, nil
}

// MustExpand expands placeholders in s and panics on error.
//
// Use this when all variables are known present or when using
// MissingKeep/MissingEmpty, which never return errors.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandAll expands placeholders in all strings.
//
// Returns a new slice with expanded strings. On error (with
// MissingError), returns nil and the first error.
func (e *Expander) ExpandAll(ss []string, vars map[string]any) ([]string, error) {
	if ss == nil {
		return nil, nil
	}

	results := make([]string, len(ss))
	for i, s := range ss {
		expanded, err := e.Expand(s, vars)
		if err != nil {
			return nil, err
		}
		results[i] = expanded
	}
	return results, nil
}

// ExpandMap expands placeholders in all string values of a map
// recursively.
//
// Returns a new map with expanded values. Non-string values are copied
// as-is; nested map[string]any values are expanded recursively. On
// error (with MissingError), returns nil and the first error.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.expandValue(v, vars)
		if err != nil {
			return nil, err
		}
		result[k] = expanded
	}
	return result, nil
}

func (e *Expander) expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	default:
		return v, nil
	}
}

// UndefinedVariableError is returned when MissingError is set and one
// or more placeholders name unknown variables.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// defaultExpander is the package-level expander with default settings.
var defaultExpander = NewExpander()

// Expand expands placeholders in s using the default expander.
//
// Uses MissingKeep behavior (missing variables stay as-is).
func Expand(s string, vars map[string]any) string {
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// ExpandAll expands placeholders in all strings using the default
// expander.
func ExpandAll(ss []string, vars map[string]any) []string {
	results, _ := defaultExpander.ExpandAll(ss, vars)
	return results
}

// ExpandMap expands placeholders in all string values using the
// default expander. Nested maps are expanded recursively.
func ExpandMap(m map[string]any, vars map[string]any) map[string]any {
	result, _ := defaultExpander.ExpandMap(m, vars)
	return result
}
