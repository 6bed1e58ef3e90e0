package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression is returned when a filter expression is blank.
var ErrEmptyExpression = errors.New("empty filter expression")

// Parse builds a filter from a textual expression, for use in
// configuration files.
//
// Supports: exact names, prefix:/suffix:/contains:/pattern: terms, *,
// and the combinators and, or, not, !.
func Parse(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmptyExpression
	}

	// Handle negation with "not " prefix
	if strings.HasPrefix(expr, "not ") {
		inner, err := Parse(strings.TrimPrefix(expr, "not "))
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}

	// Handle negation with "!" prefix
	if strings.HasPrefix(expr, "!") {
		inner, err := Parse(strings.TrimPrefix(expr, "!"))
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}

	// Handle AND (split on first " and ")
	if parts := strings.SplitN(expr, " and ", 2); len(parts) == 2 {
		left, err := Parse(parts[0])
		if err != nil {
			return nil, err
		}
		right, err := Parse(parts[1])
		if err != nil {
			return nil, err
		}
		return And(left, right), nil
	}

	// Handle OR (split on first " or ")
	if parts := strings.SplitN(expr, " or ", 2); len(parts) == 2 {
		left, err := Parse(parts[0])
		if err != nil {
			return nil, err
		}
		right, err := Parse(parts[1])
		if err != nil {
			return nil, err
		}
		return Or(left, right), nil
	}

	return parseTerm(expr)
}

func parseTerm(term string) (Filter, error) {
	if term == "*" {
		return All(), nil
	}

	if arg, ok := strings.CutPrefix(term, "prefix:"); ok {
		return Prefix(arg), nil
	}
	if arg, ok := strings.CutPrefix(term, "suffix:"); ok {
		return Suffix(arg), nil
	}
	if arg, ok := strings.CutPrefix(term, "contains:"); ok {
		return Contains(arg), nil
	}
	if arg, ok := strings.CutPrefix(term, "pattern:"); ok {
		f, err := Pattern(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		return f, nil
	}

	return Name(term), nil
}
