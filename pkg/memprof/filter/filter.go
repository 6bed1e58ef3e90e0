package filter

import (
	"regexp"
	"strings"
)

// Filter decides whether a class is profiled, by name.
type Filter interface {
	Match(class string) bool
}

// Func adapts a plain function to the Filter interface.
type Func func(class string) bool

// Match implements Filter.
func (f Func) Match(class string) bool {
	return f(class)
}

// All returns a filter matching every class.
func All() Filter {
	return Func(func(string) bool { return true })
}

// None returns a filter matching no class.
func None() Filter {
	return Func(func(string) bool { return false })
}

// Name returns a filter matching exactly the given class name.
func Name(name string) Filter {
	return Func(func(class string) bool { return class == name })
}

// Names returns a filter matching any of the given class names.
func Names(names ...string) Filter {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return Func(func(class string) bool {
		_, ok := set[class]
		return ok
	})
}

// Prefix returns a filter matching classes whose name starts with
// prefix. Useful for selecting a namespace, e.g. "MyApp::".
func Prefix(prefix string) Filter {
	return Func(func(class string) bool { return strings.HasPrefix(class, prefix) })
}

// Suffix returns a filter matching classes whose name ends with suffix.
func Suffix(suffix string) Filter {
	return Func(func(class string) bool { return strings.HasSuffix(class, suffix) })
}

// Contains returns a filter matching classes whose name contains
// substr.
func Contains(substr string) Filter {
	return Func(func(class string) bool { return strings.Contains(class, substr) })
}

// Pattern compiles a regular-expression filter.
func Pattern(pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return Func(re.MatchString), nil
}

// And returns a filter matching classes that every given filter
// matches. With no arguments it matches everything.
func And(filters ...Filter) Filter {
	return Func(func(class string) bool {
		for _, f := range filters {
			if !f.Match(class) {
				return false
			}
		}
		return true
	})
}

// Or returns a filter matching classes that any given filter matches.
// With no arguments it matches nothing.
func Or(filters ...Filter) Filter {
	return Func(func(class string) bool {
		for _, f := range filters {
			if f.Match(class) {
				return true
			}
		}
		return false
	})
}

// Not returns a filter matching classes the given filter does not.
func Not(f Filter) Filter {
	return Func(func(class string) bool { return !f.Match(class) })
}
