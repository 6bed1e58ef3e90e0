/*
Package filter selects which classes a capture profiles, by name.

# Overview

filter provides composable predicates over class names. Primitives
match on exact name, prefix, suffix, substring, or regular expression;
combinators build boolean expressions out of them. A filter attached
to a capture gates which allocations turn into tracked objects.

# Expression Syntax

Parse builds filters from text, for configuration files:

	<expr> := <term>
	        | <expr> 'and' <expr>
	        | <expr> 'or' <expr>
	        | 'not' <expr>
	        | '!' <expr>

	<term> := '*'
	        | 'prefix:' text
	        | 'suffix:' text
	        | 'contains:' text
	        | 'pattern:' regexp
	        | exact class name

# Examples

Programmatic composition:

	f := filter.And(
	    filter.Prefix("MyApp::"),
	    filter.Not(filter.Suffix("Test")),
	)
	f.Match("MyApp::User")     // true
	f.Match("MyApp::UserTest") // false

The same filter from configuration text:

	f, err := filter.Parse("prefix:MyApp:: and not suffix:Test")
*/
package filter
