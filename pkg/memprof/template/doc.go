/*
Package template expands {{name}} placeholders in strings, for report
destinations and sink labels.

# Overview

Report paths and labels often need per-session values: the capture ID,
the snapshot ID, a timestamp. template substitutes those values into
configured strings at delivery time.

	path := template.Expand("profiles/{{session}}/{{snapshot}}.json", map[string]any{
	    "session":  "cap-1a2b3c4d",
	    "snapshot": "snap-9f8e7d6c",
	})
	// profiles/cap-1a2b3c4d/snap-9f8e7d6c.json

# Missing Variables

By default, placeholders naming unknown variables are kept as-is.
Configure an Expander to replace them with the empty string or to fail:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("{{unknown}}", nil)
	// err: "undefined variable: unknown"
*/
package template
