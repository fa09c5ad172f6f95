package units

import (
	"encoding/json"
	"strings"
	"text/template"
)

// promptFuncs returns the helpers available to prompt templates. All of
// them are safe for concurrent template execution.
func promptFuncs() template.FuncMap {
	return template.FuncMap{
		// add converts 0-based indexes for display: {{add $i 1}}
		"add": func(a, b int) int { return a + b },

		// excerpt keeps at most n runes of s on a single line.
		"excerpt": excerpt,

		// quote renders s as a JSON string literal so untrusted text cannot
		// break out of the surrounding prompt structure.
		"quote": func(s string) string {
			b, err := json.Marshal(s)
			if err != nil {
				return `""`
			}
			return string(b)
		},
	}
}

// excerpt collapses whitespace and truncates to n runes, appending "..."
// when text was cut. A non-positive n keeps the whole text.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n > 3 {
		return string(r[:n-3]) + "..."
	}
	return string(r[:n])
}

// truncateRunes cuts s to at most n runes without an ellipsis.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
