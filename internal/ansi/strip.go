// Package ansi strips terminal escape sequences from captured output.
package ansi

import "regexp"

// escapePattern matches CSI sequences (colors, cursor movement), OSC
// sequences (terminal titles, hyperlinks), and bare two-byte escapes.
var escapePattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[@-_]`)

// Strip removes ANSI escape sequences from s. Escape codes are noise for
// machine consumers and non-terminal log sinks; the raw form is preserved
// separately by callers that mirror output to a live terminal.
func Strip(s string) string {
	if !containsEscape(s) {
		return s
	}
	return escapePattern.ReplaceAllString(s, "")
}

// StripBytes removes ANSI escape sequences from b.
func StripBytes(b []byte) []byte {
	return []byte(Strip(string(b)))
}

func containsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b {
			return true
		}
	}
	return false
}
