package format

import "unicode/utf8"

// Preview truncates s to at most max runes for log output. A truncated
// string ends with "...".
func Preview(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	n := 0
	for i := range s {
		if n == max {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
