package utils

import (
	"strings"
	"unicode"
)

// CleanToken strips control characters and surrounding spaces from a
// client-supplied token and clips it to at most max runes.
func CleanToken(s string, max int) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsControl(r) {
			continue
		}
		if max > 0 && n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
