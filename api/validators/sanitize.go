package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims s, folds runs of whitespace into one space, drops
// control characters, and truncates to maxLen runes (0 means unlimited).
func SanitizeString(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	runes := 0
	for _, r := range strings.TrimSpace(s) {
		if maxLen > 0 && runes >= maxLen {
			break
		}
		switch {
		case unicode.IsSpace(r):
			if space {
				continue
			}
			space = true
			r = ' '
		case unicode.IsControl(r):
			continue
		default:
			space = false
		}
		b.WriteRune(r)
		runes++
	}
	return strings.TrimSpace(b.String())
}
