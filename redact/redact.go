package redact

import (
	"strings"
)

// String masks the middle half of s, keeping its first and last quarters
// readable. Strings shorter than four bytes are fully masked.
func String(s string) string {
	keep := len(s) / 4

	return s[:keep] + strings.Repeat("*", len(s)-2*keep) + s[len(s)-keep:]
}
