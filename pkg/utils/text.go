// Package utils provides shared utilities for text, math, and logging.
package utils

import "unicode/utf8"

// Truncate returns s cut to maxLen characters, with "..." appended if it was cut.
// If maxLen is 0 or negative, returns s unchanged. Multi-byte runes are never split.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
