// Package util holds small string helpers shared across packages.
package util

import (
	"strings"
	"unicode/utf8"
)

// TruncateRunes returns at most n characters of s without splitting a
// multi-byte character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// RuneCount reports the length of s in characters.
func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}

// Redact replaces every non-empty secret in s with "[REDACTED]".
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	return s
}
