// Package utils provides shared logging and text helpers.
package utils

import "strings"

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// MaskIdentifier replaces all but the last keep runes of id with '*', for logging
// PAN numbers and similar identifiers.
func MaskIdentifier(id string, keep int) string {
	r := []rune(id)
	if keep < 0 {
		keep = 0
	}
	if len(r) <= keep {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-keep) + string(r[len(r)-keep:])
}
