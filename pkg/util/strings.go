package util

import "strings"

// CapitalizeFirst returns s with the first letter uppercased.
func CapitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ValueOr returns s, or fallback when s is empty.
func ValueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
