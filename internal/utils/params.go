// Package utils holds tiny helpers for turning untrusted query-string input
// into usable numbers. Nothing here knows about accounts or credits.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int and falls back to def when s is
// empty, padded, or out of range. Query parameters arrive as strings and a
// bad value should select the default, not surface an error.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt returns n when it lies in [lo, hi], otherwise def. Used to keep
// caller-supplied page sizes and listing limits inside sane bounds.
func ClampInt(n, lo, hi, def int) int {
	if n < lo || n > hi {
		return def
	}
	return n
}
