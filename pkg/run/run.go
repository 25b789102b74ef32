// Package run validates and normalizes Chilean national identity numbers
// (RUN) in the form NNNNNNN(N)-C accepted by the enrollment form.
package run

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`^\d{7,8}-[0-9K]$`)

// Normalize trims surrounding whitespace and uppercases the check character.
// Separators inside the number are left alone so that malformed input stays
// malformed.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Valid reports whether raw, once normalized, has 7 or 8 digits, a hyphen and
// a single check character that is a digit or K.
func Valid(raw string) bool {
	return pattern.MatchString(Normalize(raw))
}
