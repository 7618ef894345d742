package cache

import "strings"

// Normalize turns a free-form question into its cache key: surrounding
// whitespace is trimmed, inner runs of whitespace collapse to one space and
// the result is lower-cased. Empty input yields an empty key.
func Normalize(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}
