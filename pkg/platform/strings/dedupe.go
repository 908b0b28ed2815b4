// Package strings holds small string-slice helpers for request payloads.
package strings

import "strings"

// DedupeAndTrim trims each element, drops empties, and removes duplicates
// while preserving first-occurrence order. Bulk offline requests pass their
// user id lists through here on both sides of the wire, so the server never
// sees the same target twice and counts stay consistent with what the
// console submitted.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
