package utils

import (
	"net/url"
	"strings"
)

const keySeparator = "\x1f"

// CacheKey builds the response cache key for an upstream endpoint.
// url.Values.Encode sorts by parameter name, so identical parameter sets
// always produce the same key regardless of insertion order.
func CacheKey(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}

// NormalizeKey lowercases and trims a value and collapses inner runs of
// whitespace, so "  Shape  of You" and "shape of you" compare equal.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// CompositeKey joins normalized parts with a unit separator, so ("a b", "c")
// and ("a", "b c") differ. Separators inside a part are treated as spaces.
func CompositeKey(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = NormalizeKey(strings.ReplaceAll(p, keySeparator, " "))
	}
	return strings.Join(normalized, keySeparator)
}
