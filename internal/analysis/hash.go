package analysis

import (
	"strings"
	"unicode/utf16"
)

// ExtractToken returns the lower-cased trailing non-empty path segment of
// identifier, or "" when there is none. Query strings and fragments are not
// stripped.
func ExtractToken(identifier string) string {
	parts := strings.Split(strings.ToLower(identifier), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// HashToken computes the 31-multiplier polynomial hash of token over its
// UTF-16 code units with int32 wraparound, and returns its magnitude.
func HashToken(token string) int64 {
	var acc int32
	for _, unit := range utf16.Encode([]rune(token)) {
		acc = acc*31 + int32(unit)
	}
	return magnitude(acc)
}

// magnitude widens before negating so MinInt32 maps to 2147483648.
func magnitude(acc int32) int64 {
	v := int64(acc)
	if v < 0 {
		return -v
	}
	return v
}

// tokenLength counts UTF-16 code units, matching the unit the hash walks.
func tokenLength(token string) int {
	return len(utf16.Encode([]rune(token)))
}
