package favourites

import (
	"errors"
	"fmt"
	"strings"
)

// Storage keys. These are read back across releases and must not change.
const (
	KeyMember = "xcm.favourites.member"
	KeyGuest  = "xcm.favourites.guest"
)

// Capacity per classification.
const (
	MaxMemberOrKnown = 3
	MaxGuest         = 1
)

// CodeLength is the length of an IATA airport code.
const CodeLength = 3

// Domain errors
var (
	ErrInvalidCode = errors.New("airport code must be three letters")
	ErrFull        = errors.New("favourites list is full")
)

// MaxFor returns the capacity for the classification.
func MaxFor(memberOrKnown bool) int {
	if memberOrKnown {
		return MaxMemberOrKnown
	}
	return MaxGuest
}

// KeyFor returns the storage key for the classification.
func KeyFor(memberOrKnown bool) string {
	if memberOrKnown {
		return KeyMember
	}
	return KeyGuest
}

// NormalizeCode uppercases, strips every non-letter and truncates to three
// characters, in that order. "l-h-r-x" becomes "LHR".
func NormalizeCode(raw string) string {
	upper := strings.ToUpper(raw)
	var b strings.Builder
	for _, r := range upper {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) > CodeLength {
		code = code[:CodeLength]
	}
	return code
}

// IsValidCode reports whether code is exactly three uppercase letters.
func IsValidCode(code string) bool {
	return len(code) == CodeLength && NormalizeCode(code) == code
}

// Normalize normalizes every entry, drops anything that is not a full
// three-letter code, drops duplicates (first occurrence wins) and caps the
// result at limit.
// PRE: limit >= 0
// POST: len(result) <= limit; every entry is exactly three uppercase letters
func Normalize(codes []string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, raw := range codes {
		code := NormalizeCode(raw)
		if len(code) != CodeLength || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Coerce turns a decoded JSON value into a list of strings. Anything that
// is not an array yields an empty list; non-string scalars are formatted.
func Coerce(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
