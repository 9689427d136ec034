// Package normalize converts raw device records into the uniform sample and
// session shapes, resolving opaque type identifiers and enumerated codes to
// stable, human-readable names.
package normalize

import (
	"sort"
	"strings"
	"unicode"
)

// typePrefixes are the recognized structural identifier prefixes. Matching is
// longest-first so an identifier covered by two candidates always resolves
// with the more specific one.
var typePrefixes = []string{
	"HKQuantityTypeIdentifier",
	"HKCategoryTypeIdentifier",
	"HKCorrelationTypeIdentifier",
	"HKClinicalTypeIdentifier",
	"HKCharacteristicTypeIdentifier",
	"HKWorkoutTypeIdentifier",
	"HKDataTypeIdentifier",
}

// typeIdentifierMarker is the generic fallback: identifiers with an
// unrecognized prefix are stripped through this token when present.
const typeIdentifierMarker = "TypeIdentifier"

// defaultTypeName is returned when stripping leaves nothing, which happens
// for the bare workout type identifier.
const defaultTypeName = "workout"

func init() {
	sort.Slice(typePrefixes, func(i, j int) bool {
		return len(typePrefixes[i]) > len(typePrefixes[j])
	})
}

// ResolveTypeName maps a raw device type identifier to a stable kebab-case
// file-name stem. It is pure and total: every input has a defined, non-empty,
// lowercase output.
func ResolveTypeName(identifier string) string {
	rest := identifier
	matched := false
	for _, p := range typePrefixes {
		if strings.HasPrefix(rest, p) {
			rest = rest[len(p):]
			matched = true
			break
		}
	}
	if !matched {
		if i := strings.Index(rest, typeIdentifierMarker); i >= 0 {
			rest = rest[i+len(typeIdentifierMarker):]
		}
	}
	if rest == "" {
		return defaultTypeName
	}
	return kebabCase(rest)
}

// kebabCase lowercases a PascalCase/camelCase string, inserting a hyphen
// before an uppercase letter when the previous rune was lowercase or a digit,
// or at an acronym-end boundary (previous rune uppercase, next rune
// lowercase), so "HeartRateVariabilitySDNN" becomes
// "heart-rate-variability-sdnn" and "ABCEasy" becomes "abc-easy".
func kebabCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
