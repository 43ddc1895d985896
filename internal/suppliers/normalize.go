package suppliers

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName derives the uniqueness key for a supplier name: compatibility
// normalised, case folded, inner whitespace collapsed and trailing
// punctuation removed. "ACME  Corp." and "acme corp" share a key.
func NormalizeName(name string) string {
	n := norm.NFKC.String(name)
	// Casers keep state and must not be shared across goroutines.
	n = cases.Fold().String(n)
	n = strings.Join(strings.Fields(n), " ")
	n = strings.TrimRightFunc(n, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return n
}

// lowerName is the search form stored in name_lower. Search lowercases both
// sides here rather than with SQL lower(), whose result depends on the
// database's LC_CTYPE.
func lowerName(name string) string {
	return strings.ToLower(name)
}

// matchesName reports whether name contains query, ignoring case. It mirrors
// the store-side strpos(name_lower, $query) predicate.
func matchesName(name, query string) bool {
	return strings.Contains(lowerName(name), lowerName(query))
}
