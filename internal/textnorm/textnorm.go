// Package textnorm holds the string normalisation shared by parsers, direction resolution and
// categorization.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CollapseSpaces replaces every run of whitespace with a single space and trims the result.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fold lower-cases s, strips diacritics and collapses whitespace.
// Examples: "João  Souza" → "joao souza", "PAGAMENTO EFETUADO" → "pagamento efetuado"
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return CollapseSpaces(strings.ToLower(folded))
}

// MutuallyContains reports whether a contains b or b contains a after folding.
// Empty inputs never match.
func MutuallyContains(a, b string) bool {
	fa, fb := Fold(a), Fold(b)
	if fa == "" || fb == "" {
		return false
	}
	return strings.Contains(fa, fb) || strings.Contains(fb, fa)
}

// HasDigit reports whether s contains any decimal digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
