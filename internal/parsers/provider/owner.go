package provider

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

const (
	ownerScanLines = 15
	ownerMinLength = 5
)

// DetectOwner returns the account holder name declared in the document header: the first of
// the first 15 non-blank lines that is purely alphabetic, longer than 5 characters and free of
// header tokens. It returns "" when no line qualifies.
func DetectOwner(lines []string) string {
	scanned := 0
	for _, line := range lines {
		line = textnorm.CollapseSpaces(line)
		if line == "" {
			continue
		}
		if scanned++; scanned > ownerScanLines {
			break
		}
		if utf8.RuneCountInString(line) <= ownerMinLength || !isAlphabetic(line) {
			continue
		}
		if isHeaderLine(line) || isStatusLine(line) || isSettledLine(line) {
			continue
		}
		if boilerplatePattern.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

func isAlphabetic(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != ' ' && r != '.' && r != '\'' && r != '-'
	}) < 0
}
