package provider

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

// BoilerplateTerms are field labels removed from candidate payer/payee names.
var BoilerplateTerms = []string{
	"Payer Name",
	"Payer",
	"Recipient Name",
	"Recipient",
	"Payee",
	"Beneficiary",
	"Transaction ID",
	"Transaction",
	"Reference",
	"Bank of",
	"Institution",
	"Account",
	"Branch",
	"Amount",
	"Value",
	"From:",
	"To:",
	"Nome do pagador",
	"Nome do recebedor",
	"Pagador",
	"Recebedor",
	"Destinatário",
	"Destinatario",
	"Favorecido",
	"Beneficiário",
	"Beneficiario",
	"ID da transação",
	"ID da transacao",
	"Identificador",
	"Instituição",
	"Instituicao",
	"Agência",
	"Agencia",
	"Conta",
	"Valor",
	"De:",
	"Para:",
}

// HeaderTokens mark document header lines that can never be a holder or counterparty name.
var HeaderTokens = []string{
	"picpay",
	"nubank",
	"mercado pago",
	"pagbank",
	"cpf",
	"cnpj",
	"report",
	"statement",
	"receipt",
	"page",
	"relatorio",
	"extrato",
	"comprovante",
	"pagina",
	"generated",
	"emitido",
}

var (
	boilerplatePattern = buildBoilerplatePattern(BoilerplateTerms)
	labelPunct         = regexp.MustCompile(`^[\s:;,.\-–|]+|[\s:;,.\-–|]+$`)
	referenceDigits    = regexp.MustCompile(`\b\d{9,}\b`)
	pixReference       = regexp.MustCompile(`\b[ED]\d{10,}[A-Za-z0-9]*\b`)
	pixReferenceLine   = regexp.MustCompile(`^[ED]\d{10,}[A-Za-z0-9]*$`)
)

func buildBoilerplatePattern(terms []string) *regexp.Regexp {
	alternatives := make([]string, 0, len(terms))
	for _, term := range terms {
		alt := regexp.QuoteMeta(term)
		last := []rune(term)[len([]rune(term))-1]
		if unicode.IsLetter(last) {
			alt += `(?:\s*:)?(?:$|[^\pL\pN])`
		}
		alternatives = append(alternatives, alt)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(alternatives, "|") + `)`)
}

// StripBoilerplate removes every boilerplate label from s case-insensitively, then collapses
// whitespace and trims leftover separators.
func StripBoilerplate(s string) string {
	// Replacing a match can expose an adjacent label, so repeat until stable.
	for {
		next := boilerplatePattern.ReplaceAllString(s, " ")
		if next == s {
			break
		}
		s = next
	}
	return labelPunct.ReplaceAllString(textnorm.CollapseSpaces(s), "")
}

// isHeaderLine reports whether line contains a document header token.
func isHeaderLine(line string) bool {
	folded := textnorm.Fold(line)
	if _, ok := matchTitle(folded); ok {
		return true
	}
	for _, token := range HeaderTokens {
		if containsWord(folded, token) {
			return true
		}
	}
	return false
}

// containsWord reports whether token appears in folded text at word boundaries.
func containsWord(folded, token string) bool {
	for idx := 0; idx <= len(folded)-len(token); {
		i := strings.Index(folded[idx:], token)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(token)
		if (start == 0 || !isWordByte(folded[start-1])) && (end == len(folded) || !isWordByte(folded[end]) || !isWordByte(token[len(token)-1])) {
			return true
		}
		idx = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// nameCandidate cleans a line that may hold a payer or payee name. It returns "" for lines
// that carry dates, amounts, times, references or header text.
func nameCandidate(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || money.IsDateLine(line) || money.IsTimestamp(line) || money.IsCurrencyLine(line) {
		return ""
	}
	if isHeaderLine(line) || isStatusLine(line) || isSettledLine(line) {
		return ""
	}
	name := StripBoilerplate(line)
	if name == "" || textnorm.HasDigit(name) || pixReferenceLine.MatchString(name) {
		return ""
	}
	return name
}

// joinNames joins name fragments in order, dropping repeats.
func joinNames(names []string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, name := range names {
		key := textnorm.Fold(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}
