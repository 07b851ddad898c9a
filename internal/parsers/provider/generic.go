package provider

import (
	"strings"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

const genericLookAhead = 5

// ParseGeneric pairs each date with the first currency value in the following 5 lines. The
// description is the text between them, timestamps excluded. The sign is kept as printed.
func ParseGeneric(lines []string) []parser.ParsedTransaction {
	var out []parser.ParsedTransaction
	for i := 0; i < len(lines); i++ {
		date, ok := money.FindDate(lines[i])
		if !ok {
			continue
		}

		var parts []string
		amountIdx := -1
		var token string
		end := min(len(lines), i+1+genericLookAhead)
		for j := i; j < end; j++ {
			current := strings.TrimSpace(lines[j])
			if j == i {
				current = money.StripDate(current)
			} else if money.IsDateLine(current) {
				break
			}

			if found, ok := money.FindCurrency(current); ok {
				token, amountIdx = found, j
				if rest := strings.Trim(strings.Replace(current, found, "", 1), " -"); rest != "" && !money.IsTimestamp(rest) {
					parts = append(parts, rest)
				}
				break
			}
			if current != "" && !money.IsTimestamp(current) {
				parts = append(parts, current)
			}
		}
		if amountIdx < 0 {
			continue
		}

		amount, err := money.ParseAmount(token)
		if err != nil {
			continue
		}
		txn, err := parser.NewParsedTransaction(date, textnorm.CollapseSpaces(strings.Join(parts, " ")), amount)
		if err != nil {
			continue
		}
		out = append(out, *txn)
		i = amountIdx
	}
	return out
}
