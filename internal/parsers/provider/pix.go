package provider

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
)

const (
	pixLookBehind = 3
	pixLookAhead  = 10
)

// ParsePIX scans for date lines. The payer is the closest name in the 3 lines before the date;
// within the next 10 lines it looks for an end-to-end id (E/D + 10 digits + alphanumerics) and
// the first currency value, and once both are found the next line that is neither is the payee.
func ParsePIX(lines []string) []parser.ParsedTransaction {
	var out []parser.ParsedTransaction
	for i, line := range lines {
		date, ok := money.FindDate(line)
		if !ok {
			continue
		}

		var payer string
		for j := i - 1; j >= 0 && j >= i-pixLookBehind; j-- {
			if money.IsDateLine(lines[j]) {
				continue
			}
			if name := nameCandidate(lines[j]); name != "" {
				payer = name
				break
			}
		}

		var (
			reference, payee string
			amount           decimal.Decimal
			haveAmount       bool
		)
		end := min(len(lines), i+1+pixLookAhead)
		for j := i; j < end; j++ {
			current := strings.TrimSpace(lines[j])
			if j == i {
				current = money.StripDate(current)
			} else if money.IsDateLine(current) {
				break
			}

			if reference != "" && haveAmount {
				if current == "" || money.IsCurrencyLine(current) || isPIXReference(current) {
					continue
				}
				if name := nameCandidate(current); name != "" {
					payee = name
					break
				}
				continue
			}

			if reference == "" {
				reference = pixReference.FindString(current)
			}
			if !haveAmount {
				if token, ok := money.FindCurrency(current); ok {
					if parsed, err := money.ParseAmount(token); err == nil {
						amount, haveAmount = parsed, true
					}
				}
			}
		}
		if !haveAmount {
			continue
		}

		txn, err := parser.NewParsedTransaction(date, pixDescription(payer, payee), amount)
		if err != nil {
			continue
		}
		txn.SetParties(payer, payee)
		txn.SetReference(reference)
		out = append(out, *txn)
	}
	return out
}

func isPIXReference(line string) bool {
	return pixReferenceLine.MatchString(StripBoilerplate(line))
}

func pixDescription(payer, payee string) string {
	switch {
	case payee != "":
		return "PIX " + payee
	case payer != "":
		return "PIX " + payer
	default:
		return "PIX transfer"
	}
}
