package provider

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

const (
	billLookAhead  = 5
	billLookBehind = 8
)

// SettledMarkers are the folded spellings that mark a bill payment as settled.
var SettledMarkers = []string{"settled", "paid", "liquidado", "liquidada", "pago", "paga", "quitado"}

var barcodeDigits = regexp.MustCompile(`^\d{25,}$`)

func isSettledLine(line string) bool {
	folded := textnorm.Fold(line)
	for _, marker := range SettledMarkers {
		if containsWord(folded, marker) {
			return true
		}
	}
	return false
}

// isBarcode reports whether line is a long digit-only barcode, ignoring the spaces and dots
// used to group its digits.
func isBarcode(line string) bool {
	compact := strings.NewReplacer(" ", "", ".", "", "-", "").Replace(strings.TrimSpace(line))
	return barcodeDigits.MatchString(compact)
}

// ParseBillPayments accepts a date line when the next 5 lines hold both a currency value and a
// settled marker. Bill payments are always outflows. The payee is the first line within the 8
// lines before the date that is neither a barcode nor boilerplate.
func ParseBillPayments(lines []string) []parser.ParsedTransaction {
	var out []parser.ParsedTransaction
	for i := 0; i < len(lines); i++ {
		date, ok := money.FindDate(lines[i])
		if !ok {
			continue
		}

		var (
			amount     decimal.Decimal
			haveAmount bool
			settled    bool
			lastIdx    = i
		)
		end := min(len(lines), i+1+billLookAhead)
		for j := i; j < end && !(haveAmount && settled); j++ {
			current := lines[j]
			if j == i {
				current = money.StripDate(current)
			}
			if !haveAmount {
				if token, ok := money.FindCurrency(current); ok {
					if parsed, err := money.ParseAmount(token); err == nil {
						amount, haveAmount = parsed, true
						lastIdx = max(lastIdx, j)
					}
				}
			}
			if !settled && isSettledLine(current) {
				settled = true
				lastIdx = max(lastIdx, j)
			}
		}
		if !haveAmount || !settled {
			continue
		}

		var payee string
		for j := i - 1; j >= 0 && j >= i-billLookBehind; j-- {
			if isBarcode(lines[j]) {
				continue
			}
			if name := nameCandidate(lines[j]); name != "" {
				payee = name
				break
			}
		}

		txn, err := parser.NewParsedTransaction(date, billDescription(payee), amount)
		if err != nil {
			continue
		}
		txn.SetParties("", payee)
		txn.MarkOutflow()
		out = append(out, *txn)

		// Due dates inside the accepted window belong to this payment.
		i = lastIdx
	}
	return out
}

func billDescription(payee string) string {
	if payee == "" {
		return "Bill payment"
	}
	return "Bill payment " + payee
}
