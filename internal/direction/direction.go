// Package direction decides whether a parsed transaction is money in or money out.
package direction

import (
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

// Result is the resolved direction with the amount reduced to its magnitude.
type Result struct {
	Amount decimal.Decimal
	Kind   domain.Kind
}

// Resolve applies, in order: the payer is the owner → EXPENSE; the payee is the owner →
// INCOME; a negative amount → EXPENSE; otherwise INCOME. Names match when either contains the
// other, ignoring case and accents. An empty owner never matches.
func Resolve(amount decimal.Decimal, payer, payee, owner string) Result {
	result := Result{Amount: amount.Abs()}
	switch {
	case textnorm.MutuallyContains(payer, owner):
		result.Kind = domain.KindExpense
	case textnorm.MutuallyContains(payee, owner):
		result.Kind = domain.KindIncome
	default:
		result.Kind = domain.KindFromSign(amount)
	}
	return result
}

// ResolveParsed resolves a parsed transaction against owner. Transactions flagged as outflows
// by their source are always EXPENSE.
func ResolveParsed(txn *parser.ParsedTransaction, owner string) Result {
	if txn.Outflow() {
		return Result{Amount: txn.Amount().Abs(), Kind: domain.KindExpense}
	}
	return Resolve(txn.Amount(), txn.Payer(), txn.Payee(), owner)
}
