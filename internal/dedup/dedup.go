// Package dedup provides transaction deduplication via SHA256 fingerprinting.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

// Suffixes appended to a shared base fingerprint for the two legs of an internal transfer.
const (
	OutgoingLegSuffix = ":out"
	IncomingLegSuffix = ":in"
)

// Fingerprint creates a SHA256 hash identifying a transaction within an account.
// Format: SHA256("{isoDate}|{description}|{abs amount}|{accountID}|{reference}")
// The description is lower-cased with internal whitespace collapsed; the amount is the
// absolute value with exactly 2 decimal places.
func Fingerprint(date time.Time, description string, amount decimal.Decimal, accountID, reference string) string {
	input := strings.Join([]string{
		date.Format(money.ISODate),
		NormalizeDescription(description),
		money.FormatAmount(amount),
		accountID,
		strings.TrimSpace(reference),
	}, "|")

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// NormalizeDescription lower-cases s and collapses whitespace.
func NormalizeDescription(s string) string {
	return textnorm.CollapseSpaces(strings.ToLower(s))
}

// ForParsed returns the fingerprint of a parsed transaction. Native ids are used verbatim.
func ForParsed(txn *parser.ParsedTransaction, accountID string) string {
	if txn.NativeID() {
		return txn.Reference()
	}
	return Fingerprint(txn.Date(), txn.Description(), txn.Amount(), accountID, txn.Reference())
}

// TransferLegs derives the fingerprints of the outgoing and incoming legs of an internal
// transfer from their shared base, so both legs can land in the same account.
func TransferLegs(base string) (outgoing, incoming string) {
	return base + OutgoingLegSuffix, base + IncomingLegSuffix
}

// Gate admits each fingerprint at most once per import and never admits one that is already
// stored for the account.
type Gate struct {
	persisted map[string]struct{}
	batch     map[string]struct{}
}

// NewGate creates a gate over the fingerprints already persisted for the target account.
func NewGate(persisted map[string]struct{}) *Gate {
	if persisted == nil {
		persisted = make(map[string]struct{})
	}
	return &Gate{
		persisted: persisted,
		batch:     make(map[string]struct{}),
	}
}

// Admit reports whether fingerprint is new. Admitted fingerprints are remembered for the rest
// of the batch.
func (g *Gate) Admit(fingerprint string) bool {
	if _, ok := g.persisted[fingerprint]; ok {
		return false
	}
	if _, ok := g.batch[fingerprint]; ok {
		return false
	}
	g.batch[fingerprint] = struct{}{}
	return true
}

// Admitted returns the number of fingerprints admitted so far.
func (g *Gate) Admitted() int {
	return len(g.batch)
}
