package parser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Parser is the strategy interface for all statement format parsers
type Parser interface {
	// Name returns parser identifier (e.g., "ofx", "csv", "provider")
	Name() string

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(path string, header []byte) bool

	// Parse extracts transactions from the file content
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*Statement, error)
}

// Statement is the parser output for one file.
type Statement struct {
	// Owner is the account holder name declared by the document, empty when not detected.
	Owner string

	// HeuristicDirection is set by sources whose sign is unreliable; their transactions go
	// through direction resolution before persistence.
	HeuristicDirection bool

	// Source names the parser (and provider variant) that produced the statement.
	Source       string
	Transactions []ParsedTransaction
}

// ParsedTransaction represents a transaction before direction resolution and deduplication.
// It lives only for the duration of one import call.
type ParsedTransaction struct {
	date        time.Time
	description string
	amount      decimal.Decimal // Sign as found in the source
	payer       string
	payee       string
	reference   string // Bank reference id, FITID for OFX
	nativeID    bool   // reference is guaranteed unique per account by the issuer
	memo        string
	outflow     bool   // always money out regardless of counterparty names
}

// Date returns the transaction date (no time component)
func (p *ParsedTransaction) Date() time.Time { return p.date }

// Description returns the transaction description
func (p *ParsedTransaction) Description() string { return p.description }

// Amount returns the amount with the sign found in the source
func (p *ParsedTransaction) Amount() decimal.Decimal { return p.amount }

// Payer returns the payer name, if any
func (p *ParsedTransaction) Payer() string { return p.payer }

// Payee returns the payee name, if any
func (p *ParsedTransaction) Payee() string { return p.payee }

// Reference returns the bank reference id, if any
func (p *ParsedTransaction) Reference() string { return p.reference }

// NativeID reports whether Reference is an issuer-guaranteed unique id
func (p *ParsedTransaction) NativeID() bool { return p.nativeID }

// Memo returns the provider memo
func (p *ParsedTransaction) Memo() string { return p.memo }

// Outflow reports whether the source guarantees the transaction is money out
func (p *ParsedTransaction) Outflow() bool { return p.outflow }

// MarkOutflow flags the transaction as money out and makes the amount negative
func (p *ParsedTransaction) MarkOutflow() {
	p.outflow = true
	p.amount = p.amount.Abs().Neg()
}

// SetParties sets the optional payer and payee
func (p *ParsedTransaction) SetParties(payer, payee string) {
	p.payer = strings.TrimSpace(payer)
	p.payee = strings.TrimSpace(payee)
}

// SetReference sets a bank reference id that is only a hint, not a uniqueness guarantee
func (p *ParsedTransaction) SetReference(ref string) {
	p.reference = strings.TrimSpace(ref)
	p.nativeID = false
}

// SetNativeID sets an issuer-guaranteed unique id (e.g. OFX FITID)
func (p *ParsedTransaction) SetNativeID(id string) {
	p.reference = strings.TrimSpace(id)
	p.nativeID = p.reference != ""
}

// SetMemo sets the optional memo field
func (p *ParsedTransaction) SetMemo(memo string) {
	p.memo = strings.TrimSpace(memo)
}

// NewParsedTransaction creates a validated parsed transaction.
// The date is truncated to a calendar date in UTC.
func NewParsedTransaction(date time.Time, description string, amount decimal.Decimal) (*ParsedTransaction, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("transaction date cannot be zero")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("amount cannot be zero")
	}

	return &ParsedTransaction{
		date:        time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		description: description,
		amount:      amount,
	}, nil
}
