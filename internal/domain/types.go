package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across the import pipeline.
var (
	ErrAlreadyExists      = errors.New("already exists")
	ErrUnauthorized       = errors.New("account not accessible by user")
	ErrNoTransactions     = errors.New("no transactions found")
	ErrUnreadableDocument = errors.New("unreadable document")
)

// Kind is the direction of a transaction: money in or money out.
// Use ValidateKind to ensure validity before use.
type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

// ValidateKind checks if kind is valid
func ValidateKind(k Kind) bool {
	return k == KindIncome || k == KindExpense
}

// KindFromSign maps a signed amount to a Kind. Negative is EXPENSE, everything else INCOME.
func KindFromSign(amount decimal.Decimal) Kind {
	if amount.IsNegative() {
		return KindExpense
	}
	return KindIncome
}

// Account is the import target. Name doubles as the owner string for direction inference
// when a statement does not declare its holder.
type Account struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAccount creates a validated account
func NewAccount(id, userID, name string) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	return &Account{ID: id, UserID: userID, Name: strings.TrimSpace(name)}, nil
}

// Category is a user-owned label, unique per (user, lower(name), kind).
type Category struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Kind   Kind   `json:"kind"`
}

// NewCategory creates a validated category
func NewCategory(id, userID, name string, kind Kind) (*Category, error) {
	if id == "" {
		return nil, fmt.Errorf("category ID cannot be empty")
	}
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("category name cannot be empty")
	}
	if !ValidateKind(kind) {
		return nil, fmt.Errorf("invalid kind: %s", kind)
	}
	return &Category{ID: id, UserID: userID, Name: strings.TrimSpace(name), Kind: kind}, nil
}

// CategoryKey is the case-insensitive identity of a category within one user.
type CategoryKey struct {
	Name string
	Kind Kind
}

// KeyFor builds the lookup key for a category name and kind
func KeyFor(name string, kind Kind) CategoryKey {
	return CategoryKey{Name: strings.ToLower(strings.TrimSpace(name)), Kind: kind}
}

// Transaction is the persisted output record.
// Amount is always an unsigned magnitude; direction lives in Kind.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	AccountID   string          `json:"accountId"`
	Date        string          `json:"date"` // ISO format YYYY-MM-DD
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        Kind            `json:"kind"`
	CategoryID  string          `json:"categoryId"`
	Fingerprint string          `json:"fingerprint"`
	Payer       string          `json:"payer,omitempty"`
	Payee       string          `json:"payee,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Source      string          `json:"source,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewTransaction creates a validated transaction. The amount is stored as its absolute value
// rounded to two decimal places.
func NewTransaction(id, accountID, date, description string, amount decimal.Decimal, kind Kind, fingerprint string) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction ID cannot be empty")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	if !ValidateKind(kind) {
		return nil, fmt.Errorf("invalid kind: %s", kind)
	}
	if fingerprint == "" {
		return nil, fmt.Errorf("fingerprint cannot be empty")
	}
	amount = amount.Abs().Round(2)
	if amount.IsZero() {
		return nil, fmt.Errorf("amount cannot be zero")
	}

	return &Transaction{
		ID:          id,
		AccountID:   accountID,
		Date:        date,
		Description: strings.TrimSpace(description),
		Amount:      amount,
		Kind:        kind,
		Fingerprint: fingerprint,
	}, nil
}

// ImportResult is the summary returned for one import call.
type ImportResult struct {
	ImportedCount  int    `json:"importedCount"`
	DuplicateCount int    `json:"duplicateCount"`
	Message        string `json:"message"`
	SkippedCount   int    `json:"skippedCount,omitempty"`
	Source         string `json:"source,omitempty"`
}
