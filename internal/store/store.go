// Package store defines the persistence boundary of the import pipeline and its SQLite
// implementation.
package store

import (
	"context"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

// Store persists accounts, categories and transactions.
//
// BulkInsertSkippingDuplicates must treat a (account, fingerprint) uniqueness conflict as a
// skip rather than an error. A row the backend rejects is counted as failed and the rest of the
// batch is still written. The returned error is reserved for failures that stop the batch, and
// the InsertResult then holds what was stored before it.
type Store interface {
	AuthorizeAccount(ctx context.Context, userID, accountID string) (*domain.Account, error)
	CreateAccount(ctx context.Context, userID, name string) (*domain.Account, error)
	ExistingFingerprints(ctx context.Context, accountID string) (map[string]struct{}, error)
	ListCategories(ctx context.Context, userID string) ([]*domain.Category, error)
	UpsertCategory(ctx context.Context, userID, name string, kind domain.Kind) (*domain.Category, error)
	BulkInsertSkippingDuplicates(ctx context.Context, txns []*domain.Transaction) (InsertResult, error)
	Close() error
}

// InsertResult counts the outcome of a bulk insert.
type InsertResult struct {
	Inserted   int
	Duplicates int
	Failed     int
}
