package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

// setupTestDB creates a store backed by a temporary database file
func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "Failed to create test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func newTxn(t *testing.T, id, accountID, fingerprint string) *domain.Transaction {
	t.Helper()
	txn, err := domain.NewTransaction(id, accountID, "2024-03-05", "Transfer to Joao Souza",
		decimal.RequireFromString("120"), domain.KindExpense, fingerprint)
	require.NoError(t, err)
	txn.UserID = "user-1"
	txn.CategoryID = "cat-1"
	return txn
}

func TestOpenSQLite_CreatesTables(t *testing.T) {
	s := setupTestDB(t)

	for _, table := range []string{"accounts", "categories", "transactions"} {
		var count int
		err := s.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "%s table should exist", table)
	}
}

func TestOpenSQLite_InMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CreateAccount(context.Background(), "user-1", "Checking")
	assert.NoError(t, err)
}

func TestAuthorizeAccount(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	account, err := s.CreateAccount(ctx, "user-1", "  Maria Silva  ")
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", account.Name)
	assert.NotEmpty(t, account.ID)

	tests := []struct {
		name      string
		userID    string
		accountID string
		wantErr   error
	}{
		{"owner", "user-1", account.ID, nil},
		{"other user", "user-2", account.ID, domain.ErrUnauthorized},
		{"missing account", "user-1", "does-not-exist", domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.AuthorizeAccount(ctx, tt.userID, tt.accountID)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Maria Silva", got.Name)
			assert.Equal(t, "user-1", got.UserID)
		})
	}
}

func TestCreateAccount_Invalid(t *testing.T) {
	s := setupTestDB(t)
	_, err := s.CreateAccount(context.Background(), "", "Checking")
	assert.Error(t, err)
	_, err = s.CreateAccount(context.Background(), "user-1", " ")
	assert.Error(t, err)
}

func TestUpsertCategory(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	first, err := s.UpsertCategory(ctx, "user-1", "Transport", domain.KindExpense)
	require.NoError(t, err)

	again, err := s.UpsertCategory(ctx, "user-1", "TRANSPORT", domain.KindExpense)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "case-insensitive name must resolve to the same category")
	assert.Equal(t, "Transport", again.Name, "first spelling wins")

	income, err := s.UpsertCategory(ctx, "user-1", "Transport", domain.KindIncome)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, income.ID, "kind is part of the identity")

	otherUser, err := s.UpsertCategory(ctx, "user-2", "Transport", domain.KindExpense)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, otherUser.ID, "categories are per user")

	categories, err := s.ListCategories(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	_, err = s.UpsertCategory(ctx, "user-1", "", domain.KindExpense)
	assert.Error(t, err)
	_, err = s.UpsertCategory(ctx, "user-1", "Food", domain.Kind("BOTH"))
	assert.Error(t, err)
}

func TestBulkInsertSkippingDuplicates(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	res, err := s.BulkInsertSkippingDuplicates(ctx, []*domain.Transaction{
		newTxn(t, "t1", "acc-1", "fp-1"),
		newTxn(t, "t2", "acc-1", "fp-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Inserted: 2}, res)

	// fp-1 conflicts within acc-1; the same fingerprint in acc-2 is distinct.
	res, err = s.BulkInsertSkippingDuplicates(ctx, []*domain.Transaction{
		newTxn(t, "t3", "acc-1", "fp-1"),
		newTxn(t, "t4", "acc-1", "fp-3"),
		newTxn(t, "t5", "acc-2", "fp-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Inserted: 2, Duplicates: 1}, res)

	fps, err := s.ExistingFingerprints(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, fps, 3)
	assert.Contains(t, fps, "fp-1")
	assert.Contains(t, fps, "fp-3")

	stored, err := s.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "120.00", stored[0].Amount.StringFixed(2))
	assert.Equal(t, domain.KindExpense, stored[0].Kind)
	assert.False(t, stored[0].CreatedAt.IsZero())
}

func TestBulkInsertSkippingDuplicates_RejectedRowKeepsBatch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.DB().Exec(`
		CREATE TRIGGER reject_bad BEFORE INSERT ON transactions
		WHEN NEW.description = 'bad'
		BEGIN SELECT RAISE(ABORT, 'malformed row'); END`)
	require.NoError(t, err)

	bad := newTxn(t, "t2", "acc-1", "fp-2")
	bad.Description = "bad"
	res, err := s.BulkInsertSkippingDuplicates(ctx, []*domain.Transaction{
		newTxn(t, "t1", "acc-1", "fp-1"),
		bad,
		newTxn(t, "t3", "acc-1", "fp-3"),
	})
	require.NoError(t, err)
	assert.Equal(t, InsertResult{Inserted: 2, Failed: 1}, res)

	stored, err := s.ListTransactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestBulkInsertSkippingDuplicates_Canceled(t *testing.T) {
	s := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.BulkInsertSkippingDuplicates(ctx, []*domain.Transaction{newTxn(t, "t1", "acc-1", "fp-1")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Inserted)
}

func TestBulkInsertSkippingDuplicates_Empty(t *testing.T) {
	s := setupTestDB(t)
	res, err := s.BulkInsertSkippingDuplicates(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestExistingFingerprints_Empty(t *testing.T) {
	s := setupTestDB(t)
	fps, err := s.ExistingFingerprints(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Empty(t, fps)
}
