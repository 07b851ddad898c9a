package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
)

// SQLite is the embedded Store used by the CLI and tests.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at dbPath and initializes the schema.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	statements := []struct {
		name string
		ddl  string
	}{
		{"accounts table", `
			CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`},
		{"categories table", `
			CREATE TABLE IF NOT EXISTS categories (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				name_key TEXT NOT NULL,
				kind TEXT NOT NULL,
				UNIQUE (user_id, name_key, kind)
			)`},
		{"transactions table", `
			CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				account_id TEXT NOT NULL,
				date TEXT NOT NULL,
				description TEXT NOT NULL,
				amount TEXT NOT NULL,
				kind TEXT NOT NULL,
				category_id TEXT NOT NULL,
				fingerprint TEXT NOT NULL,
				payer TEXT NOT NULL DEFAULT '',
				payee TEXT NOT NULL DEFAULT '',
				reference TEXT NOT NULL DEFAULT '',
				source TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL,
				UNIQUE (fingerprint, account_id)
			)`},
		{"transactions account index", `
			CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id)`},
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}

// DB returns the underlying database connection
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateAccount creates an account owned by userID.
func (s *SQLite) CreateAccount(ctx context.Context, userID, name string) (*domain.Account, error) {
	account, err := domain.NewAccount(uuid.NewString(), userID, name)
	if err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}
	account.CreatedAt = s.now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
	`, account.ID, account.UserID, account.Name, account.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// AuthorizeAccount returns the account when it exists and belongs to userID.
// Missing and foreign accounts are indistinguishable: both yield domain.ErrUnauthorized.
func (s *SQLite) AuthorizeAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM accounts WHERE id = ?
	`, accountID).Scan(&account.ID, &account.UserID, &account.Name, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.UserID != userID {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrUnauthorized)
	}
	return &account, nil
}

// ExistingFingerprints returns every fingerprint already stored for accountID.
func (s *SQLite) ExistingFingerprints(ctx context.Context, accountID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint FROM transactions WHERE account_id = ?
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}
	defer rows.Close()

	fingerprints := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fingerprints[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprint rows: %w", err)
	}
	return fingerprints, nil
}

// ListCategories returns the categories owned by userID ordered by name.
func (s *SQLite) ListCategories(ctx context.Context, userID string) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, kind FROM categories WHERE user_id = ? ORDER BY name_key, kind
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}
	return categories, nil
}

// UpsertCategory returns the category matching (lower(name), kind) for userID, creating it if
// absent. Concurrent callers converge on the same row.
func (s *SQLite) UpsertCategory(ctx context.Context, userID, name string, kind domain.Kind) (*domain.Category, error) {
	candidate, err := domain.NewCategory(uuid.NewString(), userID, name, kind)
	if err != nil {
		return nil, fmt.Errorf("invalid category: %w", err)
	}
	key := domain.KeyFor(candidate.Name, kind)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, name_key, kind) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, name_key, kind) DO NOTHING
	`, candidate.ID, userID, candidate.Name, key.Name, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert category: %w", err)
	}

	var c domain.Category
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, kind FROM categories WHERE user_id = ? AND name_key = ? AND kind = ?
	`, userID, key.Name, string(kind)).Scan(&c.ID, &c.UserID, &c.Name, &c.Kind)
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return &c, nil
}

// BulkInsertSkippingDuplicates inserts txns one statement at a time. Rows whose fingerprint
// already exists for the account are skipped; rows the database rejects are logged and counted
// as failed without affecting the others.
func (s *SQLite) BulkInsertSkippingDuplicates(ctx context.Context, txns []*domain.Transaction) (InsertResult, error) {
	var result InsertResult
	if len(txns) == 0 {
		return result, nil
	}
	log := logger.FromContext(ctx)

	stmt, err := s.db.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, user_id, account_id, date, description, amount, kind, category_id,
			fingerprint, payer, payee, reference, source, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint, account_id) DO NOTHING
	`)
	if err != nil {
		return result, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := s.now().UTC()
	for _, t := range txns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = createdAt
		}
		res, err := stmt.ExecContext(ctx,
			t.ID, t.UserID, t.AccountID, t.Date, t.Description, t.Amount.StringFixed(2), string(t.Kind),
			t.CategoryID, t.Fingerprint, t.Payer, t.Payee, t.Reference, t.Source, t.CreatedAt)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("failed to insert transaction")
			result.Failed++
			continue
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			result.Duplicates++
			continue
		}
		result.Inserted++
	}

	log.Debug().
		Int("requested", len(txns)).
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Int("failed", result.Failed).
		Msg("bulk insert complete")
	return result, nil
}

// ListTransactions returns the stored transactions of an account ordered by date.
func (s *SQLite) ListTransactions(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_id, date, description, amount, kind, category_id,
			fingerprint, payer, payee, reference, source, created_at
		FROM transactions WHERE account_id = ? ORDER BY date, created_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var amount string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Date, &t.Description, &amount, &t.Kind,
			&t.CategoryID, &t.Fingerprint, &t.Payer, &t.Payee, &t.Reference, &t.Source, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(strings.TrimSpace(amount)); err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		txns = append(txns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return txns, nil
}
