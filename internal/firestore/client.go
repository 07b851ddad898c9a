package firestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/store"
)

// Collection names
const (
	AccountsCollection     = "stmtimport-accounts"
	CategoriesCollection   = "stmtimport-categories"
	TransactionsCollection = "stmtimport-transactions"
)

// Document ids for categories and transactions are name-based UUIDs so that the uniqueness
// rules are enforced by Create returning AlreadyExists.
var (
	categoryNamespace    = uuid.MustParse("6f1f3d2a-4c2e-4b8e-9a57-0d3c1f0b7e21")
	transactionNamespace = uuid.MustParse("b3c9a4e0-8d1f-4f6a-a2c5-7e9d0b1c4f38")
)

// Client wraps Firestore client with import-specific operations
type Client struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	projectID string
	now       func() time.Time
}

var _ store.Store = (*Client)(nil)

// NewClient creates a new Firestore client. credentialsFile is optional; when empty,
// Application Default Credentials are used.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Client{
		Firestore: firestoreClient,
		Auth:      authClient,
		projectID: projectID,
		now:       time.Now,
	}, nil
}

// Close closes the Firestore client
func (c *Client) Close() error {
	return c.Firestore.Close()
}

// Account is the Firestore representation of domain.Account
type Account struct {
	ID        string    `firestore:"id"`
	UserID    string    `firestore:"userId"`
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// Category is the Firestore representation of domain.Category
type Category struct {
	ID      string `firestore:"id"`
	UserID  string `firestore:"userId"`
	Name    string `firestore:"name"`
	NameKey string `firestore:"nameKey"`
	Kind    string `firestore:"kind"`
}

// Transaction is the Firestore representation of domain.Transaction.
// Amount is stored as a fixed two-decimal string so no precision is lost.
type Transaction struct {
	ID          string    `firestore:"id"`
	UserID      string    `firestore:"userId"`
	AccountID   string    `firestore:"accountId"`
	Date        string    `firestore:"date"`
	Description string    `firestore:"description"`
	Amount      string    `firestore:"amount"`
	Kind        string    `firestore:"kind"`
	CategoryID  string    `firestore:"categoryId"`
	Fingerprint string    `firestore:"fingerprint"`
	Payer       string    `firestore:"payer,omitempty"`
	Payee       string    `firestore:"payee,omitempty"`
	Reference   string    `firestore:"reference,omitempty"`
	Source      string    `firestore:"source,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// Validate checks if the Transaction has valid data
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if t.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if t.AccountID == "" {
		return fmt.Errorf("account ID is required")
	}
	if t.Fingerprint == "" {
		return fmt.Errorf("fingerprint is required")
	}

	// Validate date format
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}

	if _, err := decimal.NewFromString(t.Amount); err != nil {
		return fmt.Errorf("invalid amount %q: %w", t.Amount, err)
	}
	if !domain.ValidateKind(domain.Kind(t.Kind)) {
		return fmt.Errorf("invalid kind %q", t.Kind)
	}
	return nil
}

// toDocument converts a domain transaction to its Firestore document
func toDocument(t *domain.Transaction) *Transaction {
	return &Transaction{
		ID:          t.ID,
		UserID:      t.UserID,
		AccountID:   t.AccountID,
		Date:        t.Date,
		Description: t.Description,
		Amount:      t.Amount.StringFixed(2),
		Kind:        string(t.Kind),
		CategoryID:  t.CategoryID,
		Fingerprint: t.Fingerprint,
		Payer:       t.Payer,
		Payee:       t.Payee,
		Reference:   t.Reference,
		Source:      t.Source,
		CreatedAt:   t.CreatedAt,
	}
}

// transactionDocID derives the document id of a transaction from its uniqueness key.
func transactionDocID(accountID, fingerprint string) string {
	return uuid.NewSHA1(transactionNamespace, []byte(accountID+"|"+fingerprint)).String()
}

// categoryDocID derives the document id of a category from its uniqueness key.
func categoryDocID(userID string, key domain.CategoryKey) string {
	return uuid.NewSHA1(categoryNamespace, []byte(userID+"|"+key.Name+"|"+string(key.Kind))).String()
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

// CreateAccount creates an account owned by userID.
func (c *Client) CreateAccount(ctx context.Context, userID, name string) (*domain.Account, error) {
	account, err := domain.NewAccount(uuid.NewString(), userID, name)
	if err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}
	account.CreatedAt = c.now().UTC()

	doc := &Account{ID: account.ID, UserID: account.UserID, Name: account.Name, CreatedAt: account.CreatedAt}
	if _, err := c.Firestore.Collection(AccountsCollection).Doc(account.ID).Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// AuthorizeAccount returns the account when it exists and belongs to userID.
func (c *Client) AuthorizeAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account %q: %w", accountID, domain.ErrUnauthorized)
	}
	snap, err := c.Firestore.Collection(AccountsCollection).Doc(accountID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}

	var doc Account
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse account: %w", err)
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrUnauthorized)
	}
	return &domain.Account{ID: doc.ID, UserID: doc.UserID, Name: doc.Name, CreatedAt: doc.CreatedAt}, nil
}

// ExistingFingerprints returns every fingerprint already stored for accountID.
func (c *Client) ExistingFingerprints(ctx context.Context, accountID string) (map[string]struct{}, error) {
	iter := c.Firestore.Collection(TransactionsCollection).
		Where("accountId", "==", accountID).
		Select("fingerprint").
		Documents(ctx)
	defer iter.Stop()

	fingerprints := make(map[string]struct{})
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions for account %s: %w", accountID, err)
		}
		if fp, ok := doc.Data()["fingerprint"].(string); ok && fp != "" {
			fingerprints[fp] = struct{}{}
		}
	}
	return fingerprints, nil
}

// ListCategories retrieves all categories for a user
func (c *Client) ListCategories(ctx context.Context, userID string) ([]*domain.Category, error) {
	iter := c.Firestore.Collection(CategoriesCollection).
		Where("userId", "==", userID).
		Documents(ctx)
	defer iter.Stop()

	var categories []*domain.Category
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate categories for user %s: %w", userID, err)
		}

		var cat Category
		if err := doc.DataTo(&cat); err != nil {
			return nil, fmt.Errorf("failed to parse category: %w", err)
		}
		categories = append(categories, &domain.Category{
			ID:     cat.ID,
			UserID: cat.UserID,
			Name:   cat.Name,
			Kind:   domain.Kind(cat.Kind),
		})
	}
	return categories, nil
}

// UpsertCategory returns the category matching (lower(name), kind) for userID, creating it if
// absent.
func (c *Client) UpsertCategory(ctx context.Context, userID, name string, kind domain.Kind) (*domain.Category, error) {
	key := domain.KeyFor(name, kind)
	id := categoryDocID(userID, key)
	category, err := domain.NewCategory(id, userID, name, kind)
	if err != nil {
		return nil, fmt.Errorf("invalid category: %w", err)
	}

	ref := c.Firestore.Collection(CategoriesCollection).Doc(id)
	doc := &Category{ID: id, UserID: userID, Name: category.Name, NameKey: key.Name, Kind: string(kind)}
	_, err = ref.Create(ctx, doc)
	if err == nil {
		return category, nil
	}
	if !isAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	var existing Category
	if err := snap.DataTo(&existing); err != nil {
		return nil, fmt.Errorf("failed to parse category: %w", err)
	}
	return &domain.Category{ID: existing.ID, UserID: existing.UserID, Name: existing.Name, Kind: domain.Kind(existing.Kind)}, nil
}

// BulkInsertSkippingDuplicates writes txns with a BulkWriter. Documents that already exist for
// the same (account, fingerprint) are skipped. Documents that fail validation or that Firestore
// rejects are logged and counted as failed; the rest of the batch is still written.
func (c *Client) BulkInsertSkippingDuplicates(ctx context.Context, txns []*domain.Transaction) (store.InsertResult, error) {
	var result store.InsertResult
	if len(txns) == 0 {
		return result, nil
	}
	log := logger.FromContext(ctx)

	bw := c.Firestore.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(txns))
	queued := make([]*domain.Transaction, 0, len(txns))
	createdAt := c.now().UTC()
	for _, t := range txns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = createdAt
		}
		doc := toDocument(t)
		if err := doc.Validate(); err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("invalid transaction, not stored")
			result.Failed++
			continue
		}
		ref := c.Firestore.Collection(TransactionsCollection).Doc(transactionDocID(t.AccountID, t.Fingerprint))
		job, err := bw.Create(ref, doc)
		if err != nil {
			log.Warn().Err(err).Str("transaction_id", t.ID).Msg("failed to enqueue transaction")
			result.Failed++
			continue
		}
		jobs = append(jobs, job)
		queued = append(queued, t)
	}
	bw.End()

	for i, job := range jobs {
		_, err := job.Results()
		switch {
		case err == nil:
			result.Inserted++
		case isAlreadyExists(err):
			log.Debug().Str("fingerprint", queued[i].Fingerprint).Msg("transaction already stored, skipping")
			result.Duplicates++
		default:
			log.Warn().Err(err).Str("transaction_id", queued[i].ID).Msg("failed to create transaction")
			result.Failed++
		}
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
