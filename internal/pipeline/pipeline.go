// Package pipeline orchestrates one statement import: authorize, dispatch, resolve direction,
// deduplicate, categorize and persist.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/dedup"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/direction"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/metrics"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parsers/provider"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/registry"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/store"
)

// Result messages
const (
	MessageNoTransactions     = "no transactions found"
	MessageUnreadableDocument = "unreadable document"
)

// internalTransferSource is the Statement.Source of internal transfer reports.
var internalTransferSource = "provider/" + provider.KindInternalTransfer.String()

// AccountAuthorizer validates that a user may import into an account.
type AccountAuthorizer interface {
	AuthorizeAccount(ctx context.Context, userID, accountID string) (*domain.Account, error)
}

// Categorizer returns one category id per item.
type Categorizer interface {
	Categorize(ctx context.Context, userID string, items []categorize.Item) ([]string, error)
}

// Request is one uploaded file to import into an account.
type Request struct {
	UserID    string
	AccountID string
	Filename  string
	Content   []byte
}

// Service runs imports.
type Service struct {
	store       store.Store
	registry    *registry.Registry
	categorizer Categorizer
	metrics     metrics.Recorder
	now         func() time.Time
	newID       func() string
}

// NewService creates an import service. recorder may be nil.
func NewService(st store.Store, reg *registry.Registry, categorizer Categorizer, recorder metrics.Recorder) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if categorizer == nil {
		return nil, fmt.Errorf("categorizer cannot be nil")
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &Service{
		store:       st,
		registry:    reg,
		categorizer: categorizer,
		metrics:     recorder,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// Import parses req.Content and stores its new transactions in req.AccountID.
//
// Authorization failures are returned as errors wrapping domain.ErrUnauthorized before any
// parsing happens. Unreadable or empty documents are not errors: they produce a result with
// zero counts and an explanatory message.
func (s *Service) Import(ctx context.Context, req Request) (*domain.ImportResult, error) {
	start := s.now()
	log := logger.FromContext(ctx).With().
		Str("account_id", req.AccountID).
		Str("file", filepath.Base(req.Filename)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	if req.UserID == "" {
		s.metrics.RecordImportError("unauthorized")
		return nil, fmt.Errorf("user ID cannot be empty: %w", domain.ErrUnauthorized)
	}
	account, err := s.store.AuthorizeAccount(ctx, req.UserID, req.AccountID)
	if err != nil {
		reason := "store"
		if errors.Is(err, domain.ErrUnauthorized) {
			reason = "unauthorized"
		}
		s.metrics.RecordImportError(reason)
		return nil, err
	}

	stmt, source, err := s.parse(ctx, req, account)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Str("parser", source).Msg("document could not be parsed")
		return s.finish(start, &domain.ImportResult{Message: MessageUnreadableDocument, Source: source}), nil
	}
	if len(stmt.Transactions) == 0 {
		return s.finish(start, &domain.ImportResult{Message: MessageNoTransactions, Source: source}), nil
	}

	owner := ""
	if stmt.HeuristicDirection {
		owner = stmt.Owner
		if owner == "" {
			owner = account.Name
		}
	}

	existing, err := s.store.ExistingFingerprints(ctx, account.ID)
	if err != nil {
		s.metrics.RecordImportError("store")
		return nil, fmt.Errorf("failed to load existing fingerprints: %w", err)
	}
	gate := dedup.NewGate(existing)

	var (
		pending    []*domain.Transaction
		duplicates int
		skipped    int
	)
	for i := range stmt.Transactions {
		parsed := &stmt.Transactions[i]
		resolved := direction.ResolveParsed(parsed, owner)

		fingerprint := dedup.ForParsed(parsed, account.ID)
		if source == internalTransferSource {
			out, in := dedup.TransferLegs(fingerprint)
			fingerprint = in
			if resolved.Kind == domain.KindExpense {
				fingerprint = out
			}
		}
		if !gate.Admit(fingerprint) {
			duplicates++
			continue
		}

		txn, err := domain.NewTransaction(s.newID(), account.ID, parsed.Date().Format(money.ISODate),
			parsed.Description(), resolved.Amount, resolved.Kind, fingerprint)
		if err != nil {
			log.Debug().Err(err).Str("description", parsed.Description()).Msg("skipping transaction")
			skipped++
			continue
		}
		txn.UserID = req.UserID
		txn.Payer = parsed.Payer()
		txn.Payee = parsed.Payee()
		txn.Reference = parsed.Reference()
		txn.Source = source
		pending = append(pending, txn)
	}

	if len(pending) > 0 {
		items := make([]categorize.Item, len(pending))
		for i, txn := range pending {
			items[i] = categorize.Item{Description: txn.Description, Kind: txn.Kind}
		}
		ids, err := s.categorizer.Categorize(ctx, req.UserID, items)
		if err != nil {
			s.metrics.RecordImportError("categorize")
			return nil, fmt.Errorf("failed to categorize transactions: %w", err)
		}
		for i, txn := range pending {
			txn.CategoryID = ids[i]
		}
	}

	stored, err := s.store.BulkInsertSkippingDuplicates(ctx, pending)
	if err != nil {
		s.metrics.RecordImportError("store")
		if ctx.Err() != nil || stored.Inserted == 0 {
			return nil, fmt.Errorf("failed to store transactions: %w", err)
		}
		log.Error().Err(err).Int("inserted", stored.Inserted).Msg("store stopped before the end of the batch")
		skipped += len(pending) - stored.Inserted - stored.Duplicates - stored.Failed
	}
	inserted := stored.Inserted
	// Rows the store skipped lost a uniqueness race and are duplicates too.
	duplicates += stored.Duplicates
	skipped += stored.Failed

	result := &domain.ImportResult{
		ImportedCount:  inserted,
		DuplicateCount: duplicates,
		SkippedCount:   skipped,
		Source:         source,
		Message:        fmt.Sprintf("imported %d transactions, %d duplicates", inserted, duplicates),
	}
	log.Info().
		Str("source", source).
		Int("imported", inserted).
		Int("duplicates", duplicates).
		Int("skipped", skipped).
		Msg("import complete")
	return s.finish(start, result), nil
}

// ImportFile reads path and imports it.
func (s *Service) ImportFile(ctx context.Context, userID, accountID, path string) (*domain.ImportResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return s.Import(ctx, Request{
		UserID:    userID,
		AccountID: accountID,
		Filename:  path,
		Content:   content,
	})
}

// parse dispatches the request to a parser. source is the parser name, refined to the
// statement's own source when parsing succeeds.
func (s *Service) parse(ctx context.Context, req Request, account *domain.Account) (*parser.Statement, string, error) {
	p, err := s.registry.FindParser(req.Filename, req.Content)
	if err != nil {
		return nil, "none", err
	}

	meta, err := parser.NewMetadata(req.Filename, s.now())
	if err != nil {
		return nil, p.Name(), fmt.Errorf("failed to create metadata: %w", err)
	}
	meta.SetAccount(account.ID, account.Name)

	stmt, err := p.Parse(ctx, bytes.NewReader(req.Content), meta)
	if err != nil {
		return nil, p.Name(), err
	}
	source := stmt.Source
	if source == "" {
		source = p.Name()
	}
	return stmt, source, nil
}

func (s *Service) finish(start time.Time, result *domain.ImportResult) *domain.ImportResult {
	source := result.Source
	if source == "" {
		source = "none"
	}
	s.metrics.RecordImport(source, result.ImportedCount, result.DuplicateCount, result.SkippedCount, s.now().Sub(start))
	return result
}
