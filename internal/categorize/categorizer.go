// Package categorize assigns a category to every transaction of an import batch.
//
// Names come from a Classifier when one is configured and healthy, otherwise from the
// keyword table in package rules. Names are then resolved to category ids owned by the user,
// creating missing categories once per batch.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/metrics"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/rules"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultTimeout         = 8 * time.Second
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = time.Minute
)

var (
	errLengthMismatch = errors.New("classifier returned a different number of names")
	errEmptyName      = errors.New("classifier returned an empty name")
)

// Classifier suggests one category name per description. existing lists the names the user
// already has so the classifier can prefer them.
type Classifier interface {
	Classify(ctx context.Context, descriptions []string, existing []string) ([]string, error)
}

// CategoryStore is the subset of the store used for category resolution.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]*domain.Category, error)
	UpsertCategory(ctx context.Context, userID, name string, kind domain.Kind) (*domain.Category, error)
}

// Item is one transaction to categorize.
type Item struct {
	Description string
	Kind        domain.Kind
}

// Config tunes the classifier call.
type Config struct {
	Timeout time.Duration
	// BreakerFailures consecutive failures open the breaker for BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Categorizer resolves category ids for import batches.
type Categorizer struct {
	classifier Classifier
	rules      *rules.Engine
	store      CategoryStore
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
	metrics    metrics.Recorder
}

// New creates a categorizer. classifier may be nil, in which case the keyword table is always
// used. recorder may be nil.
func New(classifier Classifier, engine *rules.Engine, store CategoryStore, cfg Config, recorder metrics.Recorder) (*Categorizer, error) {
	if engine == nil {
		return nil, fmt.Errorf("rules engine cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("category store cannot be nil")
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultBreakerCooldown
	}

	c := &Categorizer{
		classifier: classifier,
		rules:      engine,
		store:      store,
		timeout:    cfg.Timeout,
		metrics:    recorder,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			c.metrics.RecordCircuitState(name, state)
		},
	})
	return c, nil
}

// Categorize returns one category id per item, in order.
func (c *Categorizer) Categorize(ctx context.Context, userID string, items []Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	existing, err := c.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	names := c.names(ctx, items, existingNames(existing))

	known := make(map[domain.CategoryKey]string, len(existing))
	for _, cat := range existing {
		known[domain.KeyFor(cat.Name, cat.Kind)] = cat.ID
	}

	ids := make([]string, len(items))
	for i, item := range items {
		key := domain.KeyFor(names[i], item.Kind)
		if id, ok := known[key]; ok {
			ids[i] = id
			continue
		}
		cat, err := c.store.UpsertCategory(ctx, userID, names[i], item.Kind)
		if err != nil {
			return nil, fmt.Errorf("failed to create category %q: %w", names[i], err)
		}
		known[key] = cat.ID
		ids[i] = cat.ID
	}
	return ids, nil
}

// names asks the classifier for one name per item, falling back to the keyword table.
func (c *Categorizer) names(ctx context.Context, items []Item, existing []string) []string {
	if c.classifier != nil {
		start := time.Now()
		names, err := c.classify(ctx, items, existing)
		if err == nil {
			c.metrics.RecordClassifier(metrics.OutcomeClassified, time.Since(start))
			return names
		}

		outcome := metrics.OutcomeFallback
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = metrics.OutcomeRejected
		}
		c.metrics.RecordClassifier(outcome, time.Since(start))
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Int("items", len(items)).
			Msg("classifier unavailable, using keyword rules")
	}

	names := make([]string, len(items))
	for i, item := range items {
		names[i] = c.rules.Categorize(item.Description, item.Kind)
	}
	return names
}

func (c *Categorizer) classify(ctx context.Context, items []Item, existing []string) ([]string, error) {
	descriptions := make([]string, len(items))
	for i, item := range items {
		descriptions[i] = item.Description
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		tctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		names, err := c.classifier.Classify(tctx, descriptions, existing)
		if err != nil {
			return nil, err
		}
		if len(names) != len(descriptions) {
			return nil, fmt.Errorf("%w: got %d, want %d", errLengthMismatch, len(names), len(descriptions))
		}
		cleaned := make([]string, len(names))
		for i, name := range names {
			cleaned[i] = strings.TrimSpace(name)
			if cleaned[i] == "" {
				return nil, fmt.Errorf("%w at position %d", errEmptyName, i)
			}
		}
		return cleaned, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// existingNames returns the distinct category names, sorted.
func existingNames(categories []*domain.Category) []string {
	seen := make(map[string]struct{}, len(categories))
	var names []string
	for _, cat := range categories {
		key := strings.ToLower(cat.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, cat.Name)
	}
	sort.Strings(names)
	return names
}
