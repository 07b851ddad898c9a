// Package rules provides the YAML keyword table used to categorize transactions when the
// classifier is unavailable.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

//go:embed rules.yaml
var embeddedRules []byte

// DefaultCategory is used when no rule matches and the rule file does not name a default.
const DefaultCategory = "Other"

// MatchType defines how patterns are matched against transaction descriptions
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description
	MatchTypeContains MatchType = "contains"
	// MatchTypeWord requires the pattern to appear as whole words in the description
	MatchTypeWord MatchType = "word"
)

// Rule maps a keyword to a category name.
//
// Patterns and descriptions are compared case- and accent-insensitively. An empty Kind
// applies the rule to both incomes and expenses.
type Rule struct {
	Name      string      `yaml:"name"`
	Pattern   string      `yaml:"pattern"`
	MatchType MatchType   `yaml:"match_type"`
	Priority  int         `yaml:"priority"`
	Category  string      `yaml:"category"`
	Kind      domain.Kind `yaml:"kind"`
}

// NewRule creates a validated rule.
func NewRule(name, pattern string, matchType MatchType, priority int, category string, kind domain.Kind) (*Rule, error) {
	rule := Rule{
		Name:      name,
		Pattern:   pattern,
		MatchType: matchType,
		Priority:  priority,
		Category:  category,
		Kind:      kind,
	}
	if err := rule.validate(); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("category cannot be empty")
	}

	// Validate priority (0-999)
	if r.Priority < 0 || r.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", r.Priority)
	}

	if r.MatchType != MatchTypeExact && r.MatchType != MatchTypeContains && r.MatchType != MatchTypeWord {
		return fmt.Errorf("invalid match_type %q (must be 'exact', 'contains' or 'word')", r.MatchType)
	}

	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}

	if r.Kind != "" && !domain.ValidateKind(r.Kind) {
		return fmt.Errorf("invalid kind %q", r.Kind)
	}
	return nil
}

// RuleSet represents the top-level YAML structure
type RuleSet struct {
	Default string `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// Engine performs rule matching on transaction descriptions
type Engine struct {
	rules           []Rule // Sorted by priority (highest first)
	defaultCategory string
}

// MatchResult contains the result of applying a rule
type MatchResult struct {
	Category string
	RuleName string // For debugging
}

// NewEngine creates a rules engine from YAML data
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// Equal priorities keep their YAML file order so matching is deterministic.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	defaultCategory := strings.TrimSpace(ruleSet.Default)
	if defaultCategory == "" {
		defaultCategory = DefaultCategory
	}

	return &Engine{
		rules:           sortedRules,
		defaultCategory: defaultCategory,
	}, nil
}

// LoadEmbedded loads the embedded rules.yaml file
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Match applies rules to a description and returns the first match for kind.
// Rules are evaluated in priority order (highest first). Returns (nil, false) if no rules match.
func (e *Engine) Match(description string, kind domain.Kind) (*MatchResult, bool) {
	normalizedDesc := textnorm.Fold(description)

	for _, rule := range e.rules {
		if rule.Kind != "" && rule.Kind != kind {
			continue
		}
		normalizedPattern := textnorm.Fold(rule.Pattern)

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		case MatchTypeWord:
			matched = containsWords(normalizedDesc, normalizedPattern)
		}

		if matched {
			return &MatchResult{
				Category: rule.Category,
				RuleName: rule.Name,
			}, true
		}
	}

	return nil, false
}

// Categorize returns the category of the first matching rule, or the default category.
func (e *Engine) Categorize(description string, kind domain.Kind) string {
	if result, ok := e.Match(description, kind); ok {
		return result.Category
	}
	return e.defaultCategory
}

// DefaultCategory returns the category used when nothing matches.
func (e *Engine) DefaultCategory() string {
	return e.defaultCategory
}

// GetRules returns a copy of the rules in priority order.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}

// containsWords reports whether the words of pattern appear consecutively in text.
func containsWords(text, pattern string) bool {
	words := strings.Fields(text)
	want := strings.Fields(pattern)
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		match := true
		for j, w := range want {
			if strings.Trim(words[i+j], ".,;:-*()/") != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
