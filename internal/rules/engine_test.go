package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

func TestNewEngine_ValidRules(t *testing.T) {
	rulesYAML := `
default: Misc
rules:
  - name: "Test Rule"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "Food"
    kind: "EXPENSE"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 1 {
		t.Errorf("NewEngine() rules count = %d, want 1", len(engine.rules))
	}

	rule := engine.rules[0]
	if rule.Name != "Test Rule" {
		t.Errorf("rule.Name = %s, want Test Rule", rule.Name)
	}
	if rule.Priority != 100 {
		t.Errorf("rule.Priority = %d, want 100", rule.Priority)
	}
	if rule.Category != "Food" {
		t.Errorf("rule.Category = %s, want Food", rule.Category)
	}
	if rule.Kind != domain.KindExpense {
		t.Errorf("rule.Kind = %s, want EXPENSE", rule.Kind)
	}
	if engine.DefaultCategory() != "Misc" {
		t.Errorf("DefaultCategory() = %s, want Misc", engine.DefaultCategory())
	}
}

func TestNewEngine_DefaultCategoryFallback(t *testing.T) {
	engine, err := NewEngine([]byte("rules: []\n"))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.DefaultCategory() != DefaultCategory {
		t.Errorf("DefaultCategory() = %s, want %s", engine.DefaultCategory(), DefaultCategory)
	}
}

func TestNewRule(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		matchType MatchType
		priority  int
		category  string
		kind      domain.Kind
		wantErr   bool
	}{
		{"valid any kind", "uber", MatchTypeContains, 10, "Transport", "", false},
		{"valid income", "salary", MatchTypeWord, 10, "Salary", domain.KindIncome, false},
		{"empty category", "uber", MatchTypeContains, 10, "  ", "", true},
		{"empty pattern", " ", MatchTypeContains, 10, "Transport", "", true},
		{"negative priority", "uber", MatchTypeContains, -1, "Transport", "", true},
		{"priority too high", "uber", MatchTypeContains, 1000, "Transport", "", true},
		{"invalid match type", "uber", MatchType("regex"), 10, "Transport", "", true},
		{"invalid kind", "uber", MatchTypeContains, 10, "Transport", domain.Kind("TRANSFER"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewRule(tt.name, tt.pattern, tt.matchType, tt.priority, tt.category, tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRule() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && rule.Category != tt.category {
				t.Errorf("rule.Category = %s, want %s", rule.Category, tt.category)
			}
		})
	}
}

func TestNewEngine_InvalidRule(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid priority",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "contains"
    priority: 1000
    category: "Food"
`,
		},
		{
			name: "invalid match type",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "regex"
    priority: 1
    category: "Food"
`,
		},
		{
			name: "empty pattern",
			yaml: `
rules:
  - name: "Bad"
    pattern: ""
    match_type: "contains"
    priority: 1
    category: "Food"
`,
		},
		{
			name: "missing category",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "contains"
    priority: 1
`,
		},
		{
			name: "invalid kind",
			yaml: `
rules:
  - name: "Bad"
    pattern: "TEST"
    match_type: "contains"
    priority: 1
    category: "Food"
    kind: "REFUND"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine([]byte(tt.yaml)); err == nil {
				t.Error("NewEngine() expected error")
			}
		})
	}
}

func TestNewEngine_PrioritySorting(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Low"
    pattern: "A"
    match_type: "contains"
    priority: 10
    category: "Other"
  - name: "High"
    pattern: "B"
    match_type: "contains"
    priority: 500
    category: "Other"
  - name: "Low Second"
    pattern: "C"
    match_type: "contains"
    priority: 10
    category: "Other"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	want := []string{"High", "Low", "Low Second"}
	for i, rule := range engine.GetRules() {
		if rule.Name != want[i] {
			t.Errorf("rules[%d].Name = %s, want %s", i, rule.Name, want[i])
		}
	}
}

func TestMatch(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Uber"
    pattern: "uber"
    match_type: "contains"
    priority: 100
    category: "Transport"
    kind: "EXPENSE"
  - name: "Exact Rent"
    pattern: "rent"
    match_type: "exact"
    priority: 100
    category: "Housing"
  - name: "Salario"
    pattern: "salário"
    match_type: "contains"
    priority: 100
    category: "Salary"
    kind: "INCOME"
  - name: "TED"
    pattern: "ted"
    match_type: "word"
    priority: 10
    category: "Transfers"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tests := []struct {
		name        string
		description string
		kind        domain.Kind
		wantMatch   bool
		wantCat     string
	}{
		{"contains", "UBER *TRIP 1234", domain.KindExpense, true, "Transport"},
		{"kind filtered", "Uber refund", domain.KindIncome, false, ""},
		{"exact", "  Rent ", domain.KindExpense, true, "Housing"},
		{"exact requires whole description", "Rent March", domain.KindExpense, false, ""},
		{"accent insensitive", "SALARIO EMPRESA X", domain.KindIncome, true, "Salary"},
		{"word boundary", "TED Joao Souza", domain.KindIncome, true, "Transfers"},
		{"word punctuation", "Envio (ted)", domain.KindExpense, true, "Transfers"},
		{"word inside another word", "United Airlines", domain.KindExpense, false, ""},
		{"no match", "Random Shop", domain.KindExpense, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := engine.Match(tt.description, tt.kind)
			if ok != tt.wantMatch {
				t.Fatalf("Match(%q) matched = %v, want %v", tt.description, ok, tt.wantMatch)
			}
			if ok && result.Category != tt.wantCat {
				t.Errorf("Match(%q) category = %s, want %s", tt.description, result.Category, tt.wantCat)
			}
		})
	}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Generic PIX"
    pattern: "pix"
    match_type: "word"
    priority: 10
    category: "Transfers"
  - name: "Uber"
    pattern: "uber"
    match_type: "contains"
    priority: 100
    category: "Transport"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, ok := engine.Match("PIX Uber do Brasil", domain.KindExpense)
	if !ok {
		t.Fatal("Match() expected match")
	}
	if result.RuleName != "Uber" {
		t.Errorf("Match() rule = %s, want Uber", result.RuleName)
	}
}

func TestCategorize_Fallback(t *testing.T) {
	engine, err := NewEngine([]byte(`
rules:
  - name: "Uber"
    pattern: "uber"
    match_type: "contains"
    priority: 1
    category: "Transport"
`))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if got := engine.Categorize("Uber", domain.KindExpense); got != "Transport" {
		t.Errorf("Categorize(Uber) = %s, want Transport", got)
	}
	if got := engine.Categorize("Bakery", domain.KindExpense); got != DefaultCategory {
		t.Errorf("Categorize(Bakery) = %s, want %s", got, DefaultCategory)
	}
}

func TestLoadEmbedded(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	if len(engine.GetRules()) == 0 {
		t.Fatal("LoadEmbedded() returned no rules")
	}

	tests := []struct {
		description string
		kind        domain.Kind
		want        string
	}{
		{"uber", domain.KindExpense, "Transport"},
		{"UBER *TRIP", domain.KindExpense, "Transport"},
		{"Posto Shell", domain.KindExpense, "Transport"},
		{"iFood *Pedido", domain.KindExpense, "Food"},
		{"Supermercado Dia", domain.KindExpense, "Food"},
		{"NETFLIX.COM", domain.KindExpense, "Subscriptions"},
		{"Amazon Prime BR", domain.KindExpense, "Subscriptions"},
		{"Uber trip", domain.KindIncome, "Transport"},
		{"Netflix refund", domain.KindIncome, "Subscriptions"},
		{"iFood estorno", domain.KindIncome, "Food"},
		{"PIX Carlos Lima", domain.KindIncome, "Transfers"},
		{"Transfer to Joao Souza", domain.KindExpense, "Transfers"},
		{"Transferência recebida", domain.KindIncome, "Transfers"},
		{"Salário", domain.KindIncome, "Salary"},
		{"Bill payment Energia SA", domain.KindExpense, "Other"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if got := engine.Categorize(tt.description, tt.kind); got != tt.want {
				t.Errorf("Categorize(%q) = %s, want %s", tt.description, got, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
rules:
  - name: "Gym"
    pattern: "smart fit"
    match_type: "contains"
    priority: 50
    category: "Health"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	engine, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if got := engine.Categorize("SMART FIT PAULISTA", domain.KindExpense); got != "Health" {
		t.Errorf("Categorize() = %s, want Health", got)
	}
}

func TestLoadFromFile_NotExists(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/rules.yaml"); err == nil {
		t.Error("LoadFromFile() expected error for missing file")
	}
}

func TestGetRules_ReturnsCopy(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	rules := engine.GetRules()
	rules[0].Category = "mutated"
	if engine.GetRules()[0].Category == "mutated" {
		t.Error("GetRules() exposed internal slice")
	}
}

func TestNewEngine_InvalidYAML(t *testing.T) {
	if _, err := NewEngine([]byte("rules: [\n  - name: ")); err == nil {
		t.Error("NewEngine() expected error for invalid YAML")
	}
}
