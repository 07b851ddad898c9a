package csv

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
)

func parse(t *testing.T, content string) *parser.Statement {
	t.Helper()
	meta, err := parser.NewMetadata("statement.csv", time.Now())
	require.NoError(t, err)
	stmt, err := NewParser().Parse(context.Background(), strings.NewReader(content), meta)
	require.NoError(t, err)
	return stmt
}

func TestName(t *testing.T) {
	if got := NewParser().Name(); got != "csv" {
		t.Errorf("Name() = %q, want %q", got, "csv")
	}
}

func TestCanParse(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"test.csv", true},
		{"test.CSV", true},
		{"test.ofx", false},
		{"csv", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := NewParser().CanParse(tt.path, nil); got != tt.expected {
				t.Errorf("CanParse(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', SniffDelimiter([]byte("Data;Descricao;Valor\n01/02/2024;Uber;-32,50")))
	assert.Equal(t, ',', SniffDelimiter([]byte("Date,Description,Amount\n")))
	assert.Equal(t, ',', SniffDelimiter([]byte("")))
}

func TestParse_ColumnOrderIndependence(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"description then amount", "Data;Descricao;Valor\n01/02/2024;Uber;-32,50\n"},
		{"amount then description", "Data;Valor;Descricao\n01/02/2024;-32,50;Uber\n"},
		{"comma delimited with quotes", "Date,Description,Amount\n01/02/2024,Uber,\"-32,50\"\n"},
		{"dot decimal", "Date,Amount,Description\n2024-02-01,-32.50,Uber\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := parse(t, tt.content)
			require.Len(t, stmt.Transactions, 1)

			txn := stmt.Transactions[0]
			assert.Equal(t, "Uber", txn.Description())
			assert.True(t, txn.Amount().Equal(decimal.RequireFromString("-32.50")), "amount = %s", txn.Amount())
			assert.Equal(t, "2024-02-01", txn.Date().Format("2006-01-02"))
			assert.False(t, stmt.HeuristicDirection)
		})
	}
}

func TestParse_SkipsBadRows(t *testing.T) {
	content := strings.Join([]string{
		"Data;Descricao;Valor",
		"01/02/2024;Mercado;-120,00",
		"01/02/2024;Zero;0,00",
		"01/02/2024;;-5,00",
		"99/99/2024;Bad date;-5,00",
		"02/02/2024;No amount;abc",
		"03/02/2024;short",
		"",
		"05/02/2024;Salario;5.000,00",
	}, "\n")

	stmt := parse(t, content)
	require.Len(t, stmt.Transactions, 2)
	assert.Equal(t, "Mercado", stmt.Transactions[0].Description())
	assert.Equal(t, "Salario", stmt.Transactions[1].Description())
	assert.Equal(t, "5000.00", stmt.Transactions[1].Amount().StringFixed(2))
}

func TestParse_HeaderOnly(t *testing.T) {
	stmt := parse(t, "Date,Description,Amount\n")
	assert.Empty(t, stmt.Transactions)
}

func TestParse_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	meta, err := parser.NewMetadata("statement.csv", time.Now())
	require.NoError(t, err)
	_, err = NewParser().Parse(ctx, strings.NewReader("a,b,c\n"), meta)
	assert.ErrorIs(t, err, context.Canceled)
}
