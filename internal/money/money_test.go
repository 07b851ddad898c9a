package money

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"brazilian with symbol", "R$ 1.234,56", "1234.56"},
		{"negative prefix before symbol", "-R$ 10,00", "-10.00"},
		{"negative after symbol", "R$ -10,00", "-10.00"},
		{"plain comma decimal", "-32,50", "-32.50"},
		{"dot decimal", "32.50", "32.50"},
		{"american thousands", "1,234.56", "1234.56"},
		{"dot thousands only", "1.234", "1234"},
		{"many thousands", "1.234.567,89", "1234567.89"},
		{"integer", "100", "100"},
		{"accounting negative", "(45,10)", "-45.10"},
		{"trailing text", "R$ 120,00 BRL", "120.00"},
		{"unicode minus", "−5,00", "-5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "Uber", "R$", "1,2,3"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseAmount(input)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestParseAmount_NoDriftOnRepeatedAddition(t *testing.T) {
	sum := decimal.Zero
	for i := 0; i < 1000; i++ {
		d, err := ParseAmount("0,10")
		require.NoError(t, err)
		sum = sum.Add(d)
	}
	assert.Equal(t, "100.00", sum.StringFixed(2))
	assert.True(t, sum.Equal(decimal.NewFromInt(100)))
}

func TestFindCurrency(t *testing.T) {
	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{"R$ 120,00", "R$ 120,00", true},
		{"Valor: R$ 1.234,56 debitado", "R$ 1.234,56", true},
		{"-R$ 10,00", "-R$ 10,00", true},
		{"45,90", "45,90", true},
		{"R$ -10,00", "R$ -10,00", true},
		{"Debito -45,90", "-45,90", true},
		{"Pix recebido - R$ 100,00", "R$ 100,00", true},
		{"Estorno - 45,90", "45,90", true},
		{"10/05/2024", "", false},
		{"E12345678901234567890abc", "", false},
		{"Joao Souza", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := FindCurrency(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCurrencyLine(t *testing.T) {
	assert.True(t, IsCurrencyLine("R$ 120,00"))
	assert.True(t, IsCurrencyLine("  -R$ 1.234,56 "))
	assert.True(t, IsCurrencyLine("12345,67"))
	assert.False(t, IsCurrencyLine("Pagamento R$ 120,00"))
	assert.False(t, IsCurrencyLine("Joao Souza"))
}

func TestIsDecimalNumber(t *testing.T) {
	assert.True(t, IsDecimalNumber("-32,50"))
	assert.True(t, IsDecimalNumber("1.234,56"))
	assert.True(t, IsDecimalNumber("R$ 10,00"))
	assert.True(t, IsDecimalNumber("12.5"))
	assert.False(t, IsDecimalNumber("Uber"))
	assert.False(t, IsDecimalNumber("100"))
	assert.False(t, IsDecimalNumber("Posto 24,5 Shell"))
}

func TestFindDate(t *testing.T) {
	got, ok := FindDate("Data: 10/05/2024 14:32")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), got)

	got, ok = FindDate("2024-02-01 settled")
	require.True(t, ok)
	assert.Equal(t, "2024-02-01", got.Format(ISODate))

	_, ok = FindDate("99/99/2024")
	assert.False(t, ok)

	_, ok = FindDate("no date here")
	assert.False(t, ok)
}

func TestStripDate(t *testing.T) {
	assert.Equal(t, "Padaria Central", StripDate("10/05/2024 Padaria Central"))
}

func TestIsTimestamp(t *testing.T) {
	assert.True(t, IsTimestamp("14:32"))
	assert.True(t, IsTimestamp("14:32:05"))
	assert.True(t, IsTimestamp("10/05/2024 - 14:32"))
	assert.True(t, IsTimestamp("9h30"))
	assert.False(t, IsTimestamp("Mercado Livre"))
	assert.False(t, IsTimestamp("R$ 10,00"))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"01/02/2024", "2024-02-01", false},
		{"2024-02-01", "2024-02-01", false},
		{"01.02.2024", "2024-02-01", false},
		{"31/02/2024", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format(ISODate))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "10.00", FormatAmount(decimal.RequireFromString("-10")))
	assert.Equal(t, "1234.57", FormatAmount(decimal.RequireFromString("1234.565")))
}
