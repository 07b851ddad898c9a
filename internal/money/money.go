// Package money converts locale-formatted monetary and date tokens into canonical values.
// Amounts are decimal.Decimal throughout so repeated additions never drift.
package money

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")
	ErrInvalidDate   = errors.New("invalid date format")
)

// ISODate is the canonical calendar date layout.
const ISODate = "2006-01-02"

var (
	// currencyToken finds a currency-formatted value anywhere in a line, e.g. "R$ 1.234,56" or "-R$ 10,00".
	// A minus is a sign only when it touches the symbol or the digits; " - " is a separator.
	currencyToken = regexp.MustCompile(`(?i)(?:-?(?:R\$|US\$|\$|€|BRL)\s*)?-?(?:\d{1,3}(?:\.\d{3})+|\d+),\d{2}\b`)

	// currencyLine matches a line that is nothing but a currency value.
	currencyLine = regexp.MustCompile(`(?i)^[-+]?\s*(?:R\$|US\$|\$|€|BRL)?\s*[-+]?\s*\d{1,3}(?:\.?\d{3})*,\d{2}$`)

	// decimalNumber matches a bare number with a decimal separator (either convention).
	decimalNumber = regexp.MustCompile(`^\(?[-+]?\s*(?:R\$|US\$|\$|€)?\s*[-+]?\d[\d.,\s]*[.,]\d{1,2}\)?$`)

	dateToken      = regexp.MustCompile(`\b(\d{2})[/.-](\d{2})[/.-](\d{4})\b`)
	isoDateToken   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	timestampToken = regexp.MustCompile(`^(?:\d{2}/\d{2}/\d{4}\s*[-,]?\s*)?\d{1,2}[:h]\d{2}(?::\d{2})?(?:\s*(?:h|hrs|am|pm))?$`)
)

// ParseAmount converts a monetary token into a decimal.
// All characters except digits, comma, dot and a minus before the first digit are dropped.
// When both separators appear, the right-most one is the decimal separator; a lone comma is
// always decimal; lone dots are thousands separators unless followed by 1 or 2 trailing digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	negative := false
	seenDigit := false
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			seenDigit = true
			b.WriteRune(r)
		case r == ',' || r == '.':
			if seenDigit {
				b.WriteRune(r)
			}
		case r == '-' || r == '−':
			if !seenDigit {
				negative = true
			}
		case r == '(':
			if !seenDigit {
				negative = true
			}
		}
	}

	cleaned := strings.TrimRight(b.String(), ".,")
	if cleaned == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastDot >= 0:
		decimals := len(cleaned) - lastDot - 1
		if strings.Count(cleaned, ".") > 1 || decimals == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FindCurrency returns the first currency-formatted token in line.
func FindCurrency(line string) (string, bool) {
	m := currencyToken.FindString(line)
	if m == "" {
		return "", false
	}
	return strings.TrimSpace(m), true
}

// IsCurrencyLine reports whether the trimmed line is only a currency value.
func IsCurrencyLine(line string) bool {
	return currencyLine.MatchString(strings.TrimSpace(line))
}

// IsDecimalNumber reports whether s looks like a number with a decimal separator.
func IsDecimalNumber(s string) bool {
	return decimalNumber.MatchString(strings.TrimSpace(s))
}

// FormatAmount renders the absolute value with exactly two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.Abs().StringFixed(2)
}

// FindDate returns the first DD/MM/YYYY (or DD-MM-YYYY, DD.MM.YYYY) date in line.
func FindDate(line string) (time.Time, bool) {
	for _, m := range dateToken.FindAllStringSubmatch(line, -1) {
		if t, err := time.Parse("02/01/2006", m[1]+"/"+m[2]+"/"+m[3]); err == nil {
			return t, true
		}
	}
	for _, m := range isoDateToken.FindAllStringSubmatch(line, -1) {
		if t, err := time.Parse(ISODate, m[0]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsDateLine reports whether line carries a date token.
func IsDateLine(line string) bool {
	_, ok := FindDate(line)
	return ok
}

// StripDate removes every date token from line.
func StripDate(line string) string {
	line = dateToken.ReplaceAllString(line, "")
	line = isoDateToken.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// IsTimestamp reports whether the line is only a time of day, optionally preceded by a date.
func IsTimestamp(line string) bool {
	return timestampToken.MatchString(strings.ToLower(strings.TrimSpace(line)))
}

// ParseDate parses the date formats statements use: DD/MM/YYYY, DD-MM-YYYY, DD.MM.YYYY and YYYY-MM-DD.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range []string{"02/01/2006", "02-01-2006", "02.01.2006", ISODate, "2006/01/02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
