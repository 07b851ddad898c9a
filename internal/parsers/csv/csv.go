// Package csv provides delimited-text statement parsing for stmtimport
package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
)

// Parser implements header-agnostic CSV parsing: date first, then amount and description in
// either order. It is stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared CSV parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "csv"
}

// CanParse selects CSV by file extension (.csv, case-insensitive)
func (p *Parser) CanParse(path string, header []byte) bool {
	return strings.ToLower(filepath.Ext(path)) == ".csv"
}

// Parse reads every row after the header. Rows whose date, amount or description cannot be
// read are skipped.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Statement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content%s: %w", parser.FileInfo(meta), err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	csvReader := csv.NewReader(bytes.NewReader(content))
	csvReader.Comma = SniffDelimiter(content)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	log := logger.FromContext(ctx)
	stmt := &parser.Statement{Source: p.Name()}
	for row := 0; ; row++ {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Debug().Err(err).Int("row", row).Msg("skipping malformed CSV row")
				continue
			}
			return nil, fmt.Errorf("failed to read CSV content%s: %w", parser.FileInfo(meta), err)
		}
		if row == 0 {
			continue
		}

		txn, err := parseRecord(record)
		if err != nil {
			log.Debug().Err(err).Int("row", row).Msg("skipping CSV row")
			continue
		}
		stmt.Transactions = append(stmt.Transactions, *txn)
	}

	return stmt, nil
}

// SniffDelimiter picks ';' when the first line has more semicolons than commas, ',' otherwise.
func SniffDelimiter(content []byte) rune {
	first := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		first = content[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

// parseRecord converts one row. The first column is the date; of the next two, the one that
// looks like a decimal number is the amount and the other is the description.
func parseRecord(record []string) (*parser.ParsedTransaction, error) {
	if len(record) < 3 {
		return nil, fmt.Errorf("expected at least 3 columns, got %d", len(record))
	}

	date, err := money.ParseDate(record[0])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", record[0], err)
	}

	description, rawAmount := strings.TrimSpace(record[1]), strings.TrimSpace(record[2])
	if !money.IsDecimalNumber(rawAmount) && money.IsDecimalNumber(description) {
		description, rawAmount = rawAmount, description
	}

	amount, err := money.ParseAmount(rawAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}

	return parser.NewParsedTransaction(date, description, amount)
}
