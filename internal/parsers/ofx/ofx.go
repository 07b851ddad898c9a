// Package ofx provides OFX/QFX statement parsing for stmtimport
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
)

// Parser implements OFX/QFX parsing. It is stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared OFX parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "ofx"
}

// CanParse selects OFX by file extension (.ofx or .qfx, case-insensitive). Files with any other
// extension except .csv and .pdf are accepted when the header carries an OFX marker.
func (p *Parser) CanParse(path string, header []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return true
	case ".csv", ".pdf":
		return false
	}
	return LooksLikeOFX(header)
}

// LooksLikeOFX reports whether the header carries an OFX marker (v1 SGML or v2 XML).
func LooksLikeOFX(header []byte) bool {
	upper := strings.ToUpper(string(header))
	return strings.Contains(upper, "OFXHEADER") ||
		strings.Contains(upper, "<?OFX") ||
		strings.Contains(upper, "<OFX>")
}

// Parse extracts transactions from bank, credit card and investment-cash statements.
// Every STMTTRN carries its FITID as native id. Rows that cannot be converted are skipped.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content%s: %w", parser.FileInfo(meta), err)
	}

	// ofxgo.ParseResponse does not accept a context
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	response, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file%s (%d bytes): %w", parser.FileInfo(meta), len(content), err)
	}

	lists, err := transactionLists(response)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With().Str("parser", p.Name()).Str("file", metaPath(meta)).Logger()
	stmt := &parser.Statement{Source: p.Name()}
	for _, list := range lists {
		for i := range list {
			txn, err := convertTransaction(&list[i])
			if err != nil {
				log.Warn().Err(err).Int("index", i).Msg("skipping OFX transaction")
				continue
			}
			stmt.Transactions = append(stmt.Transactions, *txn)
		}
	}
	return stmt, nil
}

// transactionLists collects the STMTTRN lists of every supported statement in the response.
func transactionLists(resp *ofxgo.Response) ([][]ofxgo.Transaction, error) {
	var lists [][]ofxgo.Transaction

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("failed to type assert bank statement: expected *ofxgo.StatementResponse, got %T", msg)
		}
		if stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList.Transactions)
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("failed to type assert credit card statement: expected *ofxgo.CCStatementResponse, got %T", msg)
		}
		if stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList.Transactions)
		}
	}

	// Only cash movements of investment accounts (dividends, interest, fees) are imported.
	for _, msg := range resp.InvStmt {
		stmt, ok := msg.(*ofxgo.InvStatementResponse)
		if !ok {
			return nil, fmt.Errorf("failed to type assert investment statement: expected *ofxgo.InvStatementResponse, got %T", msg)
		}
		if stmt.InvTranList == nil {
			continue
		}
		for _, bank := range stmt.InvTranList.BankTransactions {
			lists = append(lists, bank.Transactions)
		}
	}

	if len(resp.Bank) == 0 && len(resp.CreditCard) == 0 && len(resp.InvStmt) == 0 {
		return nil, fmt.Errorf("no supported statement type found in OFX file. Expected at least one of: bank (BANKMSGSRSV1), credit card (CREDITCARDMSGSRSV1) or investment (INVSTMTMSGSRSV1) statement")
	}
	return lists, nil
}

// convertTransaction extracts the fields of one STMTTRN
func convertTransaction(txn *ofxgo.Transaction) (*parser.ParsedTransaction, error) {
	id := strings.TrimSpace(txn.FiTID.String())
	if id == "" {
		return nil, fmt.Errorf("transaction missing required FITID field")
	}

	// Posted date first, user date as fallback
	date := txn.DtPosted.Time
	if date.IsZero() && txn.DtUser != nil {
		date = txn.DtUser.Time
	}

	description := strings.TrimSpace(txn.Name.String())
	if description == "" {
		description = strings.TrimSpace(txn.Memo.String())
	}

	amount, err := decimal.NewFromString(txn.TrnAmt.FloatString(4))
	if err != nil {
		return nil, fmt.Errorf("transaction %s has invalid amount: %w", id, err)
	}

	parsed, err := parser.NewParsedTransaction(date, description, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction %s: %w", id, err)
	}
	parsed.SetNativeID(id)
	parsed.SetMemo(txn.Memo.String())
	return parsed, nil
}

func metaPath(meta *parser.Metadata) string {
	if meta == nil {
		return ""
	}
	return meta.FilePath()
}
