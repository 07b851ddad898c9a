package provider

import (
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
)

// ParseInternalTransfers keeps only completed blocks and runs the generic block processor on each.
func ParseInternalTransfers(lines []string) []parser.ParsedTransaction {
	var out []parser.ParsedTransaction
	for _, block := range SegmentBlocks(lines) {
		if block.Status != StatusCompleted {
			continue
		}
		fields, ok := ProcessBlock(block.Lines)
		if !ok {
			continue
		}
		txn, err := parser.NewParsedTransaction(fields.Date, transferDescription(fields.Payer, fields.Payee), fields.Amount)
		if err != nil {
			continue
		}
		txn.SetParties(fields.Payer, fields.Payee)
		txn.SetReference(fields.Reference)
		out = append(out, *txn)
	}
	return out
}

func transferDescription(payer, payee string) string {
	switch {
	case payee != "":
		return "Transfer to " + payee
	case payer != "":
		return "Transfer from " + payer
	default:
		return "Internal transfer"
	}
}
