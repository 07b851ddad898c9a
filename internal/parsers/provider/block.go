package provider

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/money"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

// Status is the terminal state printed at the end of a transfer block.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusUnderReview Status = "under review"
	StatusReversed    Status = "reversed"
)

// statusTokens maps folded status spellings to their status.
var statusTokens = map[string]Status{
	"completed":    StatusCompleted,
	"complete":     StatusCompleted,
	"concluida":    StatusCompleted,
	"concluido":    StatusCompleted,
	"efetuada":     StatusCompleted,
	"realizada":    StatusCompleted,
	"cancelled":    StatusCancelled,
	"canceled":     StatusCancelled,
	"cancelada":    StatusCancelled,
	"cancelado":    StatusCancelled,
	"under review": StatusUnderReview,
	"em analise":   StatusUnderReview,
	"reversed":     StatusReversed,
	"estornada":    StatusReversed,
	"estornado":    StatusReversed,
	"devolvida":    StatusReversed,
}

// parseStatus recognises a line that is only a status token, optionally labelled "Status:".
func parseStatus(line string) (Status, bool) {
	folded := textnorm.Fold(line)
	folded = strings.TrimPrefix(folded, "status")
	folded = strings.TrimSpace(strings.TrimLeft(folded, ": -"))
	status, ok := statusTokens[folded]
	return status, ok
}

func isStatusLine(line string) bool {
	_, ok := parseStatus(line)
	return ok
}

// Block is a run of lines terminated by a status line.
type Block struct {
	Lines  []string
	Status Status
}

// SegmentBlocks accumulates lines until a status token appears. Trailing lines without a
// status are discarded.
func SegmentBlocks(lines []string) []Block {
	var blocks []Block
	var current []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if status, ok := parseStatus(line); ok {
			blocks = append(blocks, Block{Lines: current, Status: status})
			current = nil
			continue
		}
		current = append(current, line)
	}
	return blocks
}

// BlockFields are the values the generic block processor extracts from one block.
type BlockFields struct {
	Date      time.Time
	Payer     string
	Payee     string
	Amount    decimal.Decimal
	Reference string
}

const maxPayerLines = 3

// ProcessBlock extracts fields from one block: the first date line anchors the block, the
// one to three lines before it name the payer, the first currency value after it is the amount, the
// first 9+ digit token after it is the reference and the lines after the amount name the payee.
func ProcessBlock(lines []string) (BlockFields, bool) {
	dateIdx := -1
	var fields BlockFields
	for i, line := range lines {
		if date, ok := money.FindDate(line); ok {
			dateIdx = i
			fields.Date = date
			break
		}
	}
	if dateIdx < 0 {
		return BlockFields{}, false
	}

	var payer []string
	for i := max(0, dateIdx-maxPayerLines); i < dateIdx; i++ {
		if name := nameCandidate(lines[i]); name != "" {
			payer = append(payer, name)
		}
	}
	fields.Payer = joinNames(payer)

	amountIdx := -1
	for i := dateIdx; i < len(lines); i++ {
		line := lines[i]
		if i == dateIdx {
			line = money.StripDate(line)
		}
		if fields.Reference == "" {
			fields.Reference = referenceDigits.FindString(line)
		}
		if amountIdx >= 0 {
			continue
		}
		token, ok := money.FindCurrency(line)
		if !ok {
			continue
		}
		amount, err := money.ParseAmount(token)
		if err != nil {
			continue
		}
		fields.Amount = amount
		amountIdx = i
	}
	if amountIdx < 0 {
		return BlockFields{}, false
	}

	var payee []string
	for _, line := range lines[amountIdx+1:] {
		if name := nameCandidate(line); name != "" {
			payee = append(payee, name)
		}
	}
	fields.Payee = joinNames(payee)

	return fields, true
}
