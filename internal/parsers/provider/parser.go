// Package provider parses the plain-text reports of payment providers: internal transfers,
// PIX transfers, bill payments and, for unrecognised layouts, a date-proximity fallback.
package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/extract"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
)

// Parser reads any document the extractor can turn into text. It is the dispatcher's fallback
// and accepts every file.
type Parser struct {
	extractor extract.Extractor
}

// NewParser creates a provider parser backed by extractor.
func NewParser(extractor extract.Extractor) (*Parser, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	return &Parser{extractor: extractor}, nil
}

// Name returns the parser identifier
func (p *Parser) Name() string {
	return "provider"
}

// CanParse always returns true
func (p *Parser) CanParse(path string, header []byte) bool {
	return true
}

// Parse extracts the document text and runs the detected layout's sub-parser.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*parser.Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document%s: %w", parser.FileInfo(meta), err)
	}

	text, err := p.extractor.Extract(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text%s: %w", parser.FileInfo(meta), err)
	}

	stmt := ParseText(text)
	log := logger.FromContext(ctx)
	log.Debug().
		Str("layout", stmt.Source).
		Bool("owner_detected", stmt.Owner != "").
		Int("transactions", len(stmt.Transactions)).
		Msg("parsed provider report")
	return stmt, nil
}

// ParseText detects the owner and layout of text and parses its transactions.
func ParseText(text string) *parser.Statement {
	lines := SplitLines(text)
	kind := Detect(text)
	return &parser.Statement{
		Owner:              DetectOwner(lines),
		HeuristicDirection: true,
		Source:             "provider/" + kind.String(),
		Transactions:       ParseLayout(kind, lines),
	}
}

// SplitLines splits text into trimmed, non-blank lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
