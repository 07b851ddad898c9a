// Package extract turns uploaded document bytes into line-oriented UTF-8 text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

// Extractor converts document bytes into plain text with line order preserved.
// Failures wrap domain.ErrUnreadableDocument.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (string, error)
}

var pdfMagic = []byte("%PDF-")

// Document extracts PDFs through ledongthuc/pdf and passes UTF-8 text through unchanged.
type Document struct{}

// NewDocument returns the default extractor.
func NewDocument() *Document {
	return &Document{}
}

// Extract implements Extractor.
func (d *Document) Extract(ctx context.Context, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return "", fmt.Errorf("%w: empty document", domain.ErrUnreadableDocument)
	}

	if bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), pdfMagic) {
		return PDFText(content)
	}

	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: content is neither PDF nor UTF-8 text", domain.ErrUnreadableDocument)
	}
	return normalizeNewlines(string(content)), nil
}

// PDFText extracts the text of every page, one PDF row per line.
func PDFText(content []byte) (text string, err error) {
	// The PDF library panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: PDF library crashed: %v", domain.ErrUnreadableDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %v", domain.ErrUnreadableDocument, err)
	}

	numPages := r.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("%w: PDF has no pages", domain.ErrUnreadableDocument)
	}

	var lines []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
	}

	if len(lines) == 0 {
		return "", fmt.Errorf("%w: PDF contains no extractable text", domain.ErrUnreadableDocument)
	}
	return strings.Join(lines, "\n"), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
