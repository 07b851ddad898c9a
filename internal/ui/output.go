// Package ui prints colored CLI progress and import summaries.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

// Out receives all output. Tests may replace it.
var Out io.Writer = color.Output

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
)

// Header prints a formatted header
func Header(text string) {
	line := strings.Repeat("=", 60)
	green.Fprintf(Out, "\n%s\n", line)
	green.Fprintf(Out, "%-60s\n", center(text, 60))
	green.Fprintf(Out, "%s\n\n", line)
}

// Step prints a step indicator
func Step(stepNum, totalSteps int, text string) {
	yellow.Fprintf(Out, "[%d/%d] %s\n", stepNum, totalSteps, text)
}

// Success prints a success message
func Success(text string) {
	green.Fprintf(Out, "  → %s\n", text)
}

// Info prints an info message
func Info(text string) {
	fmt.Fprintf(Out, "  → %s\n", text)
}

// Warning prints a warning message
func Warning(text string) {
	yellow.Fprintf(Out, "  ⚠ %s\n", text)
}

// BlueText prints blue text
func BlueText(text string) {
	blue.Fprintln(Out, text)
}

// ImportSummary prints one line per imported file. Results that imported nothing and carry
// a message other than the success message are shown as warnings.
func ImportSummary(name string, result *domain.ImportResult) {
	switch {
	case result.ImportedCount > 0:
		Success(fmt.Sprintf("%s: %s", name, result.Message))
	case result.DuplicateCount > 0:
		Info(fmt.Sprintf("%s: %s", name, result.Message))
	default:
		Warning(fmt.Sprintf("%s: %s", name, result.Message))
	}
	if result.SkippedCount > 0 {
		Warning(fmt.Sprintf("%s: %d rows skipped", name, result.SkippedCount))
	}
}

// Totals prints the aggregate of a batch import.
func Totals(files, imported, duplicates, skipped int) {
	BlueText(fmt.Sprintf("\n%d files: %d imported, %d duplicates, %d skipped", files, imported, duplicates, skipped))
}

// center centers text within a given width
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
