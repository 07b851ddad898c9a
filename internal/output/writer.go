// Package output writes machine-readable import reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

// FileResult is the outcome of importing one file.
type FileResult struct {
	File       string              `json:"file"`
	AccountID  string              `json:"accountId"`
	ImportedAt time.Time           `json:"importedAt"`
	Result     domain.ImportResult `json:"result"`
}

// Totals aggregates the counts of every file in a report.
type Totals struct {
	Files      int `json:"files"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// Report is the JSON document written by the CLI's -report flag.
type Report struct {
	Files  []FileResult `json:"files"`
	Totals Totals       `json:"totals"`
}

// Add appends a file result and updates the totals.
func (r *Report) Add(fr FileResult) {
	r.Files = append(r.Files, fr)
	r.Totals.Files++
	r.Totals.Imported += fr.Result.ImportedCount
	r.Totals.Duplicates += fr.Result.DuplicateCount
	r.Totals.Skipped += fr.Result.SkippedCount
}

// WriteOptions configures how the report is written
type WriteOptions struct {
	MergeMode bool   // load an existing report at FilePath and append to it
	FilePath  string // empty means stdout
}

// WriteReport serializes the report as JSON with 2-space indentation
func WriteReport(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}
	return nil
}

// WriteReportToFile writes the report to a file or stdout based on options
func WriteReportToFile(report *Report, opts WriteOptions) (err error) {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if opts.MergeMode && opts.FilePath != "" {
		existing, err := LoadReport(opts.FilePath)
		switch {
		case err == nil:
			for _, fr := range report.Files {
				existing.Add(fr)
			}
			report = existing
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to load existing report for merge: %w", err)
		}
	}

	if opts.FilePath == "" {
		return WriteReport(report, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create report file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close report file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteReport(report, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", opts.FilePath, err)
	}
	return nil
}

// LoadReport reads an existing report for merge mode. Totals are recomputed from the file
// entries.
func LoadReport(filePath string) (*Report, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		// Unwrapped so callers can check os.IsNotExist
		return nil, err
	}

	var stored Report
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode report JSON: %w", err)
	}

	report := &Report{}
	for _, fr := range stored.Files {
		report.Add(fr)
	}
	return report, nil
}
