package parser

import (
	"fmt"
	"time"
)

// Metadata contains context about the file being parsed.
//
// Create instances using NewMetadata(filePath, detectedAt). Optional fields (account) can be
// set after construction using setter methods.
type Metadata struct {
	filePath   string
	accountID  string // Target account of the import
	owner      string // Fallback owner name (the account name)
	detectedAt time.Time
}

// NewMetadata creates a new Metadata instance with validated required fields.
// Returns an error if filePath is empty or detectedAt is zero.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the file name or path of the upload
func (m *Metadata) FilePath() string {
	return m.filePath
}

// AccountID returns the target account of the import
func (m *Metadata) AccountID() string {
	return m.accountID
}

// Owner returns the fallback owner name
func (m *Metadata) Owner() string {
	return m.owner
}

// DetectedAt returns the timestamp when the file was received
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}

// SetAccount sets the target account id and its display name
func (m *Metadata) SetAccount(accountID, owner string) {
	m.accountID = accountID
	m.owner = owner
}

// FileInfo returns a formatted file path string for error messages
func FileInfo(meta *Metadata) string {
	if meta != nil && meta.FilePath() != "" {
		return fmt.Sprintf(" from %s", meta.FilePath())
	}
	return ""
}
