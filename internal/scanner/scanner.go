// Package scanner finds statement files on disk for batch imports.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Formats by extension. Documents go to the provider family through text extraction.
const (
	FormatOFX      = "ofx"
	FormatCSV      = "csv"
	FormatDocument = "document"
)

var formatsByExt = map[string]string{
	".ofx": FormatOFX,
	".qfx": FormatOFX,
	".csv": FormatCSV,
	".pdf": FormatDocument,
	".txt": FormatDocument,
}

// Scanner walks directory tree and finds statement files
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory or single file
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult represents a found file with the hints its location carries
type ScanResult struct {
	Path   string
	Format string
	Group  string // first directory under the root, e.g. "Conta Principal"
	Period string // YYYY-MM directory, when present
}

// Scan walks the directory tree and returns statement files sorted by path.
// A root that is itself a statement file yields that file alone.
func (s *Scanner) Scan() ([]ScanResult, error) {
	rootDir, err := s.expandHome(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("scan failed: error accessing %s: %w", rootDir, err)
	}
	if !info.IsDir() {
		format, ok := s.formatOf(rootDir)
		if !ok {
			return nil, fmt.Errorf("scan failed: unsupported file type: %s", rootDir)
		}
		return []ScanResult{{Path: rootDir, Format: format}}, nil
	}

	var results []ScanResult
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		format, ok := s.formatOf(path)
		if !ok {
			return nil
		}

		result := s.describe(path, rootDir)
		result.Format = format
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// formatOf maps a file extension to its format
func (s *Scanner) formatOf(path string) (string, bool) {
	format, ok := formatsByExt[strings.ToLower(filepath.Ext(path))]
	return format, ok
}

// describe parses the directory structure below the root.
// Path structure: {root}/{group}/{period?}/file.ext
func (s *Scanner) describe(filePath, rootDir string) ScanResult {
	result := ScanResult{Path: filePath}

	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		return result
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	dirs := parts[:len(parts)-1]

	if len(dirs) == 0 {
		return result
	}
	result.Group = s.normalizeGroupName(dirs[0])
	for _, dir := range dirs[1:] {
		if s.looksLikePeriod(dir) {
			result.Period = dir
			break
		}
	}
	return result
}

// normalizeGroupName converts directory name to readable name
// "conta_principal" -> "Conta Principal"
func (s *Scanner) normalizeGroupName(dirName string) string {
	words := strings.Fields(strings.ReplaceAll(dirName, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// looksLikePeriod checks if string looks like a YYYY-MM period
func (s *Scanner) looksLikePeriod(str string) bool {
	if len(str) != 7 || str[4] != '-' {
		return false
	}
	for i, r := range str {
		if i != 4 && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// expandHome expands ~ to home directory
func (s *Scanner) expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
