// Package registry selects the parser for an uploaded statement.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/extract"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parsers/ofx"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/parsers/provider"
)

// HeaderSize is the number of leading bytes handed to CanParse.
const HeaderSize = 512

// Registry holds the registered parsers and the fallback tried after all of them.
type Registry struct {
	parsers  []parser.Parser
	fallback parser.Parser
}

// New creates a registry with the built-in parsers: OFX and CSV by extension, then the
// provider family for everything else.
func New(extractor extract.Extractor) (*Registry, error) {
	fallback, err := provider.NewParser(extractor)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider parser: %w", err)
	}

	r := &Registry{fallback: fallback}
	for _, p := range []parser.Parser{ofx.NewParser(), csv.NewParser()} {
		if err := r.Register(p); err != nil {
			return nil, fmt.Errorf("failed to register built-in parser: %w", err)
		}
	}
	return r, nil
}

// MustNew is like New but panics on error. For use in main and tests.
func MustNew(extractor extract.Extractor) *Registry {
	r, err := New(extractor)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a parser ahead of the fallback. Names must be unique.
func (r *Registry) Register(p parser.Parser) error {
	if p == nil {
		return fmt.Errorf("cannot register nil parser")
	}
	for _, existing := range r.all() {
		if existing.Name() == p.Name() {
			return fmt.Errorf("parser %q already registered", p.Name())
		}
	}
	r.parsers = append(r.parsers, p)
	return nil
}

// FindParser returns the first parser that accepts filename and content.
// Only the first HeaderSize bytes of content are inspected.
func (r *Registry) FindParser(filename string, content []byte) (parser.Parser, error) {
	header := content
	if len(header) > HeaderSize {
		header = header[:HeaderSize]
	}
	for _, p := range r.all() {
		if p.CanParse(filename, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser found for file: %s", filename)
}

// FindParserForFile returns the best parser for a file on disk.
// Reads first 512 bytes for format detection via header inspection.
func (r *Registry) FindParserForFile(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// Short files are fine; parsers receive whatever was read.
	return r.FindParser(path, header[:n])
}

// ListParsers returns all registered parser names in dispatch order.
func (r *Registry) ListParsers() []string {
	all := r.all()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name()
	}
	return names
}

func (r *Registry) all() []parser.Parser {
	all := make([]parser.Parser, 0, len(r.parsers)+1)
	all = append(all, r.parsers...)
	if r.fallback != nil {
		all = append(all, r.fallback)
	}
	return all
}
