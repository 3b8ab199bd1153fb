//go:build !cgo

// Package symbols provides tree-sitter based symbol extraction for code
// intelligence fallback. This stub is used when CGO is not available.
package symbols

import (
	"context"

	"corectx/internal/complexity"
	"corectx/internal/contract"
)

// Extractor extracts symbols from source files using tree-sitter.
// This is a stub implementation when CGO is not available.
type Extractor struct{}

// NewExtractor creates a new symbol extractor.
// Returns nil when CGO is not available.
func NewExtractor() *Extractor {
	return nil
}

// Extract implements contract.SymbolExtractor. Returns empty when CGO is
// not available.
func (e *Extractor) Extract(ctx context.Context, path string) ([]contract.Symbol, error) {
	return nil, nil
}

// ExtractFile extracts all symbols from a single file.
// Returns empty when CGO is not available.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]contract.Symbol, error) {
	return nil, nil
}

// ExtractSource extracts symbols from source bytes.
// Returns empty when CGO is not available.
func (e *Extractor) ExtractSource(ctx context.Context, path string, source []byte, lang complexity.Language) ([]contract.Symbol, error) {
	return nil, nil
}

// ExtractDirectory walks a directory and extracts all symbols.
// Returns empty when CGO is not available.
func (e *Extractor) ExtractDirectory(ctx context.Context, root string, filter func(string) bool) ([]contract.Symbol, error) {
	return nil, nil
}

// IsAvailable returns whether symbol extraction is available.
func IsAvailable() bool {
	return false
}
