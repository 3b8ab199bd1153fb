// Package contract defines the interfaces corectx expects external
// collaborators to satisfy: a token estimator, a symbol extractor, and a
// three-way merge helper (spec.md §6). None of these are implemented by
// the core itself beyond a conservative fallback; real implementations
// (tree-sitter parsing, a calibrated tokenizer, a three-way merge tool)
// are wired in by the caller.
package contract

import "context"

// Tokenizer estimates how many tokens a piece of text would consume in a
// model context window. Implementations must satisfy a ±10% accuracy
// contract against the target model's real tokenizer.
type Tokenizer interface {
	Estimate(text string) (tokens int, err error)
}

// ByteEstimator is the fallback Tokenizer used when no calibrated
// tokenizer is configured: ceil(bytes/4), per spec.md §6.
type ByteEstimator struct{}

// Estimate implements Tokenizer.
func (ByteEstimator) Estimate(text string) (int, error) {
	n := len(text)
	if n == 0 {
		return 0, nil
	}
	return (n + 3) / 4, nil
}

// Symbol is the minimal shape the core needs from an external symbol
// extractor — see internal/symbols.Symbol for the persisted form.
type Symbol struct {
	ID         string
	Name       string
	FQN        string
	Kind       string
	Language   string
	Visibility string
	Doc        string
	File       string
	StartLine  int
	EndLine    int
	StartByte  int
	EndByte    int
}

// SymbolExtractor extracts symbol definitions from a source file. Real
// implementations shell out to (or link) a tree-sitter based parser; the
// core only consumes whatever the extractor returns.
type SymbolExtractor interface {
	Extract(ctx context.Context, path string) ([]Symbol, error)
}

// MergeResult is what a MergeHelper reports after attempting a three-way
// merge of a single file.
type MergeResult struct {
	Merged    string
	Conflict  bool
	RawOutput string
}

// MergeHelper performs an external three-way merge, given the common
// ancestor, "ours" (current disk content), and "theirs" (desired new
// content) — used by the edit engine's External3Way and Hybrid strategies.
type MergeHelper interface {
	Merge(ctx context.Context, base, ours, theirs string) (MergeResult, error)
}
