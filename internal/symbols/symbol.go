// Package symbols defines the Symbol record and the on-disk JSON-lines
// symbol index format (spec.md §3 "Symbol Index").
package symbols

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Visibility classifies a symbol's access scope (spec.md §3 Symbol).
// Crate covers languages with a module-private-but-crate-visible tier
// (e.g. Rust's pub(crate)); languages without that tier only ever
// produce Public/Private.
type Visibility string

const (
	VisPublic  Visibility = "public"
	VisCrate   Visibility = "crate"
	VisPrivate Visibility = "private"
	VisUnknown Visibility = "unknown"
)

// Symbol is one entry in the symbol index: a named, located span of source.
type Symbol struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	FQN        string     `json:"fqn,omitempty"`
	Kind       string     `json:"kind"`
	Language   string     `json:"language,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
	Doc        string     `json:"doc,omitempty"`
	File       string     `json:"file"`
	StartLine  int        `json:"startLine"`
	EndLine    int        `json:"endLine"`
	StartByte  int        `json:"startByte,omitempty"`
	EndByte    int        `json:"endByte,omitempty"`
	// Callers/Callees hold symbol IDs, used by the callgraph BFS
	// (spec.md §4.3.6). Populated by the extractor when available; absent
	// entries simply bound the graph.
	Callers []string `json:"callers,omitempty"`
	Callees []string `json:"callees,omitempty"`
}

// Index is an in-memory symbol table, keyed by ID, with a name index for
// exact/prefix/substring lookup (spec.md §4.3.3).
type Index struct {
	ByID    map[string]*Symbol
	ByFile  map[string][]*Symbol
	Ordered []*Symbol
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{
		ByID:   make(map[string]*Symbol),
		ByFile: make(map[string][]*Symbol),
	}
}

// Add inserts a symbol into the index.
func (idx *Index) Add(s *Symbol) {
	idx.ByID[s.ID] = s
	idx.ByFile[s.File] = append(idx.ByFile[s.File], s)
	idx.Ordered = append(idx.Ordered, s)
}

// Load reads a JSON-lines symbol index from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a JSON-lines symbol stream.
func Decode(r io.Reader) (*Index, error) {
	idx := NewIndex()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var s Symbol
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, err
		}
		sc := s
		idx.Add(&sc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Save writes the index to path as JSON-lines, one symbol per line,
// ordered by insertion (deterministic given a deterministic extractor).
func (idx *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, s := range idx.Ordered {
		data, err := json.Marshal(s)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// MatchTier names the lexical/semantic match quality tier a lookup
// result came from (spec.md §4.3.5 item 5: exact > prefix > substring >
// fuzzy).
type MatchTier string

const (
	TierExact  MatchTier = "exact"
	TierPrefix MatchTier = "prefix"
	TierSubstr MatchTier = "substring"
	TierFuzzy  MatchTier = "fuzzy"
)

// Lookup finds symbols matching query by exact name, then prefix, then
// substring, stopping at the first non-empty tier (spec.md §4.3.3).
func (idx *Index) Lookup(query string, limit int) []*Symbol {
	syms, _ := idx.LookupTiered(query, limit)
	return syms
}

// LookupTiered is Lookup plus the match tier each result was found at,
// so ranking can weight lexical/semantic match quality (spec.md §4.3.5
// item 5). Falls back to a fuzzy subsequence match (query's characters
// appear in name, in order, case-insensitively) when no exact/prefix/
// substring match exists at all.
func (idx *Index) LookupTiered(query string, limit int) ([]*Symbol, map[string]MatchTier) {
	var exact, prefix, substr, fuzzy []*Symbol
	for _, s := range idx.Ordered {
		switch {
		case s.Name == query:
			exact = append(exact, s)
		case len(s.Name) > len(query) && s.Name[:len(query)] == query:
			prefix = append(prefix, s)
		case containsFold(s.Name, query):
			substr = append(substr, s)
		case isFuzzySubsequence(s.Name, query):
			fuzzy = append(fuzzy, s)
		}
	}

	tier := exact
	tierName := TierExact
	switch {
	case len(tier) != 0:
	case len(prefix) != 0:
		tier, tierName = prefix, TierPrefix
	case len(substr) != 0:
		tier, tierName = substr, TierSubstr
	default:
		tier, tierName = fuzzy, TierFuzzy
	}

	if limit > 0 && len(tier) > limit {
		tier = tier[:limit]
	}

	tiers := make(map[string]MatchTier, len(tier))
	for _, s := range tier {
		tiers[s.ID] = tierName
	}
	return tier, tiers
}

// isFuzzySubsequence reports whether needle's characters all appear in
// haystack, in order, case-insensitively — the last-resort match tier
// when nothing else matched.
func isFuzzySubsequence(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hi := 0
	for _, nr := range strings.ToLower(needle) {
		found := false
		for ; hi < len(haystack); hi++ {
			hr := haystack[hi]
			if hr >= 'A' && hr <= 'Z' {
				hr += 'a' - 'A'
			}
			if rune(hr) == nr {
				found = true
				hi++
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	hl, nl := len(haystack), len(needle)
	if nl > hl {
		return false
	}
	for i := 0; i+nl <= hl; i++ {
		if equalFold(haystack[i:i+nl], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
