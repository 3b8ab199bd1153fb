package piece

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NgramMode selects how content is shingled before fingerprinting
// (spec.md §4.3.7).
type NgramMode int

const (
	NgramWords NgramMode = iota
	NgramChars
)

// DedupeConfig controls the dedup pass.
type DedupeConfig struct {
	Mode            NgramMode
	ShingleSize     int
	JaccardThresh   float64
	SimhashDistance int // max Hamming distance treated as "close"
}

// DefaultDedupeConfig matches the defaults used across the ranking tests.
func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{Mode: NgramWords, ShingleSize: 5, JaccardThresh: 0.85, SimhashDistance: 3}
}

// Fingerprint is a content fingerprint used for near-duplicate detection:
// a set of hashed shingles (for exact Jaccard similarity) plus a 64-bit
// simhash (for a fast approximate fallback on very large content).
type Fingerprint struct {
	ID        string
	Shingles  map[uint64]bool
	Simhash   uint64
	ExactHash uint64 // hash of the full normalized content, for exact-match-only tags
}

func normalizeForNgrams(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	lastSpace := true
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func hashedShingles(content string, mode NgramMode, size int) map[uint64]bool {
	norm := normalizeForNgrams(content)
	out := make(map[uint64]bool)
	if size <= 0 {
		size = 5
	}

	if mode == NgramChars {
		runes := []rune(norm)
		if len(runes) < size {
			if len(runes) > 0 {
				out[xxhash.Sum64String(string(runes))] = true
			}
			return out
		}
		for i := 0; i+size <= len(runes); i++ {
			out[xxhash.Sum64String(string(runes[i:i+size]))] = true
		}
		return out
	}

	words := strings.Fields(norm)
	if len(words) < size {
		if len(words) > 0 {
			out[xxhash.Sum64String(strings.Join(words, " "))] = true
		}
		return out
	}
	for i := 0; i+size <= len(words); i++ {
		out[xxhash.Sum64String(strings.Join(words[i:i+size], " "))] = true
	}
	return out
}

// simhash64 computes a 64-bit simhash over content's shingles: each
// shingle hash votes +1/-1 per bit, and the final hash takes the sign of
// each bit's accumulated vote.
func simhash64(shingles map[uint64]bool) uint64 {
	var votes [64]int
	for h := range shingles {
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}
	var out uint64
	for bit := 0; bit < 64; bit++ {
		if votes[bit] > 0 {
			out |= 1 << uint(bit)
		}
	}
	return out
}

func simhashDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

func jaccardU64(a, b map[uint64]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for h := range a {
		if b[h] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Fingerprints builds one Fingerprint per item.
func Fingerprints(items []Item, cfg DedupeConfig) []Fingerprint {
	out := make([]Fingerprint, len(items))
	for i, it := range items {
		shingles := hashedShingles(it.Content, cfg.Mode, cfg.ShingleSize)
		out[i] = Fingerprint{
			ID:        it.ID,
			Shingles:  shingles,
			Simhash:   simhash64(shingles),
			ExactHash: xxhash.Sum64String(normalizeForNgrams(it.Content)),
		}
	}
	return out
}

// DedupeEngine removes near-duplicate items, keeping the highest-priority
// (then lowest-id) representative of each duplicate cluster.
type DedupeEngine struct {
	cfg DedupeConfig
}

// WithConfig builds a DedupeEngine using cfg.
func WithConfig(cfg DedupeConfig) DedupeEngine {
	return DedupeEngine{cfg: cfg}
}

// DedupeItems removes near-duplicates from items. Input should already be
// in deterministic order (priority desc, id asc) so "first kept" doesn't
// depend on caller ordering.
func (e DedupeEngine) DedupeItems(items []Item) []Item {
	ordered := sortItemsStable(items)
	fps := Fingerprints(ordered, e.cfg)

	kept := make([]bool, len(ordered))
	for i := range ordered {
		kept[i] = true
	}

	for i := 0; i < len(ordered); i++ {
		if !kept[i] {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			if !kept[j] {
				continue
			}
			if e.isDuplicate(ordered[i], ordered[j], fps[i], fps[j]) {
				kept[j] = false
			}
		}
	}

	out := make([]Item, 0, len(ordered))
	for i, it := range ordered {
		if kept[i] {
			out = append(out, it)
		}
	}
	return out
}

// isDuplicate decides whether item b collapses into item a. Interface
// pieces (TagInterface) only collapse on an exact content match — two
// distinct interfaces can look near-identical under Jaccard/simhash
// (short, boilerplate-heavy signatures) without actually being
// redundant, so near-duplicate collapsing is opt-in for them, not the
// default (spec.md §3, §4.3.7).
func (e DedupeEngine) isDuplicate(itemA, itemB Item, a, b Fingerprint) bool {
	if itemA.HasTag(TagInterface) || itemB.HasTag(TagInterface) {
		return a.ExactHash == b.ExactHash
	}
	if len(a.Shingles) > 0 && len(b.Shingles) > 0 {
		if jaccardU64(a.Shingles, b.Shingles) >= e.cfg.JaccardThresh {
			return true
		}
	}
	return simhashDistance(a.Simhash, b.Simhash) <= e.cfg.SimhashDistance
}

// sortedIDs is a small helper used by tests to assert deterministic
// dedup survivor ordering.
func sortedIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	sort.Strings(ids)
	return ids
}
