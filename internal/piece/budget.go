package piece

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"corectx/internal/contract"
)

// Budgeter fits Items into a token budget, deterministically, using a
// Tokenizer collaborator to count tokens. Counts are cached by content
// hash since the same piece content is commonly re-scored across ranking
// passes.
type Budgeter struct {
	tokenizer contract.Tokenizer

	mu    sync.Mutex
	cache map[uint64]int
}

// NewBudgeter builds a Budgeter over the given Tokenizer. A nil tokenizer
// falls back to contract.ByteEstimator.
func NewBudgeter(tokenizer contract.Tokenizer) *Budgeter {
	if tokenizer == nil {
		tokenizer = contract.ByteEstimator{}
	}
	return &Budgeter{tokenizer: tokenizer, cache: make(map[uint64]int)}
}

// Count returns the token count for s, using the cache.
func (b *Budgeter) Count(s string) int {
	key := xxhash.Sum64String(s)

	b.mu.Lock()
	if t, ok := b.cache[key]; ok {
		b.mu.Unlock()
		return t
	}
	b.mu.Unlock()

	t, err := b.tokenizer.Estimate(s)
	if err != nil || t < 0 {
		t = (len(s) + 3) / 4
	}

	b.mu.Lock()
	b.cache[key] = t
	b.mu.Unlock()
	return t
}

// sortItemsStable orders items deterministically by (priority desc, id
// asc), the order every fit pass relies on for reproducible selection.
func sortItemsStable(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Priority, out[j].Priority
		if c := pj.Compare(pi); c != 0 { // descending priority
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// takePrefix returns a prefix of s with at most want tokens, and the
// number of tokens that prefix actually costs.
func (b *Budgeter) takePrefix(s string, want int) (string, int) {
	full := b.Count(s)
	if full <= want {
		return s, full
	}
	if want <= 0 {
		return "", 0
	}
	// Approximate by byte-proportional slicing, then trim back until the
	// measured token count is within budget — avoids assuming a fixed
	// bytes-per-token ratio while still converging quickly.
	approxBytes := len(s) * want / full
	if approxBytes > len(s) {
		approxBytes = len(s)
	}
	for approxBytes > 0 {
		candidate := s[:approxBytes]
		tok := b.Count(candidate)
		if tok <= want {
			return candidate, tok
		}
		approxBytes -= approxBytes/8 + 1
	}
	return "", 0
}

// Fit fits items into budgetTokens, per spec.md §4.3.8's single-bucket
// fitting rules: hard items are reserved first (minimally, then
// reconciled back in if something had to be dropped to make room), then
// non-hard items are added in priority order, either whole or trimmed to
// their min_tokens floor.
func (b *Budgeter) Fit(items []Item, budgetTokens int) FitResult {
	ordered := sortItemsStable(items)

	var out []FittedItem
	remaining := budgetTokens

	var hardItems []Item
	for _, it := range ordered {
		if it.Hard {
			hardItems = append(hardItems, it)
		}
	}

	hardIDs := make(map[string]bool, len(hardItems))
	for _, h := range hardItems {
		hardIDs[h.ID] = true
	}

	for _, it := range hardItems {
		need := it.MinTokens
		if need < 1 {
			need = 1
		}
		if remaining < need {
			continue
		}
		s, tok := b.takePrefix(it.Content, need)
		out = append(out, FittedItem{ID: it.ID, FullContent: it.Content, Content: s, Tokens: tok})
		remaining -= tok
	}

	for _, it := range ordered {
		if hardIDs[it.ID] {
			continue
		}
		tok := b.Count(it.Content)
		if tok <= remaining {
			out = append(out, FittedItem{ID: it.ID, FullContent: it.Content, Content: it.Content, Tokens: tok})
			remaining -= tok
			continue
		}
		if it.MinTokens > 0 && remaining >= it.MinTokens {
			want := it.MinTokens
			if remaining < want {
				want = remaining
			}
			s, t := b.takePrefix(it.Content, want)
			out = append(out, FittedItem{ID: it.ID, FullContent: it.Content, Content: s, Tokens: t})
			remaining -= t
			if remaining == 0 {
				break
			}
		}
	}

	// Hard-item reconciliation: every hard item must end up present, even
	// if that means evicting non-hard tail items already placed.
	minNeed := make(map[string]int, len(hardItems))
	for _, h := range hardItems {
		need := h.MinTokens
		if need < 1 {
			need = 1
		}
		minNeed[h.ID] = need
	}

	present := make(map[string]bool, len(out))
	for _, fi := range out {
		present[fi.ID] = true
	}

	for _, h := range hardItems {
		if present[h.ID] {
			continue
		}
		need := minNeed[h.ID]
		for remaining < need {
			evictPos := -1
			for i := len(out) - 1; i >= 0; i-- {
				if !hardIDs[out[i].ID] {
					evictPos = i
					break
				}
			}
			if evictPos < 0 {
				break
			}
			remaining += out[evictPos].Tokens
			delete(present, out[evictPos].ID)
			out = append(out[:evictPos], out[evictPos+1:]...)
		}
		if remaining < need {
			continue
		}
		s, tok := b.takePrefix(h.Content, need)
		out = append(out, FittedItem{ID: h.ID, FullContent: h.Content, Content: s, Tokens: tok})
		remaining -= tok
		present[h.ID] = true
	}

	total := 0
	for _, fi := range out {
		total += fi.Tokens
	}
	return FitResult{Items: out, TotalTokens: total}
}
