package piece

import "sort"

// BucketCaps caps each span-tag bucket's token share, per spec.md §4.3.8's
// bucket-cap test scenario (budget=1000, buckets "Code:700,Interface:200,
// Test:100").
type BucketCaps struct {
	Code       int
	Interfaces int
	Tests      int
}

// Refusal records an item that didn't make it into a BucketFit, and why.
type Refusal struct {
	ID     string
	Reason string
	Bucket string
}

// BucketFit is the result of FitWithBuckets: the merged fit plus every
// refusal logged along the way.
type BucketFit struct {
	Fitted   FitResult
	Refusals []Refusal
}

// bucketOf assigns an item to exactly one bucket: Test tag wins over
// Interface, which wins over everything else (code).
func bucketOf(it Item) string {
	switch {
	case it.HasTag(TagTest):
		return "tests"
	case it.HasTag(TagInterface):
		return "interfaces"
	default:
		return "code"
	}
}

func partitionByBucket(items []Item) map[string][]Item {
	out := map[string][]Item{"code": nil, "interfaces": nil, "tests": nil}
	for _, it := range items {
		b := bucketOf(it)
		out[b] = append(out[b], it)
	}
	return out
}

// ApplyNoveltyFloor drops non-hard items whose novelty score (per
// scorer) falls below noveltyMin, recording a Refusal for each — spec.md
// §4.3.5 item 6. Hard items are always kept regardless of score. A nil
// scorer or a non-positive noveltyMin is a no-op, items returned as-is.
func ApplyNoveltyFloor(items []Item, scorer func(items []Item) map[string]float64, noveltyMin float64) ([]Item, []Refusal) {
	if scorer == nil || noveltyMin <= 0 {
		return items, nil
	}

	scores := scorer(items)
	var refusals []Refusal
	filtered := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Hard || scores[it.ID] >= noveltyMin {
			filtered = append(filtered, it)
		} else {
			refusals = append(refusals, Refusal{ID: it.ID, Reason: "low-novelty", Bucket: bucketOf(it)})
		}
	}
	return filtered, refusals
}

// FitWithBuckets fits items against per-bucket caps, applies an optional
// novelty pre-filter across the combined item set, then reconciles the
// merged total against a ±tolerancePercent window around the sum of caps —
// trimming the smallest items first (fewest tokens, ties by lexically
// smallest ID) if the sum of independently-fit buckets overshoots it
// (spec.md §4.3.8).
func (b *Budgeter) FitWithBuckets(items []Item, caps BucketCaps, noveltyScorer func(items []Item) map[string]float64, noveltyMin float64, tolerancePercent float64) BucketFit {
	filtered, refusals := ApplyNoveltyFloor(items, noveltyScorer, noveltyMin)

	byBucket := partitionByBucket(filtered)
	capOf := map[string]int{"code": caps.Code, "interfaces": caps.Interfaces, "tests": caps.Tests}

	var merged []FittedItem
	for _, bucket := range []string{"code", "interfaces", "tests"} {
		bucketItems := byBucket[bucket]
		cap := capOf[bucket]
		if cap <= 0 {
			continue
		}
		fit := b.Fit(bucketItems, cap)
		trimmed := trimBucketTail(fit.Items, cap)

		fitted := make(map[string]bool, len(trimmed))
		for _, fi := range trimmed {
			fitted[fi.ID] = true
		}
		for _, it := range bucketItems {
			if !fitted[it.ID] {
				refusals = append(refusals, Refusal{ID: it.ID, Reason: "bucket-cap-exceeded", Bucket: bucket})
			}
		}
		merged = append(merged, trimmed...)
	}

	expectedTotal := caps.Code + caps.Interfaces + caps.Tests
	tolerance := float64(expectedTotal) * tolerancePercent

	total := sumTokens(merged)
	if expectedTotal > 0 && float64(total) > float64(expectedTotal)+tolerance {
		sort.Slice(merged, func(i, j int) bool { return merged[i].ID > merged[j].ID })
		for total > expectedTotal && len(merged) > 0 {
			last := merged[len(merged)-1]
			merged = merged[:len(merged)-1]
			total -= last.Tokens
			refusals = append(refusals, Refusal{ID: last.ID, Reason: "budget-overflow", Bucket: "mixed"})
		}
	}

	return BucketFit{Fitted: FitResult{Items: merged, TotalTokens: sumTokens(merged)}, Refusals: refusals}
}

// trimBucketTail enforces a hard cap on a fit result by sorting
// (tokens desc, id desc) and popping from the tail while the total
// exceeds target.
func trimBucketTail(items []FittedItem, target int) []FittedItem {
	out := make([]FittedItem, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tokens != out[j].Tokens {
			return out[i].Tokens > out[j].Tokens
		}
		return out[i].ID > out[j].ID
	})

	total := sumTokens(out)
	for total > target && len(out) > 0 {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		total -= last.Tokens
	}
	return out
}

func sumTokens(items []FittedItem) int {
	total := 0
	for _, it := range items {
		total += it.Tokens
	}
	return total
}
