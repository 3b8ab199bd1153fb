// Package novelty scores content by corpus rarity (TF-IDF), used as a
// floor that keeps boilerplate out of a context budget (spec.md §4.3.5
// item 6, §4.3.8's novelty pre-filter), grounded on the teacher's
// internal/coupling and internal/hotspots frequency-map style.
package novelty

import (
	"math"
	"strings"
)

// Index is a corpus-wide term-frequency/inverse-document-frequency table.
type Index struct {
	docCount   int
	docFreq    map[string]int
	termCounts []map[string]int
}

// TokenizeRepoStyle splits content into lowercase word tokens, stripping
// punctuation, the way repo-wide scans elsewhere in this codebase tokenize
// source text for frequency statistics.
func TokenizeRepoStyle(content string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range content {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// BuildIndex builds a TF-IDF index over docs (one entry per Item content).
func BuildIndex(docs []string) *Index {
	idx := &Index{docFreq: make(map[string]int)}
	for _, d := range docs {
		tokens := TokenizeRepoStyle(d)
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		idx.termCounts = append(idx.termCounts, counts)
		for t := range counts {
			idx.docFreq[t]++
		}
		idx.docCount++
	}
	return idx
}

// Score returns the TF-IDF-derived novelty score in [0,1] for document i,
// the mean of each term's tf*idf weight normalized by the document's own
// max weight, so a short rare snippet and a long one with the same rarity
// profile land in a comparable range.
func (idx *Index) Score(docIndex int) float64 {
	if docIndex < 0 || docIndex >= len(idx.termCounts) {
		return 0
	}
	counts := idx.termCounts[docIndex]
	if len(counts) == 0 {
		return 0
	}

	var sum, maxWeight float64
	for term, tf := range counts {
		df := idx.docFreq[term]
		if df == 0 {
			df = 1
		}
		idf := math.Log(float64(idx.docCount+1)/float64(df)) + 1
		weight := float64(tf) * idf
		sum += weight
		if weight > maxWeight {
			maxWeight = weight
		}
	}
	if maxWeight == 0 {
		return 0
	}
	avg := sum / float64(len(counts))
	score := avg / maxWeight
	if score > 1 {
		score = 1
	}
	return score
}

// ScoreAll scores every document the index was built from, keyed by the
// caller-supplied ids in the same order docs were passed to BuildIndex.
func ScoreAll(ids []string, docs []string) map[string]float64 {
	idx := BuildIndex(docs)
	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		out[id] = idx.Score(i)
	}
	return out
}
