// Package piece implements the Piece/Priority/Item/Fingerprint data model
// and the context engine's budget fitter (spec.md §3, §4.3.7, §4.3.8),
// grounded on original_source/src/core/budgeter.rs.
package piece

import "math"

// Priority is the three-factor ranking tuple spec.md §3 defines: a coarse
// level plus continuous relevance/proximity refinements. Ordering compares
// Level first, then Relevance, then Proximity — all ascending; callers
// wanting "most important first" reverse the comparison.
type Priority struct {
	Level      uint8
	Relevance  float64
	Proximity  float64
}

// High/Medium/Low are the canonical priority presets.
func High() Priority   { return Priority{Level: 200, Relevance: 1.0, Proximity: 1.0} }
func Medium() Priority { return Priority{Level: 100, Relevance: 0.7, Proximity: 0.5} }
func Low() Priority    { return Priority{Level: 50, Relevance: 0.3, Proximity: 0.1} }

// Custom builds a Priority from arbitrary inputs, clamping relevance and
// proximity into [0,1] and replacing NaN with 0 so a bad upstream score
// can never corrupt the ordering.
func Custom(level uint8, relevance, proximity float64) Priority {
	return Priority{Level: level, Relevance: sane(relevance), Proximity: sane(proximity)}
}

func sane(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CompositeScore collapses the tuple into a single sortable number.
func (p Priority) CompositeScore() float64 {
	return float64(p.Level)*1000 + p.Relevance*100 + p.Proximity*10
}

// Compare returns -1/0/1 the way a three-way comparator does, ordering by
// Level, then Relevance, then Proximity (ascending).
func (p Priority) Compare(other Priority) int {
	if p.Level != other.Level {
		if p.Level < other.Level {
			return -1
		}
		return 1
	}
	if c := compareFloat(p.Relevance, other.Relevance); c != 0 {
		return c
	}
	return compareFloat(p.Proximity, other.Proximity)
}

// Less reports whether p sorts before other (ascending).
func (p Priority) Less(other Priority) bool {
	return p.Compare(other) < 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Bucket maps a composite score back to a coarse High/Medium/Low bucket,
// for callers that only care about the legacy three-tier distinction.
func (p Priority) Bucket() string {
	switch {
	case p.Level >= 200:
		return "high"
	case p.Level >= 100:
		return "medium"
	default:
		return "low"
	}
}
