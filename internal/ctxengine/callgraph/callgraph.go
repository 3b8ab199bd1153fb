// Package callgraph implements the bounded breadth-first expansion used
// to pull in a symbol's neighbors (spec.md §4.3.6), grounded on
// original_source/src/core/tree.rs's enclosing-function lookup and
// resolve.rs's ambiguity-resolution convention (sort by path then start
// line, pick first).
package callgraph

import (
	"sort"

	"corectx/internal/symbols"
)

// Options bounds a BFS expansion.
type Options struct {
	Depth         int // clamped to [1,3]
	PerHopCap     int // max new symbols admitted per hop
	GlobalEdgeCap int // max total edges traversed across the whole expansion
}

// clampDepth enforces spec.md §4.3.6's [1,3] bound.
func clampDepth(d int) int {
	if d < 1 {
		return 1
	}
	if d > 3 {
		return 3
	}
	return d
}

// Expand walks callers/callees from seeds out to Options.Depth hops,
// returning the symbol IDs discovered (seeds excluded), in deterministic
// order: sorted by (file, start line), ties broken by ID.
func Expand(idx *symbols.Index, seeds []string, opts Options) []string {
	ids, _ := ExpandWithHops(idx, seeds, opts)
	return ids
}

// ExpandWithHops is Expand plus each discovered symbol's minimum hop
// distance from the seed set, so callers can apply spec.md §4.3.5 item 3's
// call-distance decay without re-walking the graph.
func ExpandWithHops(idx *symbols.Index, seeds []string, opts Options) ([]string, map[string]int) {
	depth := clampDepth(opts.Depth)
	perHopCap := opts.PerHopCap
	if perHopCap <= 0 {
		perHopCap = 50
	}
	globalCap := opts.GlobalEdgeCap
	if globalCap <= 0 {
		globalCap = 500
	}

	visited := make(map[string]bool)
	for _, s := range seeds {
		visited[s] = true
	}

	frontier := append([]string(nil), seeds...)
	var discovered []string
	hopDistance := make(map[string]int)
	edgesTraversed := 0

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		hopAdmitted := 0

		for _, id := range frontier {
			sym, ok := idx.ByID[id]
			if !ok {
				continue
			}
			neighbors := make([]string, 0, len(sym.Callers)+len(sym.Callees))
			neighbors = append(neighbors, sym.Callers...)
			neighbors = append(neighbors, sym.Callees...)

			sortNeighborsDeterministically(idx, neighbors)

			for _, nb := range neighbors {
				if edgesTraversed >= globalCap {
					break
				}
				edgesTraversed++
				if visited[nb] {
					continue
				}
				if hopAdmitted >= perHopCap {
					continue
				}
				visited[nb] = true
				hopAdmitted++
				hopDistance[nb] = hop + 1
				discovered = append(discovered, nb)
				next = append(next, nb)
			}
			if edgesTraversed >= globalCap {
				break
			}
		}
		frontier = next
	}

	sortNeighborsDeterministically(idx, discovered)
	return discovered, hopDistance
}

// Decay maps a hop distance to a [0,1] contribution, halving per hop so
// callers can weight it into a bounded ranking contribution (spec.md
// §4.3.5 item 3: weight ≤ 0.15 of total). A symbol at hop 0 (a seed
// itself, never passed to this) would score 1; hop 1 scores 0.5, hop 2
// 0.25, and so on.
func Decay(hop int) float64 {
	if hop < 1 {
		return 1
	}
	d := 1.0
	for i := 0; i < hop; i++ {
		d /= 2
	}
	return d
}

func sortNeighborsDeterministically(idx *symbols.Index, ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, aok := idx.ByID[ids[i]]
		b, bok := idx.ByID[ids[j]]
		if !aok || !bok {
			return ids[i] < ids[j]
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.ID < b.ID
	})
}
