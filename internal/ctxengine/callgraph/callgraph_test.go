package callgraph

import (
	"testing"

	"corectx/internal/symbols"
)

func buildChain(t *testing.T) *symbols.Index {
	t.Helper()
	idx := symbols.NewIndex()
	idx.Add(&symbols.Symbol{ID: "a", Name: "A", File: "a.go", StartLine: 1, Callees: []string{"b"}})
	idx.Add(&symbols.Symbol{ID: "b", Name: "B", File: "b.go", StartLine: 1, Callers: []string{"a"}, Callees: []string{"c"}})
	idx.Add(&symbols.Symbol{ID: "c", Name: "C", File: "c.go", StartLine: 1, Callers: []string{"b"}})
	return idx
}

func TestExpand_OneHopFindsImmediateNeighbor(t *testing.T) {
	idx := buildChain(t)
	got := Expand(idx, []string{"a"}, Options{Depth: 1, PerHopCap: 10, GlobalEdgeCap: 10})
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("expected [b] at depth 1, got %+v", got)
	}
}

func TestExpand_TwoHopsReachesTransitiveNeighbor(t *testing.T) {
	idx := buildChain(t)
	got := Expand(idx, []string{"a"}, Options{Depth: 2, PerHopCap: 10, GlobalEdgeCap: 10})
	if len(got) != 2 {
		t.Fatalf("expected 2 discovered symbols at depth 2, got %+v", got)
	}
	want := map[string]bool{"b": true, "c": true}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected discovered id %q", id)
		}
	}
}

func TestExpand_SeedsAreExcludedFromResults(t *testing.T) {
	idx := buildChain(t)
	got := Expand(idx, []string{"a", "b"}, Options{Depth: 2, PerHopCap: 10, GlobalEdgeCap: 10})
	for _, id := range got {
		if id == "a" || id == "b" {
			t.Errorf("expected seeds to be excluded from the result, found %q in %+v", id, got)
		}
	}
}

func TestExpand_DepthClampedToThree(t *testing.T) {
	idx := symbols.NewIndex()
	prev := "s0"
	idx.Add(&symbols.Symbol{ID: prev, Name: "s0", File: "f.go", StartLine: 1, Callees: []string{"s1"}})
	for i := 1; i <= 5; i++ {
		id := "s" + string(rune('0'+i))
		next := "s" + string(rune('0'+i+1))
		idx.Add(&symbols.Symbol{ID: id, Name: id, File: "f.go", StartLine: i + 1, Callers: []string{prev}, Callees: []string{next}})
		prev = id
	}

	got := Expand(idx, []string{"s0"}, Options{Depth: 10, PerHopCap: 10, GlobalEdgeCap: 100})
	if len(got) != 3 {
		t.Errorf("expected depth to clamp to 3 hops (3 discovered symbols), got %d: %+v", len(got), got)
	}
}

func TestExpand_PerHopCapLimitsAdmissionsWithinAHop(t *testing.T) {
	idx := symbols.NewIndex()
	idx.Add(&symbols.Symbol{ID: "hub", Name: "hub", File: "f.go", StartLine: 1, Callees: []string{"n1", "n2", "n3"}})
	idx.Add(&symbols.Symbol{ID: "n1", Name: "n1", File: "f.go", StartLine: 2})
	idx.Add(&symbols.Symbol{ID: "n2", Name: "n2", File: "f.go", StartLine: 3})
	idx.Add(&symbols.Symbol{ID: "n3", Name: "n3", File: "f.go", StartLine: 4})

	got := Expand(idx, []string{"hub"}, Options{Depth: 1, PerHopCap: 2, GlobalEdgeCap: 100})
	if len(got) != 2 {
		t.Errorf("expected the per-hop cap to admit only 2 neighbors, got %d: %+v", len(got), got)
	}
}

func TestExpand_GlobalEdgeCapStopsTraversal(t *testing.T) {
	idx := symbols.NewIndex()
	idx.Add(&symbols.Symbol{ID: "hub", Name: "hub", File: "f.go", StartLine: 1, Callees: []string{"n1", "n2", "n3"}})
	idx.Add(&symbols.Symbol{ID: "n1", Name: "n1", File: "f.go", StartLine: 2})
	idx.Add(&symbols.Symbol{ID: "n2", Name: "n2", File: "f.go", StartLine: 3})
	idx.Add(&symbols.Symbol{ID: "n3", Name: "n3", File: "f.go", StartLine: 4})

	got := Expand(idx, []string{"hub"}, Options{Depth: 1, PerHopCap: 10, GlobalEdgeCap: 1})
	if len(got) != 1 {
		t.Errorf("expected the global edge cap to stop traversal after 1 edge, got %d: %+v", len(got), got)
	}
}

func TestExpand_UnknownSeedIsSkippedWithoutError(t *testing.T) {
	idx := buildChain(t)
	got := Expand(idx, []string{"does-not-exist"}, Options{Depth: 2, PerHopCap: 10, GlobalEdgeCap: 10})
	if len(got) != 0 {
		t.Errorf("expected no discoveries from an unknown seed, got %+v", got)
	}
}

func TestExpand_ResultsAreDeterministicallyOrdered(t *testing.T) {
	idx := symbols.NewIndex()
	idx.Add(&symbols.Symbol{ID: "hub", Name: "hub", File: "f.go", StartLine: 1, Callees: []string{"z", "a", "m"}})
	idx.Add(&symbols.Symbol{ID: "z", Name: "z", File: "z.go", StartLine: 1})
	idx.Add(&symbols.Symbol{ID: "a", Name: "a", File: "a.go", StartLine: 1})
	idx.Add(&symbols.Symbol{ID: "m", Name: "m", File: "m.go", StartLine: 1})

	got := Expand(idx, []string{"hub"}, Options{Depth: 1, PerHopCap: 10, GlobalEdgeCap: 10})
	want := []string{"a", "m", "z"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected deterministic file-ordered results %+v, got %+v", want, got)
			break
		}
	}
}
