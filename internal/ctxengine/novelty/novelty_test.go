package novelty

import "testing"

func TestTokenizeRepoStyle_LowercasesAndStripsPunctuation(t *testing.T) {
	got := TokenizeRepoStyle("Hello, World! foo_bar 123")
	want := []string{"hello", "world", "foo_bar", "123"}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeRepoStyle_EmptyInput(t *testing.T) {
	if got := TokenizeRepoStyle(""); len(got) != 0 {
		t.Errorf("expected no tokens for empty input, got %+v", got)
	}
}

func TestScore_OutOfRangeIndexReturnsZero(t *testing.T) {
	idx := BuildIndex([]string{"some words here"})
	if got := idx.Score(5); got != 0 {
		t.Errorf("expected 0 for an out-of-range index, got %v", got)
	}
	if got := idx.Score(-1); got != 0 {
		t.Errorf("expected 0 for a negative index, got %v", got)
	}
}

func TestScore_EmptyDocumentIsZero(t *testing.T) {
	idx := BuildIndex([]string{"", "real words here"})
	if got := idx.Score(0); got != 0 {
		t.Errorf("expected 0 for an empty document, got %v", got)
	}
}

func TestScore_IsBoundedToUnitInterval(t *testing.T) {
	idx := BuildIndex([]string{"rare unique snippet of text", "the the the the the"})
	for i := range []string{"rare unique snippet of text", "the the the the the"} {
		score := idx.Score(i)
		if score < 0 || score > 1 {
			t.Errorf("score for doc %d out of [0,1]: %v", i, score)
		}
	}
}

func TestScore_UniformWeightTermsScoreExactlyOne(t *testing.T) {
	// A document built from a single repeated term has only one distinct
	// weight, so its average-over-max normalization collapses to 1
	// regardless of how common or rare that term is corpus-wide.
	idx := BuildIndex([]string{"common rare", "common common common common"})
	if got := idx.Score(1); got != 1 {
		t.Errorf("expected a single-term document to score exactly 1, got %v", got)
	}
}

func TestScore_MixedRarityTermsScoreBelowOne(t *testing.T) {
	// A document mixing a common term with a rarer one has two distinct
	// weights, so its average necessarily falls short of its own max.
	idx := BuildIndex([]string{"common rare", "common common common common"})
	if got := idx.Score(0); got >= 1 {
		t.Errorf("expected a mixed-rarity document to score below 1, got %v", got)
	}
}

func TestScoreAll_KeysByCallerSuppliedIDsInOrder(t *testing.T) {
	ids := []string{"x", "y"}
	docs := []string{"alpha beta gamma", "alpha beta gamma"}
	got := ScoreAll(ids, docs)
	if len(got) != 2 {
		t.Fatalf("expected 2 scored entries, got %+v", got)
	}
	if _, ok := got["x"]; !ok {
		t.Error("expected key x to be present")
	}
	if _, ok := got["y"]; !ok {
		t.Error("expected key y to be present")
	}
	if got["x"] != got["y"] {
		t.Errorf("expected identical documents to score identically, got x=%v y=%v", got["x"], got["y"])
	}
}
