package edit

import (
	"strings"
	"testing"
)

func TestRenderSpec_ReplaceRoundTripsThroughParse(t *testing.T) {
	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops: []Operation{
			{Kind: OpReplace, Start: 2, End: 3, OldText: "old2\nold3", NewText: "new2\nnew3"},
		},
	}}}

	text := RenderSpec(spec)
	reparsed, err := Parse(text)
	if err != nil {
		t.Fatalf("re-parsing rendered spec failed: %v\ntext:\n%s", err, text)
	}
	if len(reparsed.Files) != 1 || reparsed.Files[0].Path != "a.go" {
		t.Fatalf("unexpected reparsed spec: %+v", reparsed)
	}
	op := reparsed.Files[0].Ops[0]
	if op.Kind != OpReplace || op.Start != 2 || op.End != 3 {
		t.Errorf("unexpected reparsed op: %+v", op)
	}
	if op.OldText != "old2\nold3" || op.NewText != "new2\nnew3" {
		t.Errorf("unexpected reparsed text: OldText=%q NewText=%q", op.OldText, op.NewText)
	}
}

func TestRenderSpec_InsertRoundTripsThroughParse(t *testing.T) {
	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpInsert, Start: 5, NewText: "inserted"}},
	}}}
	reparsed, err := Parse(RenderSpec(spec))
	if err != nil {
		t.Fatalf("re-parsing failed: %v", err)
	}
	op := reparsed.Files[0].Ops[0]
	if op.Kind != OpInsert || op.Start != 5 || op.NewText != "inserted" {
		t.Errorf("unexpected reparsed op: %+v", op)
	}
}

func TestRenderSpec_DeleteRoundTripsThroughParse(t *testing.T) {
	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpDelete, Start: 4, End: 6}},
	}}}
	reparsed, err := Parse(RenderSpec(spec))
	if err != nil {
		t.Fatalf("re-parsing failed: %v", err)
	}
	op := reparsed.Files[0].Ops[0]
	if op.Kind != OpDelete || op.Start != 4 || op.End != 6 {
		t.Errorf("unexpected reparsed op: %+v", op)
	}
}

func TestRenderSpec_GuardCIDIncludedWhenPresent(t *testing.T) {
	spec := &Spec{Files: []FileBlock{{
		Path:     "a.go",
		HasGuard: true,
		GuardCID: "abcdef0123456789",
		Ops:      []Operation{{Kind: OpDelete, Start: 1, End: 1}},
	}}}
	out := RenderSpec(spec)
	if !strings.Contains(out, "GUARD-CID: abcdef0123456789") {
		t.Errorf("expected the guard CID to be rendered, got:\n%s", out)
	}
}

func TestReplaceHeader_SingleLineOmitsRange(t *testing.T) {
	if got := replaceHeader(3, 3); got != "REPLACE lines 3:" {
		t.Errorf("got %q", got)
	}
}

func TestReplaceHeader_MultiLineIncludesRange(t *testing.T) {
	if got := replaceHeader(3, 5); got != "REPLACE lines 3-5:" {
		t.Errorf("got %q", got)
	}
}

func TestDeleteHeader_SingleVsRange(t *testing.T) {
	if got := deleteHeader(3, 3); got != "DELETE lines 3" {
		t.Errorf("got %q", got)
	}
	if got := deleteHeader(3, 5); got != "DELETE lines 3-5" {
		t.Errorf("got %q", got)
	}
}

func TestItoaEdit(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", -7: "-7"}
	for in, want := range cases {
		if got := itoaEdit(in); got != want {
			t.Errorf("itoaEdit(%d) = %q, want %q", in, got, want)
		}
	}
}
