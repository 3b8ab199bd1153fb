package edit

import (
	"strings"
	"testing"
)

func TestParse_ReplaceWithFencedBlocks(t *testing.T) {
	text := `FILE: a.go
REPLACE lines 2-3:
OLD:
` + "```" + `
old line 2
old line 3
` + "```" + `
NEW:
` + "```" + `
new line 2
` + "```" + `
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(spec.Files) != 1 {
		t.Fatalf("expected 1 file block, got %d", len(spec.Files))
	}
	fb := spec.Files[0]
	if fb.Path != "a.go" {
		t.Errorf("expected path a.go, got %q", fb.Path)
	}
	if len(fb.Ops) != 1 {
		t.Fatalf("expected 1 op, got %d", len(fb.Ops))
	}
	op := fb.Ops[0]
	if op.Kind != OpReplace || op.Start != 2 || op.End != 3 {
		t.Errorf("unexpected op: %+v", op)
	}
	if op.OldText != "old line 2\nold line 3" {
		t.Errorf("unexpected OldText: %q", op.OldText)
	}
	if op.NewText != "new line 2" {
		t.Errorf("unexpected NewText: %q", op.NewText)
	}
}

func TestParse_InsertWithUnfencedBlock(t *testing.T) {
	text := `FILE: a.go
INSERT at 5:
NEW:
hello
world
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	op := spec.Files[0].Ops[0]
	if op.Kind != OpInsert || op.Start != 5 {
		t.Errorf("unexpected op: %+v", op)
	}
	if op.NewText != "hello\nworld" {
		t.Errorf("unexpected NewText: %q", op.NewText)
	}
}

func TestParse_DeleteSingleLine(t *testing.T) {
	text := `FILE: a.go
DELETE lines 7
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	op := spec.Files[0].Ops[0]
	if op.Kind != OpDelete || op.Start != 7 || op.End != 7 {
		t.Errorf("unexpected op: %+v", op)
	}
}

func TestParse_DeleteRange(t *testing.T) {
	text := `FILE: a.go
DELETE lines 7-9
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	op := spec.Files[0].Ops[0]
	if op.Start != 7 || op.End != 9 {
		t.Errorf("unexpected op: %+v", op)
	}
}

func TestParse_GuardCIDIsLowercased(t *testing.T) {
	text := `FILE: a.go
GUARD-CID: ABCDEF0123456789
DELETE lines 1
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fb := spec.Files[0]
	if !fb.HasGuard || fb.GuardCID != "abcdef0123456789" {
		t.Errorf("unexpected guard: %+v", fb)
	}
}

func TestParse_MultipleFileBlocks(t *testing.T) {
	text := `FILE: a.go
DELETE lines 1
FILE: b.go
DELETE lines 2
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(spec.Files) != 2 {
		t.Fatalf("expected 2 file blocks, got %d", len(spec.Files))
	}
	if spec.Files[0].Path != "a.go" || spec.Files[1].Path != "b.go" {
		t.Errorf("unexpected file order: %+v", spec.Files)
	}
}

func TestParse_BlankLinesAndCommentsIgnored(t *testing.T) {
	text := `
# a comment
FILE: a.go

# another comment
DELETE lines 1
`
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(spec.Files) != 1 || len(spec.Files[0].Ops) != 1 {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestParse_GuardBeforeAnyFileErrors(t *testing.T) {
	text := "GUARD-CID: abc123\n"
	if _, err := Parse(text); err == nil {
		t.Error("expected an error for GUARD-CID with no preceding FILE:")
	}
}

func TestParse_ReplaceBeforeAnyFileErrors(t *testing.T) {
	text := "REPLACE lines 1:\nOLD:\nx\nNEW:\ny\n"
	if _, err := Parse(text); err == nil {
		t.Error("expected an error for REPLACE with no preceding FILE:")
	}
}

func TestParse_UnrecognizedDirectiveErrors(t *testing.T) {
	text := "FILE: a.go\nBOGUS directive\n"
	if _, err := Parse(text); err == nil {
		t.Error("expected an error for an unrecognized directive")
	}
}

func TestParse_UnterminatedFencedBlockErrors(t *testing.T) {
	text := "FILE: a.go\nREPLACE lines 1:\nOLD:\n```\nx\n"
	if _, err := Parse(text); err == nil {
		t.Error("expected an error for an unterminated fenced block")
	}
}

func TestParse_ReplaceMissingOldHeaderErrors(t *testing.T) {
	text := "FILE: a.go\nREPLACE lines 1:\nNEW:\nx\n"
	if _, err := Parse(text); err == nil {
		t.Error("expected an error when OLD: is missing")
	}
}

func TestParse_UnfencedBlockStopsAtNextDirective(t *testing.T) {
	text := "FILE: a.go\nINSERT at 1:\nNEW:\nhello\nDELETE lines 2\n"
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(spec.Files[0].Ops) != 2 {
		t.Fatalf("expected 2 ops, got %d: %+v", len(spec.Files[0].Ops), spec.Files[0].Ops)
	}
	if spec.Files[0].Ops[0].NewText != "hello" {
		t.Errorf("expected the unfenced block to stop before DELETE, got %q", spec.Files[0].Ops[0].NewText)
	}
}

func TestParse_CRLFLineEndingsTolerated(t *testing.T) {
	text := "FILE: a.go\r\nDELETE lines 1\r\n"
	spec, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec.Files[0].Path != "a.go" {
		t.Errorf("unexpected path: %q", spec.Files[0].Path)
	}
	if strings.Contains(spec.Files[0].Path, "\r") {
		t.Error("expected CR to be stripped from the parsed path")
	}
}
