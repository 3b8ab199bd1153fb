package edit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"corectx/internal/contract"
	"corectx/internal/errs"
)

func writeRepoFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestInternal_CheckRendersDiffWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "line2", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := Internal{ContextLines: 1}
	prev, err := strat.Check(spec, dir)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(prev.Files) != 1 || !strings.Contains(prev.Files[0].Diff, "+LINE2") {
		t.Fatalf("unexpected preview: %+v", prev)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a.go"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "line1\nline2\n" {
		t.Errorf("Check must not mutate the file, got %q", data)
	}
}

func TestInternal_ApplyWritesFileAndOpensBackupSession(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "line2", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := Internal{ContextLines: 3}
	report, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Applied) != 1 || report.Applied[0] != "a.go" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.SessionID == "" {
		t.Error("expected a backup session id to be recorded")
	}

	data, err := os.ReadFile(filepath.Join(repoDir, "a.go"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "line1\nLINE2\n" {
		t.Errorf("unexpected file content after apply: %q", data)
	}
}

func TestInternal_ApplyFailsOnOldContentMismatchWithoutWriting(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "wrong", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := Internal{}
	_, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err == nil {
		t.Fatal("expected Apply to fail on OLD content mismatch")
	}
	ce, ok := asCoreError(err)
	if !ok || ce.Kind != errs.Conflicts {
		t.Errorf("expected a Conflicts-kind error, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(repoDir, "a.go"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "line1\nline2\n" {
		t.Errorf("expected the file left untouched after a failed validate, got %q", data)
	}
}

// fakeMergeHelper lets tests control whether an external merge
// "succeeds cleanly" or "leaves conflict markers" without shelling out.
type fakeMergeHelper struct {
	conflict bool
	merged   string
	err      error
}

func (f fakeMergeHelper) Merge(ctx context.Context, base, ours, theirs string) (contract.MergeResult, error) {
	if f.err != nil {
		return contract.MergeResult{}, f.err
	}
	if f.conflict {
		return contract.MergeResult{Conflict: true}, nil
	}
	merged := f.merged
	if merged == "" {
		merged = theirs
	}
	return contract.MergeResult{Merged: merged}, nil
}

func TestExternal3Way_ApplyWithoutHelperErrors(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "line2", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := External3Way{}
	_, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err == nil {
		t.Fatal("expected an error when no MergeHelper is configured")
	}
}

func TestExternal3Way_ApplyWritesMergedContentOnCleanMerge(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "line2", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := External3Way{Helper: fakeMergeHelper{merged: "line1\nLINE2"}}
	report, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Applied) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	data, err := os.ReadFile(filepath.Join(repoDir, "a.go"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "line1\nLINE2\n" {
		t.Errorf("unexpected merged content: %q", data)
	}
}

func TestExternal3Way_ApplyRecordsConflictAndDoesNotWriteOnHelperConflict(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "line2", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := External3Way{Helper: fakeMergeHelper{conflict: true}}
	report, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err == nil {
		t.Fatal("expected Apply to report an error when the merge helper leaves conflicts")
	}
	if report == nil || len(report.Conflicts) != 1 || report.Conflicts[0].Kind != "MergeConflict" {
		t.Errorf("expected exactly one MergeConflict, got %+v", report)
	}

	data, err := os.ReadFile(filepath.Join(repoDir, "a.go"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "line1\nline2\n" {
		t.Errorf("expected the file left untouched after a merge conflict, got %q", data)
	}
}

func TestHybrid_ApplyFallsBackToExternalOnConflictsError(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "drifted-old-text", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := Hybrid{
		Internal: Internal{},
		External: External3Way{Helper: fakeMergeHelper{merged: "merged-content"}},
	}
	report, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err != nil {
		t.Fatalf("expected Hybrid to fall back to External3Way and succeed, got %v", err)
	}
	if len(report.Applied) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestHybrid_ApplyDoesNotFallBackWithoutExternalHelper(t *testing.T) {
	repoDir := t.TempDir()
	backupDir := t.TempDir()
	writeRepoFile(t, repoDir, "a.go", "line1\nline2\n")

	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "drifted-old-text", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := Hybrid{Internal: Internal{}}
	_, err := strat.Apply(context.Background(), spec, repoDir, backupDir)
	if err == nil {
		t.Fatal("expected no fallback and a propagated error when no External helper is configured")
	}
}

func TestHybrid_CheckDelegatesToInternal(t *testing.T) {
	dir := t.TempDir()
	writeRepoFile(t, dir, "a.go", "line1\nline2\n")
	spec := &Spec{Files: []FileBlock{{
		Path: "a.go",
		Ops:  []Operation{{Kind: OpReplace, Start: 2, End: 2, OldText: "line2", HasOld: true, NewText: "LINE2"}},
	}}}

	strat := Hybrid{Internal: Internal{ContextLines: 1}}
	prev, err := strat.Check(spec, dir)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(prev.Files) != 1 {
		t.Fatalf("unexpected preview: %+v", prev)
	}
}

func TestSortedOps_DeleteBeforeReplaceBeforeInsertOnTies(t *testing.T) {
	ops := []Operation{
		{Kind: OpInsert, Start: 1},
		{Kind: OpReplace, Start: 1, End: 1},
		{Kind: OpDelete, Start: 1, End: 1},
	}
	got := sortedOps(ops)
	if got[0].Kind != OpDelete || got[1].Kind != OpReplace || got[2].Kind != OpInsert {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestAsCoreError_UnwrapsWrappedError(t *testing.T) {
	base := errs.New(errs.Conflicts, "boom")
	_, ok := asCoreError(base)
	if !ok {
		t.Error("expected a direct *errs.CoreError to be recognized")
	}
	_, ok = asCoreError(os.ErrNotExist)
	if ok {
		t.Error("expected a plain stdlib error not to be recognized as a CoreError")
	}
}
