package edit

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"corectx/internal/backup"
	"corectx/internal/contract"
	"corectx/internal/errs"
)

// Conflict is one typed, per-file failure surfaced in a Report.
type Conflict struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Report is what Apply returns: which files were written, which
// conflicted, and the backup session that was opened for the attempt.
type Report struct {
	Applied    []string   `json:"applied"`
	Conflicts  []Conflict `json:"conflicts,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	SessionDir string     `json:"sessionDir,omitempty"`
}

// FilePreview is one file's rendered diff in a Check response.
type FilePreview struct {
	Path string `json:"path"`
	Diff string `json:"diff"`
}

// Preview is what Check returns: what an Apply would do, without doing it.
type Preview struct {
	Files []FilePreview `json:"files"`
}

// Strategy is the edit engine's common contract (spec.md §4.2.4): check a
// spec without mutating anything, or apply it for real.
type Strategy interface {
	Check(spec *Spec, repoRoot string) (*Preview, error)
	Apply(ctx context.Context, spec *Spec, repoRoot, backupRoot string) (*Report, error)
}

// Internal applies operations directly against the working tree.
type Internal struct {
	ContextLines int
}

// Check validates spec against repoRoot and renders the diff each file
// would receive, without writing anything.
func (e Internal) Check(spec *Spec, repoRoot string) (*Preview, error) {
	plan, err := Validate(spec, repoRoot)
	if err != nil {
		return nil, err
	}
	prev := &Preview{}
	for _, fp := range plan.Files {
		d, err := EmitUnifiedDiff(fp, e.ContextLines)
		if err != nil {
			return nil, err
		}
		prev.Files = append(prev.Files, FilePreview{Path: fp.Path, Diff: d})
	}
	return prev, nil
}

// Apply validates spec, opens a backup session, backs up every target
// file before any write, writes every file atomically, and finalizes the
// session. On any failure the session is abandoned (finalized as failed)
// and no files are left partially written (spec.md §7 "never writes
// partial results").
func (e Internal) Apply(ctx context.Context, spec *Spec, repoRoot, backupRoot string) (*Report, error) {
	plan, err := Validate(spec, repoRoot)
	if err != nil {
		if ce, ok := asCoreError(err); ok {
			return nil, ce
		}
		return nil, err
	}

	mgr, err := backup.Begin(repoRoot, backupRoot, "edit.apply", "internal", nil, "")
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, fp := range plan.Files {
		if err := mgr.BackupFile(fp.Path); err != nil {
			mgr.Abandon()
			return nil, err
		}
	}

	for _, fp := range plan.Files {
		newLines := applyToLines(fp)
		data := renderContent(newLines, fp.EOL)
		absPath := filepath.Join(repoRoot, fp.Path)
		if err := writeFileAtomic(absPath, data); err != nil {
			mgr.Abandon()
			return nil, err
		}
		report.Applied = append(report.Applied, fp.Path)
	}

	if err := mgr.Finalize(true); err != nil {
		return nil, err
	}
	report.SessionID = mgr.SessionID()
	return report, nil
}

// External3Way renders each file's reconstructed base/ours/theirs and
// delegates the merge to an external three-way helper, tolerating drift
// that Internal's strict OLD-content check would reject outright.
type External3Way struct {
	Helper       contract.MergeHelper
	ContextLines int
}

func (e External3Way) Check(spec *Spec, repoRoot string) (*Preview, error) {
	prev := &Preview{}
	for _, fb := range spec.Files {
		base, ours, theirs, eol, err := e.reconstruct(fb, repoRoot)
		if err != nil {
			return nil, err
		}
		fp := FilePlan{Path: fb.Path, EOL: eol, Lines: ours, Ops: sortedValidatedOps(fb.Ops)}
		d, err := EmitUnifiedDiff(fp, e.ContextLines)
		if err != nil {
			return nil, err
		}
		prev.Files = append(prev.Files, FilePreview{Path: fb.Path, Diff: d})
		_ = base
		_ = theirs
	}
	return prev, nil
}

func (e External3Way) Apply(ctx context.Context, spec *Spec, repoRoot, backupRoot string) (*Report, error) {
	if e.Helper == nil {
		return nil, errs.InternalErr(nil, "External3Way strategy requires a MergeHelper")
	}

	mgr, err := backup.Begin(repoRoot, backupRoot, "edit.apply", "external-3way", nil, "")
	if err != nil {
		return nil, err
	}

	report := &Report{}
	type pending struct {
		path string
		eol  EOLStyle
		data []byte
	}
	var writes []pending

	for _, fb := range spec.Files {
		if err := mgr.BackupFile(fb.Path); err != nil {
			mgr.Abandon()
			return nil, err
		}

		baseLines, oursLines, theirsLines, eol, err := e.reconstruct(fb, repoRoot)
		if err != nil {
			mgr.Abandon()
			return nil, err
		}

		result, err := e.Helper.Merge(ctx,
			strings.Join(baseLines, "\n"),
			strings.Join(oursLines, "\n"),
			strings.Join(theirsLines, "\n"))
		if err != nil {
			mgr.Abandon()
			return nil, errs.InternalErr(err, "merge helper failed for %s", fb.Path)
		}

		if result.Conflict {
			report.Conflicts = append(report.Conflicts, Conflict{
				Path: fb.Path, Kind: "MergeConflict", Message: "external three-way merge left conflict markers",
			})
			continue
		}

		mergedLines := strings.Split(result.Merged, "\n")
		writes = append(writes, pending{path: fb.Path, eol: eol, data: renderContent(mergedLines, eol)})
	}

	if len(report.Conflicts) > 0 {
		mgr.Abandon()
		return report, errs.ConflictErr("external three-way merge produced %d conflict(s)", len(report.Conflicts))
	}

	for _, w := range writes {
		absPath := filepath.Join(repoRoot, w.path)
		if err := writeFileAtomic(absPath, w.data); err != nil {
			mgr.Abandon()
			return nil, err
		}
		report.Applied = append(report.Applied, w.path)
	}

	if err := mgr.Finalize(true); err != nil {
		return nil, err
	}
	report.SessionID = mgr.SessionID()
	return report, nil
}

// reconstruct rebuilds the three versions a three-way merge needs: base
// (current content with each REPLACE's OLD: text spliced back in, i.e.
// "what the spec assumed"), ours (current on-disk content, possibly
// drifted), and theirs (base with every operation cleanly applied).
func (e External3Way) reconstruct(fb FileBlock, repoRoot string) (base, ours, theirs []string, eol EOLStyle, err error) {
	absPath := filepath.Join(repoRoot, fb.Path)
	data, readErr := os.ReadFile(absPath)
	if readErr != nil {
		return nil, nil, nil, EOLStyle{}, errs.RepoErr("reading %s: %v", fb.Path, readErr)
	}
	eol = detectEOL(data)
	ours = splitLines(string(data), eol)

	base = append([]string{}, ours...)
	ops := sortedOps(fb.Ops)
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Kind == OpReplace && op.HasOld {
			base = spliceLines(base, op.Start-1, op.End, splitNewText(op.OldText))
		}
	}

	theirs = applyOpsToLines(base, ops)
	return base, ours, theirs, eol, nil
}

func sortedOps(ops []Operation) []Operation {
	out := append([]Operation{}, ops...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return kindRank(out[i].Kind) < kindRank(out[j].Kind)
	})
	return out
}

func sortedValidatedOps(ops []Operation) []ValidatedOp {
	sorted := sortedOps(ops)
	out := make([]ValidatedOp, len(sorted))
	for i, op := range sorted {
		out[i] = ValidatedOp{Operation: op}
	}
	return out
}

// Hybrid tries Internal first; on a Conflicts-kind failure it retries
// with External3Way. With no External3Way helper configured it degrades
// to Internal only (spec.md §4.2.4's "no repository available" case,
// generalized to "no helper available").
type Hybrid struct {
	Internal Internal
	External External3Way
}

func (h Hybrid) Check(spec *Spec, repoRoot string) (*Preview, error) {
	return h.Internal.Check(spec, repoRoot)
}

func (h Hybrid) Apply(ctx context.Context, spec *Spec, repoRoot, backupRoot string) (*Report, error) {
	report, err := h.Internal.Apply(ctx, spec, repoRoot, backupRoot)
	if err == nil {
		return report, nil
	}

	if h.External.Helper == nil {
		return nil, err
	}

	if ce, ok := asCoreError(err); !ok || ce.Kind != errs.Conflicts {
		return nil, err
	}

	return h.External.Apply(ctx, spec, repoRoot, backupRoot)
}

func asCoreError(err error) (*errs.CoreError, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if ce, ok := e.(*errs.CoreError); ok {
			return ce, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}
