package edit

import (
	"os"
	"sort"
	"strings"

	"corectx/internal/errs"
)

// EOLStyle records a file's line-ending convention and whether its last
// line carries a trailing newline, so atomic writes can reproduce it
// exactly (spec.md §4.2.3).
type EOLStyle struct {
	CRLF       bool
	TrailingNL bool
}

// ValidatedOp is an Operation that has passed validation against a
// file's current content, carrying the concrete line range it touches.
type ValidatedOp struct {
	Operation
}

// FilePlan is one file's validated operations, applied in the stable
// order spec.md §4.2.2 defines: starting line ascending, DELETE before
// REPLACE before INSERT on ties, reversed (highest line first) for
// application so earlier indices stay valid as later ones mutate the
// file.
type FilePlan struct {
	Path  string
	EOL   EOLStyle
	Lines []string // current file content's lines, no line terminators
	Ops   []ValidatedOp
}

// Plan is a fully validated Spec, ready to apply.
type Plan struct {
	Files []FilePlan
}

// Validate reads every target file under repoRoot and checks each
// operation against it, returning a *errs.CoreError of kind Conflicts on
// the first SpanOutOfRange/OldContentMismatch/GuardMismatch/
// OverlappingOperations violation, or InvalidInput/Repo for I/O issues.
func Validate(spec *Spec, repoRoot string) (*Plan, error) {
	plan := &Plan{}

	for _, fb := range spec.Files {
		fp, err := validateFile(fb, repoRoot)
		if err != nil {
			return nil, err
		}
		plan.Files = append(plan.Files, *fp)
	}
	return plan, nil
}

func validateFile(fb FileBlock, repoRoot string) (*FilePlan, error) {
	absPath := repoRoot + string(os.PathSeparator) + fb.Path
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, errs.RepoErr("reading %s: %v", fb.Path, err)
	}

	if isBinary(data) {
		return nil, errs.ConflictErr("refusing to edit binary file %s without explicit permission", fb.Path)
	}

	eol := detectEOL(data)
	lines := splitLines(string(data), eol)

	if fb.HasGuard {
		start, end := guardRange(fb.Ops)
		if start > 0 {
			cur := sliceLines(lines, start, end)
			if GuardCID(cur) != fb.GuardCID {
				return nil, errs.ConflictErr("GUARD-CID mismatch for %s lines %d-%d", fb.Path, start, end)
			}
		}
	}

	ops := make([]ValidatedOp, 0, len(fb.Ops))
	for _, op := range fb.Ops {
		if err := checkSpan(op, len(lines)); err != nil {
			return nil, errs.ConflictErr("%s: %v", fb.Path, err)
		}
		if op.Kind == OpReplace && op.HasOld {
			cur := sliceLines(lines, op.Start, op.End)
			old := strings.Split(op.OldText, "\n")
			if op.OldText == "" {
				old = nil
			}
			if !sameNormalized(cur, old) {
				return nil, errs.ConflictErr("%s: OLD content mismatch at lines %d-%d", fb.Path, op.Start, op.End)
			}
		}
		ops = append(ops, ValidatedOp{Operation: op})
	}

	if err := checkOverlaps(ops); err != nil {
		return nil, errs.ConflictErr("%s: %v", fb.Path, err)
	}

	sort.SliceStable(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return kindRank(a.Kind) < kindRank(b.Kind)
	})

	return &FilePlan{Path: fb.Path, EOL: eol, Lines: lines, Ops: ops}, nil
}

func kindRank(k OpKind) int {
	switch k {
	case OpDelete:
		return 0
	case OpReplace:
		return 1
	case OpInsert:
		return 2
	default:
		return 3
	}
}

func guardRange(ops []Operation) (start, end int) {
	start, end = 0, 0
	for _, op := range ops {
		if op.Kind == OpInsert {
			continue
		}
		if start == 0 || op.Start < start {
			start = op.Start
		}
		if op.End > end {
			end = op.End
		}
	}
	return
}

func checkSpan(op Operation, fileLen int) error {
	switch op.Kind {
	case OpInsert:
		// spec.md §8: line = length+1 on INSERT is an append past the
		// last line, not an out-of-range reference.
		if op.Start < 0 || op.Start > fileLen+1 {
			return spanErr(op.Start, op.Start, fileLen)
		}
	case OpReplace, OpDelete:
		if op.Start < 1 || op.End < op.Start || op.End > fileLen {
			return spanErr(op.Start, op.End, fileLen)
		}
	}
	return nil
}

func spanErr(start, end, fileLen int) error {
	return errs.New(errs.Conflicts, "SpanOutOfRange").WithDetails(map[string]int{
		"start": start, "end": end, "fileLines": fileLen,
	})
}

// checkOverlaps enforces spec.md §4.2.2: REPLACE/DELETE ranges on the
// same file must not overlap. INSERTs never overlap a range by
// themselves; multiple INSERTs at the same line are legal.
func checkOverlaps(ops []ValidatedOp) error {
	type span struct{ s, e int }
	var spans []span
	for _, op := range ops {
		if op.Kind == OpInsert {
			continue
		}
		spans = append(spans, span{op.Start, op.End})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].s < spans[j].s })
	for i := 1; i < len(spans); i++ {
		if spans[i].s <= spans[i-1].e {
			return errs.New(errs.Conflicts, "OverlappingOperations").WithDetails(nil)
		}
	}
	return nil
}

func isBinary(data []byte) bool {
	limit := len(data)
	if limit > 8000 {
		limit = 8000
	}
	for i := 0; i < limit; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

func detectEOL(data []byte) EOLStyle {
	s := string(data)
	crlf := strings.Contains(s, "\r\n")
	trailing := len(s) > 0 && (strings.HasSuffix(s, "\n"))
	return EOLStyle{CRLF: crlf, TrailingNL: trailing}
}

func splitLines(content string, eol EOLStyle) []string {
	if eol.CRLF {
		content = strings.ReplaceAll(content, "\r\n", "\n")
	}
	if eol.TrailingNL {
		content = strings.TrimSuffix(content, "\n")
	}
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// sliceLines returns lines[start-1:end] (1-based inclusive), empty if the
// range is empty or out of bounds.
func sliceLines(lines []string, start, end int) []string {
	if start < 1 || end < start || start > len(lines) {
		return nil
	}
	if end > len(lines) {
		end = len(lines)
	}
	return lines[start-1 : end]
}
