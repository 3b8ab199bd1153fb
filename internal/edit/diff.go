package edit

import (
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"corectx/internal/errs"
)

// segment is one contiguous region of a file plan: either a run of
// unchanged lines shared between old and new content, or one applied
// operation's removed/added lines.
type segment struct {
	isEdit             bool
	oldStart, oldEnd   int
	newStart, newEnd   int
	ctx                []string
	removed, added     []string
}

func buildSegments(oldLines []string, ops []ValidatedOp) []segment {
	var segs []segment
	delta := 0
	prevOldEnd := 0

	for _, vop := range ops {
		op := vop.Operation
		var oldStart, oldEnd int
		if op.Kind == OpInsert {
			oldStart, oldEnd = op.Start+1, op.Start
		} else {
			oldStart, oldEnd = op.Start, op.End
		}

		if gapStart, gapEnd := prevOldEnd+1, oldStart-1; gapEnd >= gapStart {
			segs = append(segs, segment{
				oldStart: gapStart, oldEnd: gapEnd,
				newStart: gapStart + delta, newEnd: gapEnd + delta,
				ctx: oldLines[gapStart-1 : gapEnd],
			})
		}

		var removed []string
		if oldEnd >= oldStart {
			removed = oldLines[oldStart-1 : oldEnd]
		}
		added := splitNewText(op.NewText)
		newEditStart := oldStart + delta
		newEditEnd := newEditStart + len(added) - 1

		segs = append(segs, segment{
			isEdit: true,
			oldStart: oldStart, oldEnd: oldEnd,
			newStart: newEditStart, newEnd: newEditEnd,
			removed: removed, added: added,
		})

		removedCount := 0
		if oldEnd >= oldStart {
			removedCount = oldEnd - oldStart + 1
		}
		delta += len(added) - removedCount
		if oldEnd > prevOldEnd {
			prevOldEnd = oldEnd
		}
	}

	if prevOldEnd < len(oldLines) {
		gapStart, gapEnd := prevOldEnd+1, len(oldLines)
		segs = append(segs, segment{
			oldStart: gapStart, oldEnd: gapEnd,
			newStart: gapStart + delta, newEnd: gapEnd + delta,
			ctx: oldLines[gapStart-1 : gapEnd],
		})
	}
	return segs
}

type hunkRange struct {
	segStart, segEnd         int
	borrowLeft, borrowRight  int
	oldStart, oldEnd         int
	newStart, newEnd         int
}

// buildHunks groups a file plan's edit segments into hunks, expanding
// each by contextLines on either side and merging clusters whose
// separating context segment is short enough that the expanded ranges
// would touch or overlap — "inclusive end arithmetic" per spec.md
// §4.2.5 (old_count = end - start + 1).
func buildHunks(segs []segment, contextLines, oldLen, newLen int) []hunkRange {
	var editIdxs []int
	for i, s := range segs {
		if s.isEdit {
			editIdxs = append(editIdxs, i)
		}
	}
	if len(editIdxs) == 0 {
		return nil
	}

	var clusters [][2]int
	clusterStart, clusterEnd := editIdxs[0], editIdxs[0]
	for k := 1; k < len(editIdxs); k++ {
		idx := editIdxs[k]
		merge := false
		if idx == clusterEnd+1 {
			merge = true
		} else if idx == clusterEnd+2 {
			ctxSeg := segs[clusterEnd+1]
			if ctxSeg.oldEnd-ctxSeg.oldStart+1 <= 2*contextLines {
				merge = true
			}
		}
		if merge {
			clusterEnd = idx
		} else {
			clusters = append(clusters, [2]int{clusterStart, clusterEnd})
			clusterStart, clusterEnd = idx, idx
		}
	}
	clusters = append(clusters, [2]int{clusterStart, clusterEnd})

	hunks := make([]hunkRange, 0, len(clusters))
	for _, c := range clusters {
		first, last := segs[c[0]], segs[c[1]]

		leftCtxLen := 0
		if c[0] > 0 && !segs[c[0]-1].isEdit {
			leftCtxLen = segs[c[0]-1].oldEnd - segs[c[0]-1].oldStart + 1
		}
		rightCtxLen := 0
		if c[1] < len(segs)-1 && !segs[c[1]+1].isEdit {
			rightCtxLen = segs[c[1]+1].oldEnd - segs[c[1]+1].oldStart + 1
		}
		borrowLeft := minInt(contextLines, leftCtxLen)
		borrowRight := minInt(contextLines, rightCtxLen)

		oldStart, oldEnd := first.oldStart-borrowLeft, last.oldEnd+borrowRight
		newStart, newEnd := first.newStart-borrowLeft, last.newEnd+borrowRight
		if oldStart < 1 {
			oldStart = 1
		}
		if oldEnd > oldLen {
			oldEnd = oldLen
		}
		if newStart < 1 {
			newStart = 1
		}
		if newEnd > newLen {
			newEnd = newLen
		}

		hunks = append(hunks, hunkRange{
			segStart: c[0], segEnd: c[1],
			borrowLeft: borrowLeft, borrowRight: borrowRight,
			oldStart: oldStart, oldEnd: oldEnd,
			newStart: newStart, newEnd: newEnd,
		})
	}
	return hunks
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func renderHunkBody(segs []segment, h hunkRange) []string {
	var body []string
	if h.borrowLeft > 0 {
		lines := segs[h.segStart-1].ctx
		for _, l := range lines[len(lines)-h.borrowLeft:] {
			body = append(body, " "+l)
		}
	}
	for idx := h.segStart; idx <= h.segEnd; idx++ {
		s := segs[idx]
		if s.isEdit {
			for _, l := range s.removed {
				body = append(body, "-"+l)
			}
			for _, l := range s.added {
				body = append(body, "+"+l)
			}
		} else {
			for _, l := range s.ctx {
				body = append(body, " "+l)
			}
		}
	}
	if h.borrowRight > 0 {
		lines := segs[h.segEnd+1].ctx
		for _, l := range lines[:h.borrowRight] {
			body = append(body, " "+l)
		}
	}
	return body
}

// EmitUnifiedDiff renders fp's validated operations as a unified diff
// against its current on-disk content, using sourcegraph/go-diff's
// FileDiff/Hunk types for the final text rendering (spec.md §4.2.5).
func EmitUnifiedDiff(fp FilePlan, contextWindow int) (string, error) {
	if contextWindow <= 0 {
		contextWindow = 3
	}
	newLines := applyToLines(fp)
	segs := buildSegments(fp.Lines, fp.Ops)
	hunks := buildHunks(segs, contextWindow, len(fp.Lines), len(newLines))

	gdHunks := make([]*godiff.Hunk, 0, len(hunks))
	for _, h := range hunks {
		bodyLines := renderHunkBody(segs, h)
		body := ""
		if len(bodyLines) > 0 {
			body = strings.Join(bodyLines, "\n") + "\n"
		}
		oldCount := h.oldEnd - h.oldStart + 1
		newCount := h.newEnd - h.newStart + 1
		if oldCount < 0 {
			oldCount = 0
		}
		if newCount < 0 {
			newCount = 0
		}
		gdHunks = append(gdHunks, &godiff.Hunk{
			OrigStartLine: int32(h.oldStart),
			OrigLines:     int32(oldCount),
			NewStartLine:  int32(h.newStart),
			NewLines:      int32(newCount),
			Body:          []byte(body),
		})
	}

	fd := &godiff.FileDiff{
		OrigName: "a/" + fp.Path,
		NewName:  "b/" + fp.Path,
		Hunks:    gdHunks,
	}

	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", errs.InternalErr(err, "rendering unified diff for %s", fp.Path)
	}
	return string(out), nil
}

// EmitPlanDiff renders every file in a Plan as a concatenated unified
// diff, in the plan's file order.
func EmitPlanDiff(plan *Plan, contextWindow int) (string, error) {
	var b strings.Builder
	for _, fp := range plan.Files {
		d, err := EmitUnifiedDiff(fp, contextWindow)
		if err != nil {
			return "", err
		}
		b.WriteString(d)
	}
	return b.String(), nil
}
