package ctxengine

import (
	"sort"
	"strings"

	"corectx/internal/piece"
)

// MergeOverlaps merges overlapping or adjacent pieces within the same
// file, splitting a newly-considered piece's body to exclude lines
// already covered by the piece it's merging into — the exact algorithm
// from original_source/src/core/context.rs's merge_overlaps (spec.md
// §4.3.4, §8 "Overlap-merge correctness").
func MergeOverlaps(pieces []piece.Piece) []piece.Piece {
	if len(pieces) == 0 {
		return nil
	}

	sorted := make([]piece.Piece, len(pieces))
	copy(sorted, pieces)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].StartLine < sorted[j].StartLine
	})

	var out []piece.Piece
	cur := sorted[0]

	for _, p := range sorted[1:] {
		if !cur.OverlapsOrAdjoins(p) {
			out = append(out, cur)
			cur = p
			continue
		}

		if p.EndLine <= cur.EndLine {
			// Fully contained in cur; nothing new to add.
			continue
		}

		if p.StartLine <= cur.EndLine {
			// Partial overlap: drop the lines of p already covered by
			// cur, then append the remainder.
			overlapLines := cur.EndLine - p.StartLine + 1
			remainder := dropLines(p.Body, overlapLines)
			if remainder != "" {
				if cur.Body != "" {
					cur.Body = cur.Body + "\n" + remainder
				} else {
					cur.Body = remainder
				}
			}
			cur.EndLine = p.EndLine
			continue
		}

		// Adjacent (p.StartLine == cur.EndLine+1): append in full.
		if cur.Body != "" && p.Body != "" {
			cur.Body = cur.Body + "\n" + p.Body
		} else if p.Body != "" {
			cur.Body = p.Body
		}
		cur.EndLine = p.EndLine
	}
	out = append(out, cur)
	return out
}

func dropLines(body string, n int) string {
	if n <= 0 {
		return body
	}
	lines := strings.Split(body, "\n")
	if n >= len(lines) {
		return ""
	}
	return strings.Join(lines[n:], "\n")
}
