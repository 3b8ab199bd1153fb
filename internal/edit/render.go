package edit

import "strings"

// RenderSpec serializes a Spec back to the textual edit-spec format. A
// file block's GUARD-CID is written exactly as the block carries it; it is
// not recomputed, neither from OLD: text nor from the file on disk. This
// is the basis for the §8 round-trip property
// (Parse(RenderSpec(Parse(text))) == Parse(text)).
func RenderSpec(spec *Spec) string {
	var b strings.Builder
	for _, fb := range spec.Files {
		b.WriteString("FILE: ")
		b.WriteString(fb.Path)
		b.WriteString("\n")

		if fb.HasGuard {
			b.WriteString("GUARD-CID: ")
			b.WriteString(fb.GuardCID)
			b.WriteString("\n")
		}

		for _, op := range fb.Ops {
			switch op.Kind {
			case OpReplace:
				b.WriteString(replaceHeader(op.Start, op.End))
				b.WriteString("\nOLD:\n```\n")
				b.WriteString(op.OldText)
				b.WriteString("\n```\nNEW:\n```\n")
				b.WriteString(op.NewText)
				b.WriteString("\n```\n")
			case OpInsert:
				b.WriteString(insertHeader(op.Start))
				b.WriteString("\nNEW:\n```\n")
				b.WriteString(op.NewText)
				b.WriteString("\n```\n")
			case OpDelete:
				b.WriteString(deleteHeader(op.Start, op.End))
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func replaceHeader(start, end int) string {
	if start == end {
		return "REPLACE lines " + itoaEdit(start) + ":"
	}
	return "REPLACE lines " + itoaEdit(start) + "-" + itoaEdit(end) + ":"
}

func insertHeader(at int) string {
	return "INSERT at " + itoaEdit(at) + ":"
}

func deleteHeader(start, end int) string {
	if start == end {
		return "DELETE lines " + itoaEdit(start)
	}
	return "DELETE lines " + itoaEdit(start) + "-" + itoaEdit(end)
}

func itoaEdit(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
