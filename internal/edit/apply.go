package edit

import (
	"os"
	"path/filepath"
	"strings"

	"corectx/internal/errs"
)

func splitNewText(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// applyToLines produces a file's new line content by applying fp.Ops in
// reverse start-line order (highest line first), so the indices of
// not-yet-applied, lower-numbered operations stay valid (spec.md
// §4.2.2). fp.Ops is assumed already sorted ascending (Validate's order).
func applyToLines(fp FilePlan) []string {
	ops := make([]Operation, len(fp.Ops))
	for i, vop := range fp.Ops {
		ops[i] = vop.Operation
	}
	return applyOpsToLines(fp.Lines, ops)
}

// applyOpsToLines applies ops (assumed sorted ascending by start line) to
// lines in reverse order, same rule as applyToLines, for callers that
// don't have a full FilePlan (the external three-way path reconstructs
// lines from spec text rather than a validated plan).
func applyOpsToLines(lines []string, ops []Operation) []string {
	out := append([]string{}, lines...)
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		switch op.Kind {
		case OpDelete:
			out = spliceLines(out, op.Start-1, op.End, nil)
		case OpReplace:
			out = spliceLines(out, op.Start-1, op.End, splitNewText(op.NewText))
		case OpInsert:
			out = spliceLines(out, op.Start, op.Start, splitNewText(op.NewText))
		}
	}
	return out
}

// spliceLines replaces lines[from:to] with repl, returning a fresh slice
// so callers never alias the original backing array across operations.
func spliceLines(lines []string, from, to int, repl []string) []string {
	out := make([]string, 0, len(lines)-(to-from)+len(repl))
	out = append(out, lines[:from]...)
	out = append(out, repl...)
	out = append(out, lines[to:]...)
	return out
}

// renderContent joins lines back into file bytes, reproducing the
// original EOL style and trailing-newline status exactly.
func renderContent(lines []string, eol EOLStyle) []byte {
	body := strings.Join(lines, "\n")
	if eol.TrailingNL && len(lines) > 0 {
		body += "\n"
	}
	if eol.CRLF {
		body = strings.ReplaceAll(body, "\n", "\r\n")
	}
	return []byte(body)
}

// writeFileAtomic writes data to a temp file beside path, copies path's
// original permissions, then renames the temp file over the original
// (spec.md §4.2.3).
func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	perm := os.FileMode(0644)
	if err == nil {
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".corectx-edit-*")
	if err != nil {
		return errs.InternalErr(err, "creating temp file for %s", path)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.InternalErr(err, "writing temp file for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.InternalErr(err, "syncing temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.InternalErr(err, "closing temp file for %s", path)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return errs.InternalErr(err, "restoring permissions on %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.InternalErr(err, "renaming temp file over %s", path)
	}
	return nil
}
