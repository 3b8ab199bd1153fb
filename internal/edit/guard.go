package edit

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// normalizeLines produces the canonical form guard CIDs and OLD-text
// comparisons are computed over: CRLF collapsed to LF, trailing
// whitespace on each line stripped, joined with LF (spec.md §8 "Guard
// determinism").
func normalizeLines(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		l = strings.ReplaceAll(l, "\r\n", "\n")
		l = strings.TrimRight(l, "\r")
		l = strings.TrimRight(l, " \t")
		out[i] = l
	}
	return strings.Join(out, "\n")
}

// GuardCID computes the 16-hex-char guard content identifier for a slice
// of lines: the xxh64 (seed 0) digest of their normalized form.
func GuardCID(lines []string) string {
	sum := xxhash.Sum64String(normalizeLines(lines))
	return fmt.Sprintf("%016x", sum)
}

// sameNormalized reports whether a and b are equal after normalization,
// used for OLD: text comparison against current file content.
func sameNormalized(a, b []string) bool {
	return normalizeLines(a) == normalizeLines(b)
}
