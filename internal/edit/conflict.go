package edit

import "strings"

// ConflictBlock is one conflict-marker region found in a file: the lines
// delimited by <<<<<<</=======/>>>>>>> (2-way) or additionally ||||||| for
// the base version (3-way).
type ConflictBlock struct {
	StartLine int // line of the opening <<<<<<< marker, 1-based
	EndLine   int // line of the closing >>>>>>> marker, 1-based
	Ours      []string
	Base      []string
	Theirs    []string
	HasBase   bool
}

const (
	markerOurs  = "<<<<<<<"
	markerBase  = "|||||||"
	markerSep   = "======="
	markerEnd   = ">>>>>>>"
)

// ScanConflicts scans content for column-0 conflict markers, working
// byte-wise so non-UTF-8 content never panics. Line endings are
// preserved in the returned EOLStyle but stripped from captured text.
func ScanConflicts(content []byte) ([]ConflictBlock, EOLStyle) {
	eol := detectEOL(content)
	raw := strings.Split(string(content), "\n")

	var blocks []ConflictBlock
	state := 0 // 0 normal, 1 ours, 2 base, 3 theirs
	var cur ConflictBlock

	for i, line := range raw {
		t := strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(t, markerOurs) && state == 0:
			cur = ConflictBlock{StartLine: i + 1}
			state = 1
		case strings.HasPrefix(t, markerBase) && state == 1:
			state = 2
			cur.HasBase = true
		case strings.HasPrefix(t, markerSep) && (state == 1 || state == 2):
			state = 3
		case strings.HasPrefix(t, markerEnd) && state == 3:
			cur.EndLine = i + 1
			blocks = append(blocks, cur)
			state = 0
		default:
			switch state {
			case 1:
				cur.Ours = append(cur.Ours, t)
			case 2:
				cur.Base = append(cur.Base, t)
			case 3:
				cur.Theirs = append(cur.Theirs, t)
			}
		}
	}
	return blocks, eol
}

// Rule names the SmartMerge rule that produced a Resolution.
type Rule string

const (
	RuleWhitespaceOnly Rule = "whitespace-only"
	RuleAdditionOnly    Rule = "addition-only"
	RuleSuperset        Rule = "superset"
	RuleDisjoint        Rule = "disjoint-edits"
	RuleUnresolved      Rule = "unresolved"
)

// Resolution is one block's SmartMerge outcome.
type Resolution struct {
	Block      ConflictBlock
	Lines      []string
	Rule       Rule
	Confidence float64
	Resolved   bool
}

// smartMergeMinConfidence is the acceptance threshold spec.md §4.2.6
// requires (>= 0.95).
const smartMergeMinConfidence = 0.95

// Resolve applies the SmartMerge rule pipeline at the default confidence
// threshold. See ResolveWithThreshold for a caller-configured threshold
// (wired from config.EditConfig.SmartMergeMinCnf).
func Resolve(b ConflictBlock) Resolution {
	return ResolveWithThreshold(b, smartMergeMinConfidence)
}

// ResolveWithThreshold applies the SmartMerge rule pipeline to one
// conflict block in order, returning the first rule that fires. Resolved
// is false (Rule RuleUnresolved) when no rule applies or the
// confidence/subset guard rejects the candidate.
func ResolveWithThreshold(b ConflictBlock, minConfidence float64) Resolution {
	if normalizeWhitespace(b.Ours) == normalizeWhitespace(b.Theirs) {
		lines := b.Ours
		if len(nonWhitespaceLines(b.Ours)) == 0 && len(nonWhitespaceLines(b.Theirs)) > 0 {
			lines = b.Theirs
		}
		return accept(b, lines, RuleWhitespaceOnly, 0.97, minConfidence)
	}

	if isLineSuperset(b.Ours, b.Theirs) {
		return accept(b, b.Ours, RuleAdditionOnly, 0.97, minConfidence)
	}
	if isLineSuperset(b.Theirs, b.Ours) {
		return accept(b, b.Theirs, RuleAdditionOnly, 0.97, minConfidence)
	}

	if b.HasBase {
		oursSuperset := isLineSuperset(b.Ours, b.Base)
		theirsSuperset := isLineSuperset(b.Theirs, b.Base)
		if oursSuperset && !theirsSuperset {
			return accept(b, b.Ours, RuleSuperset, 0.96, minConfidence)
		}
		if theirsSuperset && !oursSuperset {
			return accept(b, b.Theirs, RuleSuperset, 0.96, minConfidence)
		}

		if oursSuperset && theirsSuperset {
			oursAdded := linesNotIn(b.Ours, b.Base)
			theirsAdded := linesNotIn(b.Theirs, b.Base)
			if disjointSets(oursAdded, theirsAdded) {
				merged := unionPreservingOrder(b.Base, oursAdded, theirsAdded)
				return accept(b, merged, RuleDisjoint, 0.95, minConfidence)
			}
		}
	}

	return Resolution{Block: b, Rule: RuleUnresolved, Confidence: 0, Resolved: false}
}

func accept(b ConflictBlock, lines []string, rule Rule, confidence, minConfidence float64) Resolution {
	res := Resolution{Block: b, Lines: lines, Rule: rule, Confidence: confidence}
	if confidence >= minConfidence && nonTrivialSubset(lines, b.Ours, b.Theirs) {
		res.Resolved = true
	} else {
		res.Rule = RuleUnresolved
		res.Resolved = false
	}
	return res
}

// nonTrivialSubset guards against a resolution that silently discards
// the bulk of both sides' content.
func nonTrivialSubset(resolved, ours, theirs []string) bool {
	if len(resolved) == 0 {
		return len(ours) == 0 && len(theirs) == 0
	}
	longest := len(ours)
	if len(theirs) > longest {
		longest = len(theirs)
	}
	return len(resolved)*2 >= longest
}

func normalizeWhitespace(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.Join(strings.Fields(l), ""))
	}
	return b.String()
}

func nonWhitespaceLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// isLineSuperset reports whether every line in sub appears in super,
// preserving sub's relative order (a simple, order-aware multiset
// containment check).
func isLineSuperset(super, sub []string) bool {
	remaining := append([]string{}, super...)
	for _, s := range sub {
		found := -1
		for i, r := range remaining {
			if r == s {
				found = i
				break
			}
		}
		if found == -1 {
			return false
		}
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	return true
}

func linesNotIn(lines, base []string) []string {
	baseSet := make(map[string]int, len(base))
	for _, b := range base {
		baseSet[b]++
	}
	var out []string
	for _, l := range lines {
		if baseSet[l] > 0 {
			baseSet[l]--
			continue
		}
		out = append(out, l)
	}
	return out
}

func disjointSets(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, l := range a {
		set[l] = true
	}
	for _, l := range b {
		if set[l] {
			return false
		}
	}
	return true
}

func unionPreservingOrder(base, oursAdded, theirsAdded []string) []string {
	out := append([]string{}, base...)
	out = append(out, oursAdded...)
	out = append(out, theirsAdded...)
	return out
}

// RenderConflictBlock re-emits a block in standard marker form, used when
// a Resolve call returns Unresolved and the caller wants to preserve the
// markers as-is in output.
func RenderConflictBlock(b ConflictBlock) []string {
	var out []string
	out = append(out, markerOurs)
	out = append(out, b.Ours...)
	if b.HasBase {
		out = append(out, markerBase)
		out = append(out, b.Base...)
	}
	out = append(out, markerSep)
	out = append(out, b.Theirs...)
	out = append(out, markerEnd)
	return out
}
