package edit

import (
	"regexp"
	"strconv"
	"strings"

	"corectx/internal/errs"
)

var (
	reFileHeader    = regexp.MustCompile(`^FILE:\s*(.+)$`)
	reGuardHeader   = regexp.MustCompile(`^GUARD-CID:\s*([0-9a-fA-F]+)\s*$`)
	reReplaceHeader = regexp.MustCompile(`^REPLACE lines (\d+)(?:-(\d+))?:\s*$`)
	reInsertHeader  = regexp.MustCompile(`^INSERT at (\d+):\s*$`)
	reDeleteHeader  = regexp.MustCompile(`^DELETE lines (\d+)(?:-(\d+))?\s*$`)
	reOldHeader     = regexp.MustCompile(`^OLD:\s*$`)
	reNewHeader     = regexp.MustCompile(`^NEW:\s*$`)
	reFence         = regexp.MustCompile("^(`{3,})(.*)$")
)

// Parse parses a textual edit spec into a Spec. Directive recognition is
// case-sensitive and matches at line start after trimming surrounding
// whitespace (spec.md §4.2.1).
func Parse(text string) (*Spec, error) {
	lines := strings.Split(text, "\n")
	// A final newline ends the last line; it does not start an empty one.
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	p := &parser{lines: lines}
	return p.run()
}

type parser struct {
	lines []string
	i     int
}

func (p *parser) run() (*Spec, error) {
	spec := &Spec{}
	var cur *FileBlock

	for p.i < len(p.lines) {
		raw := p.lines[p.i]
		t := strings.TrimSpace(strings.TrimRight(raw, "\r"))

		if t == "" || strings.HasPrefix(t, "#") {
			p.i++
			continue
		}

		switch {
		case reFileHeader.MatchString(t):
			m := reFileHeader.FindStringSubmatch(t)
			if cur != nil {
				spec.Files = append(spec.Files, *cur)
			}
			cur = &FileBlock{Path: strings.TrimSpace(m[1])}
			p.i++

		case reGuardHeader.MatchString(t):
			if cur == nil {
				return nil, errs.Invalid("GUARD-CID directive with no preceding FILE: at line %d", p.i+1)
			}
			m := reGuardHeader.FindStringSubmatch(t)
			cur.GuardCID = strings.ToLower(m[1])
			cur.HasGuard = true
			p.i++

		case reReplaceHeader.MatchString(t):
			if cur == nil {
				return nil, errs.Invalid("REPLACE directive with no preceding FILE: at line %d", p.i+1)
			}
			op, err := p.parseReplace(t)
			if err != nil {
				return nil, err
			}
			cur.Ops = append(cur.Ops, op)

		case reInsertHeader.MatchString(t):
			if cur == nil {
				return nil, errs.Invalid("INSERT directive with no preceding FILE: at line %d", p.i+1)
			}
			op, err := p.parseInsert(t)
			if err != nil {
				return nil, err
			}
			cur.Ops = append(cur.Ops, op)

		case reDeleteHeader.MatchString(t):
			if cur == nil {
				return nil, errs.Invalid("DELETE directive with no preceding FILE: at line %d", p.i+1)
			}
			op, err := p.parseDelete(t)
			if err != nil {
				return nil, err
			}
			cur.Ops = append(cur.Ops, op)
			p.i++

		default:
			return nil, errs.Invalid("unrecognized directive at line %d: %q", p.i+1, t)
		}
	}

	if cur != nil {
		spec.Files = append(spec.Files, *cur)
	}
	return spec, nil
}

func (p *parser) parseReplace(header string) (Operation, error) {
	m := reReplaceHeader.FindStringSubmatch(header)
	start, _ := strconv.Atoi(m[1])
	end := start
	if m[2] != "" {
		end, _ = strconv.Atoi(m[2])
	}
	p.i++ // consume REPLACE header

	if err := p.expectHeader(reOldHeader, "OLD:"); err != nil {
		return Operation{}, err
	}
	oldText, err := p.readBlock()
	if err != nil {
		return Operation{}, err
	}

	if err := p.expectHeader(reNewHeader, "NEW:"); err != nil {
		return Operation{}, err
	}
	newText, err := p.readBlock()
	if err != nil {
		return Operation{}, err
	}

	return Operation{Kind: OpReplace, Start: start, End: end, OldText: oldText, HasOld: true, NewText: newText}, nil
}

func (p *parser) parseInsert(header string) (Operation, error) {
	m := reInsertHeader.FindStringSubmatch(header)
	at, _ := strconv.Atoi(m[1])
	p.i++ // consume INSERT header

	if err := p.expectHeader(reNewHeader, "NEW:"); err != nil {
		return Operation{}, err
	}
	newText, err := p.readBlock()
	if err != nil {
		return Operation{}, err
	}

	return Operation{Kind: OpInsert, Start: at, NewText: newText}, nil
}

func (p *parser) parseDelete(header string) (Operation, error) {
	m := reDeleteHeader.FindStringSubmatch(header)
	start, _ := strconv.Atoi(m[1])
	end := start
	if m[2] != "" {
		end, _ = strconv.Atoi(m[2])
	}
	return Operation{Kind: OpDelete, Start: start, End: end}, nil
}

// expectHeader skips blank/comment lines then requires the current line
// to match re, consuming it.
func (p *parser) expectHeader(re *regexp.Regexp, name string) error {
	for p.i < len(p.lines) {
		t := strings.TrimSpace(strings.TrimRight(p.lines[p.i], "\r"))
		if t == "" || strings.HasPrefix(t, "#") {
			p.i++
			continue
		}
		if !re.MatchString(t) {
			return errs.Invalid("expected %s at line %d, found %q", name, p.i+1, t)
		}
		p.i++
		return nil
	}
	return errs.Invalid("expected %s, reached end of spec", name)
}

// readBlock implements spec.md §4.2.1's OLD:/NEW: body rules: one
// optional leading blank line, then either a fenced block (3+ backticks,
// closing fence with the same count) or an unfenced block terminated by
// the next recognizable directive start.
func (p *parser) readBlock() (string, error) {
	if p.i < len(p.lines) && strings.TrimSpace(strings.TrimRight(p.lines[p.i], "\r")) == "" {
		p.i++
	}

	if p.i < len(p.lines) {
		t := strings.TrimRight(p.lines[p.i], "\r")
		if m := reFence.FindStringSubmatch(t); m != nil {
			fence := m[1]
			p.i++
			var body []string
			for p.i < len(p.lines) {
				line := strings.TrimRight(p.lines[p.i], "\r")
				if strings.TrimSpace(line) == fence {
					p.i++
					return strings.Join(body, "\n"), nil
				}
				body = append(body, line)
				p.i++
			}
			return "", errs.Invalid("unterminated fenced block, expected closing %s", fence)
		}
	}

	var body []string
	for p.i < len(p.lines) {
		line := strings.TrimRight(p.lines[p.i], "\r")
		t := strings.TrimSpace(line)
		if isDirectiveStart(t) {
			break
		}
		body = append(body, line)
		p.i++
	}
	return strings.Join(body, "\n"), nil
}

func isDirectiveStart(t string) bool {
	return reOldHeader.MatchString(t) ||
		reNewHeader.MatchString(t) ||
		reFileHeader.MatchString(t) ||
		reReplaceHeader.MatchString(t) ||
		reInsertHeader.MatchString(t) ||
		reDeleteHeader.MatchString(t) ||
		reGuardHeader.MatchString(t)
}
