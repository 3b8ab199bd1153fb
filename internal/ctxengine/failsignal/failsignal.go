// Package failsignal parses compiler/test log output looking for file:line
// references to boost during ranking (spec.md §4.3.5 item 4), grounded on
// original_source/src/core/fail_signal.rs.
package failsignal

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Severity is the signal strength a fail-signal line carries. The open
// question of exact numeric weights (spec.md §9) is resolved in DESIGN.md
// by requiring only that Error >= Warn >= Info hold; BoostFor below
// encodes that ordering without inventing precise magnitudes the spec
// never specifies.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarn
	SeverityError
)

// Signal is one parsed reference to a file/line from a build or test log.
type Signal struct {
	File     string
	Line     int
	Severity Severity
	RawLine  string
}

// patterns match common compiler/test-runner output shapes:
//
//	path/to/file.go:42:10: error: ...
//	path/to/file.go:42: FAIL
//	  --> path/to/file.rs:42:5
var patterns = []struct {
	re  *regexp.Regexp
	sev func(line string) Severity
}{
	{regexp.MustCompile(`^([^\s:][^:]*):(\d+)(?::\d+)?:\s*(error|Error|FAIL)`), func(string) Severity { return SeverityError }},
	{regexp.MustCompile(`^([^\s:][^:]*):(\d+)(?::\d+)?:\s*(warning|Warning|WARN)`), func(string) Severity { return SeverityWarn }},
	{regexp.MustCompile(`^\s*-->\s*([^\s:]+):(\d+)(?::\d+)?`), func(string) Severity { return SeverityError }},
	{regexp.MustCompile(`^([^\s:][^:]*):(\d+):`), func(string) Severity { return SeverityInfo }},
}

// Parse scans a build/test log and returns every file:line signal found.
func Parse(log string) []Signal {
	var signals []Signal
	scanner := bufio.NewScanner(strings.NewReader(log))
	for scanner.Scan() {
		line := scanner.Text()
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			lineNo, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			signals = append(signals, Signal{
				File:     m[1],
				Line:     lineNo,
				Severity: p.sev(line),
				RawLine:  line,
			})
			break
		}
	}
	return signals
}

// BoostFor returns a ranking boost in [0,1] for a given severity,
// strictly monotonic: Error > Warn > Info > none (0).
func BoostFor(sev Severity) float64 {
	switch sev {
	case SeverityError:
		return 1.0
	case SeverityWarn:
		return 0.6
	case SeverityInfo:
		return 0.3
	default:
		return 0
	}
}

// ByLocation indexes signals by "file:line" for O(1) lookup during ranking.
func ByLocation(signals []Signal) map[string]Signal {
	out := make(map[string]Signal, len(signals))
	for _, s := range signals {
		key := s.File + ":" + strconv.Itoa(s.Line)
		existing, ok := out[key]
		if !ok || s.Severity > existing.Severity {
			out[key] = s
		}
	}
	return out
}
