package edit

import (
	"os"
	"strings"

	"corectx/internal/errs"
)

// MarkerResolutionReport summarizes a ResolveFileMarkers run on one file.
type MarkerResolutionReport struct {
	Path        string       `json:"path"`
	Resolutions []Resolution `json:"resolutions"`
	Unresolved  int          `json:"unresolved"`
	Written     bool         `json:"written"`
}

// ResolveFileMarkers scans path for conflict markers, runs the SmartMerge
// pipeline over every block found, and — if every block resolved — writes
// the merged content back atomically, preserving the file's EOL style.
// With any block left Unresolved, nothing is written; the caller gets
// back every block's outcome so a tool can show the user exactly what's
// left unresolved.
func ResolveFileMarkers(path string, minConfidence float64) (*MarkerResolutionReport, error) {
	if minConfidence <= 0 {
		minConfidence = smartMergeMinConfidence
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.RepoErr("reading %s: %v", path, err)
	}

	blocks, eol := ScanConflicts(data)
	report := &MarkerResolutionReport{Path: path}
	if len(blocks) == 0 {
		return report, nil
	}

	lines := splitLines(string(data), eol)
	var out []string
	cursor := 1
	allResolved := true

	for _, block := range blocks {
		out = append(out, lines[cursor-1:block.StartLine-1]...)

		res := ResolveWithThreshold(block, minConfidence)
		report.Resolutions = append(report.Resolutions, res)
		if res.Resolved {
			out = append(out, res.Lines...)
		} else {
			allResolved = false
			report.Unresolved++
			out = append(out, RenderConflictBlock(block)...)
		}
		cursor = block.EndLine + 1
	}
	if cursor-1 < len(lines) {
		out = append(out, lines[cursor-1:]...)
	}

	if !allResolved {
		return report, nil
	}

	if err := writeFileAtomic(path, renderContent(out, eol)); err != nil {
		return report, err
	}
	report.Written = true
	return report, nil
}

// HasConflictMarkers is a cheap pre-check for callers deciding whether to
// invoke the full scan/resolve pipeline.
func HasConflictMarkers(content []byte) bool {
	for _, line := range strings.Split(string(content), "\n") {
		t := strings.TrimRight(line, "\r")
		if strings.HasPrefix(t, markerOurs) {
			return true
		}
	}
	return false
}
