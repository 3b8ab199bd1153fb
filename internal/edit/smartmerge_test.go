package edit

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFileMarkers_NoMarkersReturnsEmptyReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("plain content\n"), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	report, err := ResolveFileMarkers(path, 0)
	if err != nil {
		t.Fatalf("ResolveFileMarkers failed: %v", err)
	}
	if len(report.Resolutions) != 0 || report.Written {
		t.Errorf("expected an empty, unwritten report for marker-free content, got %+v", report)
	}
}

func TestResolveFileMarkers_WritesFileWhenEveryBlockResolves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	content := "before\n<<<<<<< ours\nfoo(  1,2 )\n=======\nfoo(1, 2)\n>>>>>>> theirs\nafter\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	report, err := ResolveFileMarkers(path, 0)
	if err != nil {
		t.Fatalf("ResolveFileMarkers failed: %v", err)
	}
	if !report.Written {
		t.Fatalf("expected the file to be written when every block resolves, got %+v", report)
	}
	if report.Unresolved != 0 {
		t.Errorf("expected no unresolved blocks, got %d", report.Unresolved)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading rewritten file: %v", err)
	}
	got := string(data)
	if got != "before\nfoo(  1,2 )\nafter\n" {
		t.Errorf("unexpected rewritten content: %q", got)
	}
}

func TestResolveFileMarkers_LeavesFileUntouchedWhenABlockIsUnresolved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	original := "<<<<<<< ours\nours-version\n=======\ntheirs-version\n>>>>>>> theirs\n"
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	report, err := ResolveFileMarkers(path, 0)
	if err != nil {
		t.Fatalf("ResolveFileMarkers failed: %v", err)
	}
	if report.Written {
		t.Fatalf("expected no write when a block is unresolved, got %+v", report)
	}
	if report.Unresolved != 1 {
		t.Errorf("expected exactly 1 unresolved block, got %d", report.Unresolved)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != original {
		t.Errorf("expected the file to remain untouched, got %q", data)
	}
}

func TestResolveFileMarkers_MissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolveFileMarkers(filepath.Join(dir, "missing.go"), 0)
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestResolveFileMarkers_DefaultsMinConfidenceWhenNonPositive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	content := "<<<<<<< ours\nfoo(  1,2 )\n=======\nfoo(1, 2)\n>>>>>>> theirs\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	report, err := ResolveFileMarkers(path, -1)
	if err != nil {
		t.Fatalf("ResolveFileMarkers failed: %v", err)
	}
	if !report.Written {
		t.Errorf("expected the default confidence threshold to resolve a whitespace-only block, got %+v", report)
	}
}
