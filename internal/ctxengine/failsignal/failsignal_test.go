package failsignal

import "testing"

func TestParse_MatchesErrorLine(t *testing.T) {
	log := "internal/foo/bar.go:42:10: error: undefined: baz\n"
	got := Parse(log)
	if len(got) != 1 {
		t.Fatalf("expected 1 signal, got %+v", got)
	}
	if got[0].File != "internal/foo/bar.go" || got[0].Line != 42 {
		t.Errorf("unexpected signal: %+v", got[0])
	}
	if got[0].Severity != SeverityError {
		t.Errorf("expected SeverityError, got %v", got[0].Severity)
	}
}

func TestParse_MatchesWarningLine(t *testing.T) {
	log := "internal/foo/bar.go:7: warning: unused variable\n"
	got := Parse(log)
	if len(got) != 1 || got[0].Severity != SeverityWarn {
		t.Fatalf("expected 1 warning signal, got %+v", got)
	}
}

func TestParse_MatchesRustStyleArrowLine(t *testing.T) {
	log := "  --> src/lib.rs:15:3\n"
	got := Parse(log)
	if len(got) != 1 {
		t.Fatalf("expected 1 signal, got %+v", got)
	}
	if got[0].File != "src/lib.rs" || got[0].Line != 15 {
		t.Errorf("unexpected signal: %+v", got[0])
	}
	if got[0].Severity != SeverityError {
		t.Errorf("expected the arrow form to count as an error signal, got %v", got[0].Severity)
	}
}

func TestParse_FallsBackToInfoSeverity(t *testing.T) {
	log := "some/file.go:3: note: see also\n"
	got := Parse(log)
	if len(got) != 1 || got[0].Severity != SeverityInfo {
		t.Fatalf("expected a fallback Info-severity signal, got %+v", got)
	}
}

func TestParse_IgnoresNonMatchingLines(t *testing.T) {
	log := "Running tests...\nAll good.\n"
	if got := Parse(log); len(got) != 0 {
		t.Errorf("expected no signals from unrelated log lines, got %+v", got)
	}
}

func TestParse_MultipleLinesEachProduceASignal(t *testing.T) {
	log := "a.go:1:1: error: boom\nb.go:2:1: warning: meh\n"
	got := Parse(log)
	if len(got) != 2 {
		t.Fatalf("expected 2 signals, got %+v", got)
	}
}

func TestBoostFor_MonotonicBySeverity(t *testing.T) {
	if !(BoostFor(SeverityError) > BoostFor(SeverityWarn)) {
		t.Error("expected Error's boost to exceed Warn's")
	}
	if !(BoostFor(SeverityWarn) > BoostFor(SeverityInfo)) {
		t.Error("expected Warn's boost to exceed Info's")
	}
	if BoostFor(SeverityInfo) <= 0 {
		t.Error("expected Info's boost to be strictly positive")
	}
}

func TestByLocation_KeysByFileAndLine(t *testing.T) {
	signals := []Signal{
		{File: "a.go", Line: 1, Severity: SeverityInfo},
		{File: "a.go", Line: 2, Severity: SeverityWarn},
	}
	got := ByLocation(signals)
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct keys, got %+v", got)
	}
	if _, ok := got["a.go:1"]; !ok {
		t.Error("expected a.go:1 to be present")
	}
}

func TestByLocation_KeepsHighestSeverityOnCollision(t *testing.T) {
	signals := []Signal{
		{File: "a.go", Line: 1, Severity: SeverityInfo, RawLine: "first"},
		{File: "a.go", Line: 1, Severity: SeverityError, RawLine: "second"},
	}
	got := ByLocation(signals)
	sig, ok := got["a.go:1"]
	if !ok {
		t.Fatal("expected a.go:1 to be present")
	}
	if sig.Severity != SeverityError || sig.RawLine != "second" {
		t.Errorf("expected the higher-severity signal to win the collision, got %+v", sig)
	}
}
