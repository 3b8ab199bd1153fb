package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"corectx/internal/paths"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Budget.Tier != "B" {
		t.Errorf("expected default tier B, got %s", cfg.Budget.Tier)
	}
	if cfg.Budget.TierTokens["A"] != 2000 || cfg.Budget.TierTokens["B"] != 6000 || cfg.Budget.TierTokens["C"] != 16000 {
		t.Errorf("unexpected tier token presets: %+v", cfg.Budget.TierTokens)
	}
	if cfg.Backup.KeepLatest != 20 {
		t.Errorf("expected default keepLatest 20, got %d", cfg.Backup.KeepLatest)
	}
	if cfg.Edit.DefaultEngine != "hybrid" {
		t.Errorf("expected default engine hybrid, got %s", cfg.Edit.DefaultEngine)
	}
	if !cfg.Index.StalenessCheck {
		t.Error("expected staleness check enabled by default")
	}
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	repoRoot := t.TempDir()

	cfg, err := Load(repoRoot, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Budget.Tier != "B" {
		t.Errorf("expected default tier B, got %s", cfg.Budget.Tier)
	}
	if cfg.Index.Path != paths.SymbolIndexPath(repoRoot) {
		t.Errorf("expected index path to default to %s, got %s", paths.SymbolIndexPath(repoRoot), cfg.Index.Path)
	}
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	repoRoot := t.TempDir()
	cfg := DefaultConfig()
	cfg.Budget.Tier = "C"
	if err := cfg.Save(repoRoot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(repoRoot, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Budget.Tier != "C" {
		t.Errorf("expected tier C from config file, got %s", loaded.Budget.Tier)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	repoRoot := t.TempDir()
	cfg := DefaultConfig()
	cfg.Budget.Tier = "C"
	if err := cfg.Save(repoRoot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("CORECTX_BUDGET_TIER", "A")

	loaded, err := Load(repoRoot, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Budget.Tier != "A" {
		t.Errorf("expected env override tier A, got %s", loaded.Budget.Tier)
	}
}

func TestLoad_CLIFlagBeatsEnvAndFile(t *testing.T) {
	repoRoot := t.TempDir()
	cfg := DefaultConfig()
	cfg.Budget.Tier = "C"
	if err := cfg.Save(repoRoot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	t.Setenv("CORECTX_BUDGET_TIER", "A")

	v := viper.New()
	v.Set("budget.tier", "B")

	loaded, err := Load(repoRoot, v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Budget.Tier != "B" {
		t.Errorf("expected CLI-bound tier B to win, got %s", loaded.Budget.Tier)
	}
}

func TestSave_WritesConfigJSON(t *testing.T) {
	repoRoot := t.TempDir()
	cfg := DefaultConfig()
	cfg.Backup.KeepLatest = 42

	if err := cfg.Save(repoRoot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(paths.ConfigPath(repoRoot)); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	loaded, err := Load(repoRoot, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Backup.KeepLatest != 42 {
		t.Errorf("expected keepLatest 42 round-tripped, got %d", loaded.Backup.KeepLatest)
	}
}

func TestExport(t *testing.T) {
	cfg := DefaultConfig()

	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		data, err := cfg.Export(format)
		if err != nil {
			t.Fatalf("Export(%s) failed: %v", format, err)
		}
		if len(data) == 0 {
			t.Errorf("Export(%s) returned empty data", format)
		}
	}
}

func TestExport_UnsupportedFormat(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.Export(Format("ini")); err == nil {
		t.Error("expected an error for an unsupported format")
	} else if _, ok := err.(*UnsupportedFormatError); !ok {
		t.Errorf("expected *UnsupportedFormatError, got %T", err)
	}
}

func TestParseTOML(t *testing.T) {
	toml := `version = 1

[budget]
tier = "A"
`
	cfg, err := ParseTOML([]byte(toml))
	if err != nil {
		t.Fatalf("ParseTOML failed: %v", err)
	}
	if cfg.Budget.Tier != "A" {
		t.Errorf("expected tier A, got %s", cfg.Budget.Tier)
	}
	// Defaults not present in the TOML should survive untouched.
	if cfg.Edit.DefaultEngine != "hybrid" {
		t.Errorf("expected default engine to survive partial TOML, got %s", cfg.Edit.DefaultEngine)
	}
}

func TestRepoConfigDir(t *testing.T) {
	got := RepoConfigDir("/repo")
	want := filepath.Dir(paths.ConfigPath("/repo"))
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
