package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"corectx/internal/config"
	"corectx/internal/errs"
	"corectx/internal/logx"
	"corectx/internal/paths"
	"corectx/internal/version"
)

var (
	// tierFlag is the CLI --tier flag value.
	tierFlag string
	// repoRootFlag overrides the auto-detected repository root.
	repoRootFlag string
	// formatFlag selects "json" or "human" output.
	formatFlag string
	// verboseCount is the number of -v flags given.
	verboseCount int
	// quietFlag suppresses all but error-level logging.
	quietFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "corectx",
	Short: "corectx - bounded-budget code context, edit, and backup tool",
	Long: `corectx assembles LLM-ready code context under a fixed token budget,
applies machine-generated text-spec edits safely, and keeps a crash-safe
backup/session store for every mutation it makes.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("corectx version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&tierFlag, "tier", "",
		"response budget tier: A, B, C, or empty for config default")
	rootCmd.PersistentFlags().StringVar(&repoRootFlag, "repo-root", "",
		"repository root (default: detected from cwd)")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", "json",
		"output format: json or human")
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v",
		"increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false,
		"suppress all but error-level logging")
}

// resolveTier determines the effective budget tier from CLI flag, env var,
// and config, in that precedence order: CLI flag > CORECTX_TIER env var >
// config.json budget.tier > "B".
func resolveTier(cfg *config.Config) string {
	if tierFlag != "" {
		return tierFlag
	}
	if env := os.Getenv("CORECTX_TIER"); env != "" {
		return env
	}
	if cfg != nil && cfg.Budget.Tier != "" {
		return cfg.Budget.Tier
	}
	return "B"
}

// mustGetRepoRoot resolves the repository root or exits on failure.
func mustGetRepoRoot() string {
	if repoRootFlag != "" {
		return repoRootFlag
	}
	cwd, err := os.Getwd()
	if err != nil {
		exitWith(errs.InternalErr(err, "getting working directory"))
	}
	if root := paths.FindRepoRoot(cwd); root != "" {
		return root
	}
	return cwd
}

// mustLoadConfig loads layered configuration for repoRoot, binding the
// CLI's --tier flag as the highest-precedence source, or exits on failure.
func mustLoadConfig(repoRoot string) *config.Config {
	v := viper.New()
	if tierFlag != "" {
		v.Set("budget.tier", tierFlag)
	}
	cfg, err := config.Load(repoRoot, v)
	if err != nil {
		exitWith(errs.InternalErr(err, "loading configuration"))
	}
	return cfg
}

// newLoggerFactory builds a logx.LoggerFactory honoring -v/-q overrides.
func newLoggerFactory(repoRoot string, cfg *config.Config) *logx.LoggerFactory {
	level := slog.Level(0)
	if quietFlag || verboseCount > 0 {
		level = logx.LevelFromVerbosity(verboseCount, quietFlag)
	}
	return logx.NewLoggerFactory(repoRoot, cfg, level)
}

// exitWith prints err to stderr and exits with its mapped code. Used for
// failures that happen before a subcommand has a schema to wrap the error
// in (repo-root detection, config loading).
func exitWith(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitCodeForError(err))
}
