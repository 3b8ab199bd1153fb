package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"corectx/internal/config"
	"corectx/internal/contract"
	"corectx/internal/edit"
	"corectx/internal/envelope"
	"corectx/internal/errs"
	"corectx/internal/paths"
)

var (
	editSpecPath  string
	editEngine    string
	editMinConf   float64
	editMarkerFile string
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "apply machine-generated REPLACE/INSERT/DELETE text specs",
}

var editCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "render the diff a spec would produce, without writing anything",
	Run:   runEditCheck,
}

var editApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "apply a spec against the working tree, backing up first",
	Run:   runEditApply,
}

var editDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "validate a spec against disk state and render its unified diff",
	Run:   runEditDiff,
}

var editResolveMarkersCmd = &cobra.Command{
	Use:   "resolve-markers",
	Short: "resolve conflict markers left in a file by a failed merge",
	Run:   runEditResolveMarkers,
}

func init() {
	for _, c := range []*cobra.Command{editCheckCmd, editApplyCmd, editDiffCmd} {
		c.Flags().StringVar(&editSpecPath, "spec", "-", "path to the edit spec file, or - for stdin")
	}
	editApplyCmd.Flags().StringVar(&editEngine, "engine", "", "internal, external3way, or hybrid (default: config)")
	editResolveMarkersCmd.Flags().StringVar(&editMarkerFile, "file", "", "file with conflict markers to resolve")
	editResolveMarkersCmd.Flags().Float64Var(&editMinConf, "min-confidence", 0, "minimum confidence to auto-resolve (default: config)")

	editCmd.AddCommand(editCheckCmd, editApplyCmd, editDiffCmd, editResolveMarkersCmd)
	rootCmd.AddCommand(editCmd)
}

func readSpecText() (string, error) {
	if editSpecPath == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(editSpecPath)
	return string(data), err
}

func runEditCheck(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)

	text, err := readSpecText()
	if err != nil {
		emit(envelope.SchemaEdit, nil, errs.RepoErr("reading spec: %v", err))
		return
	}
	spec, err := edit.Parse(text)
	if err != nil {
		emit(envelope.SchemaEdit, nil, err)
		return
	}

	strategy := edit.Internal{ContextLines: cfg.Edit.ContextLines}
	preview, err := strategy.Check(spec, repoRoot)
	emit(envelope.SchemaEdit, preview, err)
}

func runEditDiff(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)

	text, err := readSpecText()
	if err != nil {
		emit(envelope.SchemaEdit, nil, errs.RepoErr("reading spec: %v", err))
		return
	}
	spec, err := edit.Parse(text)
	if err != nil {
		emit(envelope.SchemaEdit, nil, err)
		return
	}
	plan, err := edit.Validate(spec, repoRoot)
	if err != nil {
		emit(envelope.SchemaEdit, nil, err)
		return
	}
	d, err := edit.EmitPlanDiff(plan, cfg.Edit.ContextLines)
	if err != nil {
		emit(envelope.SchemaEdit, nil, err)
		return
	}
	emit(envelope.SchemaEdit, map[string]string{"diff": d}, nil)
}

func runEditApply(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	lf := newLoggerFactory(repoRoot, cfg)
	defer lf.Close()
	log := lf.Subsystem("edit")

	text, err := readSpecText()
	if err != nil {
		emit(envelope.SchemaEdit, nil, errs.RepoErr("reading spec: %v", err))
		return
	}
	spec, err := edit.Parse(text)
	if err != nil {
		log.Error("parsing spec", "error", err)
		emit(envelope.SchemaEdit, nil, err)
		return
	}

	engineName := editEngine
	if engineName == "" {
		engineName = cfg.Edit.DefaultEngine
	}

	strategy, err := buildStrategy(engineName, cfg)
	if err != nil {
		emit(envelope.SchemaEdit, nil, err)
		return
	}

	backupRoot := resolveBackupRoot(repoRoot, cfg)
	report, err := strategy.Apply(cmd.Context(), spec, repoRoot, backupRoot)
	if err != nil {
		log.Error("applying spec", "engine", engineName, "error", err)
		emit(envelope.SchemaEdit, report, err)
		return
	}

	log.Info("spec applied", "engine", engineName, "applied", len(report.Applied), "sessionId", report.SessionID)
	emit(envelope.SchemaEdit, report, nil)
}

func runEditResolveMarkers(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(mustGetRepoRoot())
	if editMarkerFile == "" {
		emit(envelope.SchemaEdit, nil, errs.Invalid("--file is required"))
		return
	}
	minConf := editMinConf
	if minConf == 0 {
		minConf = cfg.Edit.SmartMergeMinCnf
	}
	report, err := edit.ResolveFileMarkers(editMarkerFile, minConf)
	emit(envelope.SchemaEdit, report, err)
}

// buildStrategy constructs the requested edit.Strategy, wiring in a
// contract.GitMergeFile helper for any engine that needs one.
func buildStrategy(name string, cfg *config.Config) (edit.Strategy, error) {
	internal := edit.Internal{ContextLines: cfg.Edit.ContextLines}
	helper := contract.GitMergeFile{
		GitPath: cfg.Edit.MergeHelperPath,
		Timeout: time.Duration(cfg.Edit.MergeTimeoutMs) * time.Millisecond,
	}
	external := edit.External3Way{Helper: helper, ContextLines: cfg.Edit.ContextLines}

	switch name {
	case "internal":
		return internal, nil
	case "external3way":
		return external, nil
	case "hybrid", "":
		return edit.Hybrid{Internal: internal, External: external}, nil
	default:
		return nil, errs.Invalid("unknown edit engine %q", name)
	}
}

// resolveBackupRoot returns the absolute backup root directory for
// repoRoot, honoring a configured relative or absolute override.
func resolveBackupRoot(repoRoot string, cfg *config.Config) string {
	if cfg.Backup.Root == "" {
		return paths.BackupRoot(repoRoot)
	}
	if filepath.IsAbs(cfg.Backup.Root) {
		return cfg.Backup.Root
	}
	return filepath.Join(repoRoot, cfg.Backup.Root)
}
