package main

import (
	"time"

	"github.com/spf13/cobra"

	"corectx/internal/backup"
	"corectx/internal/envelope"
	"corectx/internal/errs"
)

var (
	backupForce      bool
	backupOnly       []string
	backupKeepLatest int
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "inspect and restore the content-addressed backup/session store",
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "list backup sessions, newest first",
	Run:   runBackupList,
}

var backupShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "show a session's full manifest",
	Args:  cobra.ExactArgs(1),
	Run:   runBackupShow,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <session>",
	Short: "restore every backed-up file in a session to its original location",
	Args:  cobra.ExactArgs(1),
	Run:   runBackupRestore,
}

var backupCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "prune sessions beyond the configured retention, freeing staged files",
	Run:   runBackupCleanup,
}

func init() {
	backupRestoreCmd.Flags().BoolVar(&backupForce, "force", false, "overwrite files whose on-disk content has drifted since backup")
	backupRestoreCmd.Flags().StringSliceVar(&backupOnly, "only", nil, "restore only these relative paths (repeatable)")
	backupCleanupCmd.Flags().IntVar(&backupKeepLatest, "keep-latest", 0, "sessions to keep (default: config)")

	backupCmd.AddCommand(backupListCmd, backupShowCmd, backupRestoreCmd, backupCleanupCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupList(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	infos, err := backup.List(repoRoot, resolveBackupRoot(repoRoot, cfg))
	emit(envelope.SchemaBackup, infos, err)
}

func runBackupShow(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	backupRoot := resolveBackupRoot(repoRoot, cfg)

	id, err := backup.ResolveID(repoRoot, backupRoot, args[0])
	if err != nil {
		emit(envelope.SchemaBackup, nil, err)
		return
	}
	m, err := backup.Show(backupRoot, id)
	emit(envelope.SchemaBackup, m, err)
}

func runBackupRestore(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	lf := newLoggerFactory(repoRoot, cfg)
	defer lf.Close()
	log := lf.Subsystem("backup")

	backupRoot := resolveBackupRoot(repoRoot, cfg)
	id, err := backup.ResolveID(repoRoot, backupRoot, args[0])
	if err != nil {
		emit(envelope.SchemaBackup, nil, err)
		return
	}

	result, err := backup.Restore(repoRoot, backupRoot, id, backupForce, backupOnly)
	if err != nil {
		log.Error("restoring session", "session", id, "error", err)
		emit(envelope.SchemaBackup, result, err)
		return
	}
	if len(result.Conflicts) > 0 && !backupForce {
		log.Warn("restore had conflicts", "session", id, "conflicts", len(result.Conflicts))
		emit(envelope.SchemaBackup, result, errs.ConflictErr("%d file(s) drifted since backup; rerun with --force to overwrite", len(result.Conflicts)))
		return
	}
	log.Info("session restored", "session", id, "restored", len(result.Restored))
	emit(envelope.SchemaBackup, result, nil)
}

func runBackupCleanup(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	lf := newLoggerFactory(repoRoot, cfg)
	defer lf.Close()
	log := lf.Subsystem("backup")

	keep := backupKeepLatest
	if keep == 0 {
		keep = cfg.Backup.KeepLatest
	}
	compactAfter, err := time.ParseDuration(cfg.Backup.CompactAfter)
	if err != nil {
		compactAfter = 0
	}
	result, err := backup.Cleanup(repoRoot, resolveBackupRoot(repoRoot, cfg), keep, compactAfter)
	if err != nil {
		log.Error("cleaning up sessions", "error", err)
	} else {
		log.Info("sessions pruned", "removed", len(result.Removed), "bytesFreed", result.BytesFreed)
	}
	emit(envelope.SchemaBackup, result, err)
}
