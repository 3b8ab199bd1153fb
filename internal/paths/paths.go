// Package paths centralizes the on-disk layout corectx uses inside a repo:
// the .corectx/ data directory, its logs/ and config.json children, the
// symbol index file, and the backup root.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirName is the directory corectx keeps its own state in, relative to
// the repo root.
const DataDirName = ".corectx"

// BackupDirName is the default backup root directory, per spec.md §3.
const BackupDirName = ".backup-root"

// CanonicalizePath converts an absolute path into a repo-relative,
// forward-slash path, resolving symlinks along the way. If the target
// doesn't exist yet, the unresolved path is used instead of failing.
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			repoRootResolved = repoRoot
		} else {
			return "", err
		}
	}

	rel, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithinRepo reports whether path resolves inside repoRoot.
func IsWithinRepo(path string, repoRoot string) bool {
	canonical, err := CanonicalizePath(path, repoRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// JoinRepoPath joins a repo root with a canonical (forward-slash) path.
func JoinRepoPath(repoRoot string, canonicalPath string) string {
	normalized := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalized, "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}

// DataDir returns <repoRoot>/.corectx.
func DataDir(repoRoot string) string {
	return filepath.Join(repoRoot, DataDirName)
}

// EnsureDataDir creates the data directory if missing and returns its path.
func EnsureDataDir(repoRoot string) (string, error) {
	dir := DataDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// LogsDir returns <repoRoot>/.corectx/logs.
func LogsDir(repoRoot string) string {
	return filepath.Join(DataDir(repoRoot), "logs")
}

// EnsureLogsDir creates the logs directory if missing and returns its path.
func EnsureLogsDir(repoRoot string) (string, error) {
	dir := LogsDir(repoRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// SubsystemLogPath returns the rotating log file path for a named
// subsystem ("context", "edit", "backup", "index").
func SubsystemLogPath(repoRoot, subsystem string) string {
	return filepath.Join(LogsDir(repoRoot), subsystem+".log")
}

// ConfigPath returns <repoRoot>/.corectx/config.json.
func ConfigPath(repoRoot string) string {
	return filepath.Join(DataDir(repoRoot), "config.json")
}

// SymbolIndexPath returns the default symbol index path,
// <repoRoot>/.corectx/symbols.jsonl.
func SymbolIndexPath(repoRoot string) string {
	return filepath.Join(DataDir(repoRoot), "symbols.jsonl")
}

// BackupRoot returns <repoRoot>/.backup-root, corectx's content-addressed
// session store.
func BackupRoot(repoRoot string) string {
	return filepath.Join(repoRoot, BackupDirName)
}

// FindRepoRoot walks upward from start looking for a .git directory,
// returning start itself if none is found.
func FindRepoRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}
