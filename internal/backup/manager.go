package backup

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"corectx/internal/errs"
	"corectx/internal/paths"
)

const (
	sessionsDirName = "sessions"
	tmpDirName      = "tmp"
	locksDirName    = "locks"
	doneMarkerName  = "DONE"
	manifestName    = "manifest.json"
	indexFileName   = "index.jsonl"
)

// Manager manages the lifecycle of a single backup session: begin, stage
// (one file at a time), finalize. It mirrors
// original_source/src/core/backup.rs's BackupManager, renamed to this
// repo's on-disk layout (<repo>/.backup-root instead of .rup).
type Manager struct {
	repoRoot   string
	root       string
	sessionID  string
	finalDir   string
	tmpDir     string
	manifest   SessionManifest
	finalized  bool
}

// Begin starts a new session: generates a session id, creates its tmp
// staging directory, and best-effort captures a git snapshot.
func Begin(repoRoot, backupRoot, operation, engine string, args []string, parentSessionID string) (*Manager, error) {
	if backupRoot == "" {
		backupRoot = paths.BackupRoot(repoRoot)
	}
	for _, d := range []string{sessionsDirName, tmpDirName, locksDirName} {
		if err := os.MkdirAll(filepath.Join(backupRoot, d), 0755); err != nil {
			return nil, errs.InternalErr(err, "creating backup root layout")
		}
	}

	id := generateSessionID()
	tmpDir := filepath.Join(backupRoot, tmpDirName, id)
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, errs.InternalErr(err, "creating session tmp dir")
	}

	m := &Manager{
		repoRoot:  repoRoot,
		root:      backupRoot,
		sessionID: id,
		finalDir:  filepath.Join(backupRoot, sessionsDirName, id),
		tmpDir:    tmpDir,
		manifest: SessionManifest{
			ID:              id,
			Timestamp:       isoStamp(time.Now()),
			ParentSessionID: parentSessionID,
			Operation:       operation,
			Engine:          engine,
			Args:            args,
			Git:             captureGitSnapshot(repoRoot),
		},
	}
	return m, nil
}

// generateSessionID mirrors backup.rs's generate_session_id: a sortable
// timestamp plus a short random suffix, sourced from a UUID instead of a
// hand-rolled base62 RNG.
func generateSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return nowStamp() + "-" + suffix
}

func captureGitSnapshot(repoRoot string) *GitSnapshot {
	if _, err := os.Stat(filepath.Join(repoRoot, ".git")); err != nil {
		return nil
	}

	snap := &GitSnapshot{}
	if out, err := runGit(repoRoot, "rev-parse", "HEAD"); err == nil {
		snap.Commit = strings.TrimSpace(out)
	}
	if out, err := runGit(repoRoot, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		snap.Branch = strings.TrimSpace(out)
	}
	if out, err := runGit(repoRoot, "status", "--porcelain"); err == nil {
		trimmed := strings.TrimSpace(out)
		snap.Dirty = trimmed != ""
		for _, line := range strings.Split(trimmed, "\n") {
			if len(line) > 0 && line[0] != ' ' && line[0] != '?' {
				snap.Staged = true
				break
			}
		}
	}
	return snap
}

func runGit(repoRoot string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	return string(out), err
}

// SessionID returns this session's id.
func (m *Manager) SessionID() string { return m.sessionID }

// BackupFile copies originalPath (relative to repoRoot) into the session's
// tmp staging area and computes a blake3 checksum of the copied content.
// A symlink is detected via Lstat and its target path recorded; the
// content staged for it is that of the file it points to, or nothing when
// the link dangles.
func (m *Manager) BackupFile(relPath string) error {
	absPath := filepath.Join(m.repoRoot, relPath)

	info, err := os.Lstat(absPath)
	if err != nil {
		return errs.RepoErr("stat %s: %v", relPath, err)
	}

	meta := FileBackupMeta{
		OriginalPath: absPath,
		RelPath:      relPath,
		LastModified: isoStamp(info.ModTime()),
	}

	var content []byte
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(absPath)
		if err != nil {
			return errs.RepoErr("reading symlink %s: %v", relPath, err)
		}
		meta.Symlink = true
		meta.LinkTarget = target
		resolved := target
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.Dir(absPath), target)
		}
		content, err = os.ReadFile(resolved)
		if err != nil {
			// Dangling symlink: record metadata only, no payload.
			content = nil
		}
	} else {
		content, err = os.ReadFile(absPath)
		if err != nil {
			return errs.RepoErr("reading %s: %v", relPath, err)
		}
	}

	meta.SizeBytes = int64(len(content))
	sum := blake3.Sum256(content)
	meta.Checksum = hex.EncodeToString(sum[:])

	stagedName := strings.ReplaceAll(relPath, "/", "__")
	meta.FallbackHashedName = stagedName
	if err := os.MkdirAll(m.tmpDir, 0755); err != nil {
		return errs.InternalErr(err, "creating tmp staging dir")
	}
	if err := os.WriteFile(filepath.Join(m.tmpDir, stagedName), content, 0644); err != nil {
		return errs.InternalErr(err, "staging backup of %s", relPath)
	}

	m.manifest.Files = append(m.manifest.Files, meta)
	return nil
}

// Finalize commits the session: writes manifest.json, fsyncs it, renames
// the tmp dir into place, writes a DONE marker, and appends an index
// entry. Idempotent — calling it twice is a no-op the second time. success
// records whether the operation that produced this session completed
// without conflicts.
func (m *Manager) Finalize(success bool) error {
	if m.finalized {
		return nil
	}

	m.manifest.Success = success
	m.manifest.LastUpdated = isoStamp(time.Now())

	data, err := json.MarshalIndent(m.manifest, "", "  ")
	if err != nil {
		return errs.InternalErr(err, "marshaling session manifest")
	}

	manifestPath := filepath.Join(m.tmpDir, manifestName)
	if err := writeFileSynced(manifestPath, data); err != nil {
		return errs.InternalErr(err, "writing session manifest")
	}
	if err := syncDir(m.tmpDir); err != nil {
		return errs.InternalErr(err, "syncing tmp session dir")
	}

	if err := os.Rename(m.tmpDir, m.finalDir); err != nil {
		return errs.InternalErr(err, "promoting session to final dir")
	}
	if err := syncDir(filepath.Dir(m.finalDir)); err != nil {
		return errs.InternalErr(err, "syncing sessions dir")
	}

	donePath := filepath.Join(m.finalDir, doneMarkerName)
	if err := writeFileSynced(donePath, nil); err != nil {
		return errs.InternalErr(err, "writing DONE marker")
	}
	if err := syncDir(m.finalDir); err != nil {
		return errs.InternalErr(err, "syncing final session dir")
	}

	if err := m.appendToIndex(); err != nil {
		return err
	}

	m.finalized = true
	return nil
}

// Abandon is the crash/early-exit path: best-effort finalize(false) so a
// session that never reached a clean finalize is still recorded as
// failed rather than silently vanishing. Mirrors backup.rs's Drop impl.
func (m *Manager) Abandon() {
	if m.finalized {
		return
	}
	_ = m.Finalize(false)
}

func (m *Manager) appendToIndex() error {
	lockPath := filepath.Join(m.root, locksDirName, "index.lock")
	release, err := acquireCreateNewLock(lockPath)
	if err != nil {
		return errs.InternalErr(err, "acquiring index append lock")
	}
	defer release()

	samplePaths := make([]string, 0, 3)
	for i, f := range m.manifest.Files {
		if i >= 3 {
			break
		}
		samplePaths = append(samplePaths, f.RelPath)
	}

	entry := SessionIndexEntry{
		ID:          m.manifest.ID,
		Timestamp:   m.manifest.Timestamp,
		Success:     m.manifest.Success,
		Files:       len(m.manifest.Files),
		Engine:      m.manifest.Engine,
		SamplePaths: samplePaths,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return errs.InternalErr(err, "marshaling index entry")
	}

	f, err := os.OpenFile(filepath.Join(m.root, indexFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errs.InternalErr(err, "opening session index")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errs.InternalErr(err, "appending session index entry")
	}
	return f.Sync()
}

func writeFileSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// acquireCreateNewLock implements a best-effort-delete-on-release guard
// using O_CREATE|O_EXCL, matching backup_ops.rs's acquire_lock semantics
// (returns "already exists" if another writer holds it).
func acquireCreateNewLock(path string) (release func(), err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, errs.RepoErr("index lock already held at %s: %v", path, err)
	}
	f.Close()
	return func() { _ = os.Remove(path) }, nil
}
