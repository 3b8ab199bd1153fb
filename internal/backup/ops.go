package backup

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"corectx/internal/errs"
	"corectx/internal/paths"
)

// List returns every session recorded in index.jsonl, newest first. It
// never opens a manifest — spec.md §4.1 requires listing to stay fast
// even with thousands of sessions.
func List(repoRoot, backupRoot string) ([]SessionInfo, error) {
	if backupRoot == "" {
		backupRoot = paths.BackupRoot(repoRoot)
	}
	indexPath := filepath.Join(backupRoot, indexFileName)

	f, err := os.Open(indexPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.InternalErr(err, "opening session index")
	}
	defer f.Close()

	var infos []SessionInfo
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry SessionIndexEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		infos = append(infos, SessionInfo{
			ID:          entry.ID,
			Timestamp:   entry.Timestamp,
			Engine:      entry.Engine,
			Success:     entry.Success,
			Files:       entry.Files,
			SamplePaths: entry.SamplePaths,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.InternalErr(err, "reading session index")
	}

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].ID > infos[j].ID })
	return infos, nil
}

// Show loads the full manifest for a given session id.
func Show(backupRoot, sessionID string) (*SessionManifest, error) {
	manifestPath := filepath.Join(backupRoot, sessionsDirName, sessionID, manifestName)
	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return nil, errs.Invalid("no session %q", sessionID)
	}
	if err != nil {
		return nil, errs.InternalErr(err, "reading session manifest")
	}
	var m SessionManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.InternalErr(err, "parsing session manifest")
	}
	return &m, nil
}

// RestoreConflict records a file that could not be restored because its
// current on-disk content no longer matches what was captured at backup
// time — the caller decides whether to force-overwrite or skip.
type RestoreConflict struct {
	RelPath      string `json:"relPath"`
	Reason       string `json:"reason"`
	ExpectedHash string `json:"expectedHash,omitempty"`
	ActualHash   string `json:"actualHash,omitempty"`
}

// RestoreResult summarizes a restore run.
type RestoreResult struct {
	Restored  []string          `json:"restored"`
	Skipped   []string          `json:"skipped"`
	Conflicts []RestoreConflict `json:"conflicts,omitempty"`
}

// Restore writes every backed-up file in the session back to its
// original location. When force is false, a file whose current content's
// checksum doesn't match what backup time captured for the *restore
// target's sibling version* is reported as a conflict rather than
// overwritten — matching backup_ops.rs's restore_session's safety check.
func Restore(repoRoot, backupRoot, sessionID string, force bool, only []string) (*RestoreResult, error) {
	m, err := Show(backupRoot, sessionID)
	if err != nil {
		return nil, err
	}

	var filter map[string]bool
	if len(only) > 0 {
		filter = make(map[string]bool, len(only))
		for _, p := range only {
			filter[p] = true
		}
	}

	sessionDir := filepath.Join(backupRoot, sessionsDirName, sessionID)
	res := &RestoreResult{}

	for _, meta := range m.Files {
		if filter != nil && !filter[meta.RelPath] {
			continue
		}

		target := filepath.Join(repoRoot, meta.RelPath)

		if !force {
			if existing, statErr := os.Lstat(target); statErr == nil && !existing.IsDir() {
				curSum, sumErr := checksumFile(target)
				if sumErr == nil && curSum != "" && curSum != meta.Checksum {
					res.Conflicts = append(res.Conflicts, RestoreConflict{
						RelPath:      meta.RelPath,
						Reason:       "current file content differs from the backed-up version",
						ExpectedHash: meta.Checksum,
						ActualHash:   curSum,
					})
					continue
				}
			}
		}

		if meta.Symlink {
			_ = os.Remove(target)
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return res, errs.InternalErr(err, "creating parent dir for %s", meta.RelPath)
			}
			if err := os.Symlink(meta.LinkTarget, target); err != nil {
				return res, errs.InternalErr(err, "restoring symlink %s", meta.RelPath)
			}
			res.Restored = append(res.Restored, meta.RelPath)
			continue
		}

		stagedPath := filepath.Join(sessionDir, meta.FallbackHashedName)
		data, err := os.ReadFile(stagedPath)
		if err != nil {
			res.Skipped = append(res.Skipped, meta.RelPath)
			continue
		}
		if meta.Compressed {
			data, err = decompressPayload(data)
			if err != nil {
				return res, err
			}
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return res, errs.InternalErr(err, "creating parent dir for %s", meta.RelPath)
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return res, errs.InternalErr(err, "restoring %s", meta.RelPath)
		}
		res.Restored = append(res.Restored, meta.RelPath)
	}

	return res, nil
}

func checksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return checksumBytes(data), nil
}

// CleanupResult summarizes a compaction/pruning run.
type CleanupResult struct {
	Removed    []string `json:"removed"`
	Kept       []string `json:"kept"`
	Compacted  []string `json:"compacted,omitempty"`
	BytesFreed int64    `json:"bytesFreed"`
}

// Cleanup prunes sessions beyond keepLatest, oldest first, removing each
// pruned session's whole directory (manifest and staged files) from disk.
// The index.jsonl line for a removed session is kept (spec.md §4.1:
// history of what happened survives compaction), but a later Show or
// Restore of a pruned session fails, since its manifest is gone.
//
// Among the sessions that survive pruning, any older than compactAfter
// has its staged payload files zstd-compressed in place (manifest
// rewritten with each file's Compressed flag set); Restore transparently
// decompresses, so this never changes what a restore produces, only how
// much disk a kept session occupies.
func Cleanup(repoRoot, backupRoot string, keepLatest int, compactAfter time.Duration) (*CleanupResult, error) {
	infos, err := List(repoRoot, backupRoot)
	if err != nil {
		return nil, err
	}
	if keepLatest < 0 {
		keepLatest = 0
	}

	res := &CleanupResult{}
	for i, info := range infos {
		if i >= keepLatest {
			sessionDir := filepath.Join(backupRoot, sessionsDirName, info.ID)
			size, _ := dirSize(sessionDir)
			if err := os.RemoveAll(sessionDir); err != nil {
				return res, errs.InternalErr(err, "removing session %s", info.ID)
			}
			res.Removed = append(res.Removed, info.ID)
			res.BytesFreed += size
			continue
		}

		res.Kept = append(res.Kept, info.ID)
		if compactAfter <= 0 {
			continue
		}
		ts, err := time.Parse(time.RFC3339, info.Timestamp)
		if err != nil || time.Since(ts) < compactAfter {
			continue
		}
		freed, err := compactSession(backupRoot, info.ID)
		if err != nil {
			return res, err
		}
		if freed > 0 {
			res.Compacted = append(res.Compacted, info.ID)
			res.BytesFreed += freed
		}
	}
	return res, nil
}

// compactSession zstd-compresses every not-yet-compressed staged payload
// file in sessionID's manifest, rewriting the manifest in place. Returns
// the number of bytes reclaimed.
func compactSession(backupRoot, sessionID string) (int64, error) {
	manifest, err := Show(backupRoot, sessionID)
	if err != nil {
		return 0, err
	}
	sessionDir := filepath.Join(backupRoot, sessionsDirName, sessionID)

	var freed int64
	changed := false
	for i, meta := range manifest.Files {
		if meta.Compressed || meta.Symlink || meta.FallbackHashedName == "" {
			continue
		}
		stagedPath := filepath.Join(sessionDir, meta.FallbackHashedName)
		data, err := os.ReadFile(stagedPath)
		if err != nil {
			continue
		}
		compressed := compressPayload(data)
		if len(compressed) >= len(data) {
			continue
		}
		if err := os.WriteFile(stagedPath, compressed, 0644); err != nil {
			return freed, errs.InternalErr(err, "compacting %s", meta.RelPath)
		}
		freed += int64(len(data) - len(compressed))
		manifest.Files[i].Compressed = true
		changed = true
	}
	if !changed {
		return 0, nil
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return freed, errs.InternalErr(err, "marshaling compacted manifest")
	}
	if err := os.WriteFile(filepath.Join(sessionDir, manifestName), data, 0644); err != nil {
		return freed, errs.InternalErr(err, "writing compacted manifest")
	}
	return freed, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// ResolveID resolves a session alias to a concrete session id. Supported
// aliases: "latest" (most recent session regardless of outcome),
// "last-successful" (most recent with Success==true), a literal full id,
// a unique suffix of an id (e.g. the UUID-derived tail), or a date prefix
// ("2026-08-03"). Multiple matches for a non-exact alias is reported as
// an error naming every candidate, mirroring backup_ops.rs's
// resolve_session_id ambiguity handling.
func ResolveID(repoRoot, backupRoot, alias string) (string, error) {
	infos, err := List(repoRoot, backupRoot)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", errs.Invalid("no backup sessions exist")
	}

	switch alias {
	case "latest":
		return infos[0].ID, nil
	case "last-successful":
		for _, info := range infos {
			if info.Success {
				return info.ID, nil
			}
		}
		return "", errs.Invalid("no successful backup session exists")
	}

	for _, info := range infos {
		if info.ID == alias {
			return info.ID, nil
		}
	}

	var matches []string
	for _, info := range infos {
		if strings.HasSuffix(info.ID, alias) || strings.HasPrefix(info.ID, alias) {
			matches = append(matches, info.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", errs.Invalid("no session matches %q", alias)
	case 1:
		return matches[0], nil
	default:
		return "", errs.Invalid("ambiguous session alias %q matches: %s", alias, strings.Join(matches, ", "))
	}
}

func checksumBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}
