package symidx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"corectx/internal/config"
	"corectx/internal/errs"
	"corectx/internal/symbols"
)

// Staleness describes whether the on-disk symbol index is current.
type Staleness struct {
	Stale      bool
	Reason     string
	NewestFile string
	IndexTime  time.Time
}

// Loader loads the symbol index, rebuilding it (via extract) when stale,
// guarded by an advisory lock with poll/timeout semantics (spec.md §4.3.2).
type Loader struct {
	RepoRoot string
	Config   config.IndexConfig
	Extract  func(ctx context.Context) (*symbols.Index, error)
	hint     *StaleHint
}

// NewLoader builds a Loader. extract is the collaborator that rebuilds the
// index from source (normally backed by a SymbolExtractor); it is only
// invoked when a rebuild is actually needed.
func NewLoader(repoRoot string, cfg config.IndexConfig, extract func(ctx context.Context) (*symbols.Index, error)) *Loader {
	return &Loader{RepoRoot: repoRoot, Config: cfg, Extract: extract}
}

// WithHint attaches an fsnotify-backed StaleHint so CheckFreshness can skip
// the filesystem walk when nothing has fired since the index was written.
func (l *Loader) WithHint(h *StaleHint) *Loader {
	l.hint = h
	return l
}

// Load returns a fresh symbol index, rebuilding on disk if necessary.
func (l *Loader) Load(ctx context.Context) (*symbols.Index, error) {
	path := l.Config.Path

	info, statErr := os.Stat(path)
	if statErr != nil {
		if !os.IsNotExist(statErr) {
			return nil, errs.InternalErr(statErr, "stat symbol index")
		}
		return l.rebuild(ctx, path)
	}

	if !l.Config.StalenessCheck {
		return symbols.Load(path)
	}

	st, err := l.CheckFreshness(info.ModTime())
	if err != nil {
		return nil, err
	}
	if !st.Stale {
		return symbols.Load(path)
	}
	return l.rebuild(ctx, path)
}

// CheckFreshness walks tracked files using Lstat (symlink_metadata — never
// follows symlinks, so a symlink cycle can't cause an infinite walk) and
// compares mtimes against the index's own mtime. When a StaleHint is
// attached and reports nothing has changed since the index was written,
// the walk is skipped entirely; the hint is advisory only, never the
// source of truth for a positive "stale" result.
func (l *Loader) CheckFreshness(indexTime time.Time) (Staleness, error) {
	if l.hint != nil && !l.hint.MaybeStaleSince(indexTime) {
		return Staleness{Stale: false, IndexTime: indexTime}, nil
	}

	var newest string
	var newestTime time.Time

	err := filepath.WalkDir(l.RepoRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == ".corectx" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		info, lerr := os.Lstat(path)
		if lerr != nil {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if info.ModTime().After(newestTime) {
			newestTime = info.ModTime()
			newest = path
		}
		return nil
	})
	if err != nil {
		return Staleness{}, errs.InternalErr(err, "walking repo for staleness check")
	}

	if newestTime.After(indexTime) {
		return Staleness{
			Stale:      true,
			Reason:     fmt.Sprintf("%s modified after index", newest),
			NewestFile: newest,
			IndexTime:  indexTime,
		}, nil
	}
	return Staleness{Stale: false, IndexTime: indexTime}, nil
}

func (l *Loader) rebuild(ctx context.Context, path string) (*symbols.Index, error) {
	if l.Extract == nil {
		return nil, errs.RepoErr("symbol index not found at %s and no extractor configured; run the index build step first", path)
	}

	lockDir := filepath.Dir(path)
	lock, err := l.acquireLockWithTimeout(lockDir)
	if err != nil {
		return nil, errs.RepoErr("could not acquire symbol index lock: %v", err)
	}
	defer lock.Release()

	// Re-check freshness now that we hold the lock: another process may
	// have rebuilt it while we waited.
	if info, statErr := os.Stat(path); statErr == nil {
		if st, ferr := l.CheckFreshness(info.ModTime()); ferr == nil && !st.Stale {
			return symbols.Load(path)
		}
	}

	idx, err := l.Extract(ctx)
	if err != nil {
		return nil, errs.InternalErr(err, "rebuilding symbol index")
	}
	if err := idx.Save(path); err != nil {
		return nil, errs.InternalErr(err, "saving symbol index")
	}
	if l.hint != nil {
		l.hint.Reset()
	}
	return idx, nil
}

func (l *Loader) acquireLockWithTimeout(dataDir string) (*Lock, error) {
	timeout := time.Duration(l.Config.LockTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pollInterval := time.Duration(l.Config.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		lock, err := AcquireLock(dataDir)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, lastErr
		}
		time.Sleep(pollInterval)
	}
}
