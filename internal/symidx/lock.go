//go:build !windows

// Package symidx loads and maintains the symbol index used by the context
// engine: staleness detection, advisory locking around rebuilds, and an
// fsnotify-backed hint that lets most queries skip the freshness walk.
package symidx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const lockFileName = "symidx.lock"

// Lock is an advisory, single-writer lock guarding index rebuilds.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes a non-blocking exclusive lock in dataDir, matching the
// raw-flock idiom used elsewhere in this codebase rather than pulling in a
// separate file-locking library.
func AcquireLock(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data dir: %w", err)
	}

	path := filepath.Join(dataDir, lockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if content, readErr := os.ReadFile(path); readErr == nil && len(content) > 0 {
			pid := strings.TrimSpace(string(content))
			return nil, fmt.Errorf("symbol index is locked by another process (PID %s)", pid)
		}
		return nil, fmt.Errorf("symbol index is locked by another process")
	}

	if err := file.Truncate(0); err == nil {
		_, _ = file.Seek(0, 0)
		_, _ = file.WriteString(strconv.Itoa(os.Getpid()))
	}

	return &Lock{path: path, file: file}, nil
}

// Release drops the lock and best-effort removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	_ = os.Remove(l.path)
}
