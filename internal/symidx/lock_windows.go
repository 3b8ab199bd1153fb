//go:build windows

package symidx

import (
	"fmt"
	"os"
	"path/filepath"
)

const lockFileName = "symidx.lock"

// Lock is an advisory, single-writer lock guarding index rebuilds.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes an exclusive lock via O_EXCL create-only semantics,
// since syscall.Flock isn't available on Windows.
func AcquireLock(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating index data dir: %w", err)
	}
	path := filepath.Join(dataDir, lockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("symbol index is locked by another process")
	}
	fmt.Fprintf(file, "%d", os.Getpid())
	return &Lock{path: path, file: file}, nil
}

// Release drops the lock and best-effort removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
}
