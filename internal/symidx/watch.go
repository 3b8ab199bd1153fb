package symidx

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StaleHint watches the repo tree with fsnotify and tracks whether
// anything has changed since the index was last written. It is a hint,
// not a source of truth: CheckFreshness always falls back to its own walk
// when the hint says "maybe", and a missed or coalesced fsnotify event
// only costs an extra walk, never a false "fresh".
type StaleHint struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu        sync.Mutex
	lastEvent time.Time
	changed   bool
}

// NewStaleHint starts watching rootDir (recursively, skipping the
// directories symidx itself ignores during the staleness walk) and
// returns a hint fed by fsnotify events. Caller must call Close.
func NewStaleHint(rootDir string, logger *slog.Logger) (*StaleHint, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	h := &StaleHint{watcher: w, logger: logger, changed: true}

	err = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != rootDir && (name == ".git" || name == ".corectx" || name == "node_modules") {
			return filepath.SkipDir
		}
		if addErr := w.Add(path); addErr != nil {
			h.logger.Warn("symidx watch: failed to watch directory", "path", path, "error", addErr)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	go h.run()
	return h, nil
}

func (h *StaleHint) run() {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handleEvent(event)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("symidx watch error", "error", err)
		}
	}
}

func (h *StaleHint) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := h.watcher.Add(event.Name); err != nil {
				h.logger.Warn("symidx watch: failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	h.mu.Lock()
	h.changed = true
	h.lastEvent = time.Now()
	h.mu.Unlock()
}

// MaybeStaleSince reports whether anything has changed since indexTime.
// It is deliberately conservative: until the very first event has been
// observed, it returns true so the caller always does the real walk.
func (h *StaleHint) MaybeStaleSince(indexTime time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.changed {
		return true
	}
	return h.lastEvent.After(indexTime)
}

// Reset clears the changed flag after a rebuild has captured current state.
func (h *StaleHint) Reset() {
	h.mu.Lock()
	h.changed = false
	h.mu.Unlock()
}

// Close stops the underlying fsnotify watcher.
func (h *StaleHint) Close() error {
	return h.watcher.Close()
}
