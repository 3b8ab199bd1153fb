package logx

import (
	"io"
	"log/slog"
	"os"

	"corectx/internal/config"
	"corectx/internal/paths"
)

// LoggerFactory builds per-subsystem loggers, honoring the precedence:
// CLI flag > subsystem config > global config > default (info).
type LoggerFactory struct {
	repoRoot string
	config   *config.Config
	cliLevel slog.Level
	closers  []io.Closer
}

// NewLoggerFactory creates a factory. cliLevel of 0 means "not overridden".
func NewLoggerFactory(repoRoot string, cfg *config.Config, cliLevel slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{repoRoot: repoRoot, config: cfg, cliLevel: cliLevel}
}

// Subsystem returns the logger for one of "context", "edit", "backup",
// "index", writing to <repoRoot>/.corectx/logs/<name>.log. Falls back to a
// discard logger when repoRoot is empty or the log file can't be opened.
func (f *LoggerFactory) Subsystem(name string) *slog.Logger {
	if f.repoRoot == "" {
		return NewDiscardLogger()
	}
	if _, err := paths.EnsureLogsDir(f.repoRoot); err != nil {
		return NewDiscardLogger()
	}

	logPath := paths.SubsystemLogPath(f.repoRoot, name)
	level := f.effectiveLevel()

	var (
		logger *slog.Logger
		closer io.Closer
		err    error
	)
	if f.config.Logging.MaxSize != "" {
		logger, closer, err = NewFileLoggerWithRotation(logPath, level, f.config.Logging.MaxSize, f.config.Logging.MaxBackups)
	} else {
		var file *os.File
		logger, file, err = NewFileLogger(logPath, level)
		closer = file
	}
	if err != nil {
		return NewDiscardLogger()
	}

	f.closers = append(f.closers, closer)
	return logger
}

func (f *LoggerFactory) effectiveLevel() slog.Level {
	if f.cliLevel != 0 {
		return f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
}

// Close closes every file opened by this factory, returning the first
// error encountered.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
