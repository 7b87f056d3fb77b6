package adapter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ComponentKey tags records with the subsystem that wrote them.
const ComponentKey = "component"

// Version is stamped on every file log record. cmd/fitsync sets it at startup.
var Version = "dev"

// SetupLogger returns a logger appending to the configured log file. Several
// CLI invocations may share the file, so each record carries the version and
// process id.
func SetupLogger(cfg *LoggingConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	f, err := openLogFile(cfg.File)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(f, opts)
	case "text":
		handler = slog.NewTextHandler(f, opts)
	default:
		f.Close()
		return nil, fmt.Errorf("unknown log format %q (use json or text)", cfg.Format)
	}

	return slog.New(handler).With("app", "fitsync", "version", Version, "pid", os.Getpid()), nil
}

func openLogFile(path string) (*os.File, error) {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// ParseLevel reads a level name as slog does ("debug", "INFO+2", ...) and
// also accepts "warning". Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Component returns logger tagged with a subsystem name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(ComponentKey, name)
}

// StderrLogger returns a text logger for --verbose. An unknown level means info.
func StderrLogger(level string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// NullLogger returns a logger that discards everything.
func NullLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
