package adapter

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("bogus")
	assert.ErrorContains(t, err, `invalid log level "bogus"`)
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		records = append(records, rec)
	}
	return records
}

func TestSetupLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fitsync.log")
	logger, err := SetupLogger(&LoggingConfig{File: path, Level: "DEBUG"})
	require.NoError(t, err)

	logger.Debug("hello", "key", "value")
	Component(logger, "syncengine").Info("live", "userID", "u1")

	records := readRecords(t, path)
	require.Len(t, records, 2)

	assert.Equal(t, "hello", records[0]["msg"])
	assert.Equal(t, "value", records[0]["key"])
	assert.Equal(t, "fitsync", records[0]["app"])
	assert.Equal(t, Version, records[0]["version"])
	assert.Equal(t, float64(os.Getpid()), records[0]["pid"])
	assert.NotContains(t, records[0], ComponentKey)

	assert.Equal(t, "syncengine", records[1][ComponentKey])
	assert.Equal(t, "u1", records[1]["userID"])
}

func TestSetupLoggerFiltersByLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.log")
	logger, err := SetupLogger(&LoggingConfig{File: path, Level: "warn"})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")

	records := readRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "loud", records[0]["msg"])
}

func TestSetupLoggerTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fitsync.log")
	logger, err := SetupLogger(&LoggingConfig{File: path, Format: "text"})
	require.NoError(t, err)

	logger.Info("offline", "userID", "u1")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=offline")
	assert.Contains(t, string(data), "userID=u1")
	assert.Contains(t, string(data), "app=fitsync")
}

func TestSetupLoggerRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := SetupLogger(&LoggingConfig{File: filepath.Join(dir, "a.log"), Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = SetupLogger(&LoggingConfig{File: filepath.Join(dir, "b.log"), Format: "xml"})
	assert.ErrorContains(t, err, `unknown log format "xml"`)
	assert.NoFileExists(t, filepath.Join(dir, "a.log"))
}

func TestNullLoggerDiscards(t *testing.T) {
	logger := NullLogger()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
	logger.Error("nowhere")
}
