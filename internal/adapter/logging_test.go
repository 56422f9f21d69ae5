package adapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "artwork.log")

	logger, closer, err := SetupLogger(&LoggingConfig{File: path, Level: "WARN"})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("image load failed", "ref", "/a.png")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "image load failed", entry["msg"])
	assert.Equal(t, "/a.png", entry["ref"])
}

func TestSetupLoggerExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, closer, err := SetupLogger(&LoggingConfig{File: "~/logs/artwork.log"})
	require.NoError(t, err)
	defer closer.Close()

	_, err = os.Stat(filepath.Join(home, "logs", "artwork.log"))
	assert.NoError(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"Error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer
	VerboseLogger(&buf).Debug("mode switched", "mode", "list(3)")
	assert.Contains(t, buf.String(), "mode switched")

	assert.NotPanics(t, func() { NullLogger().Error("ignored") })
}
