package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowstore.log")

	logger, err := New(Config{Level: "debug", Format: "json", OutputFile: path})
	require.NoError(t, err)

	logger.Debug("page loaded", zap.Uint32("page", 3))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "page loaded", entry["msg"])
	assert.Equal(t, "rowstore", entry["service"])
	assert.Equal(t, 3.0, entry["page"])
}

func TestLevelFiltering(t *testing.T) {
	logger, err := New(Config{Level: "warn", OutputFile: "stderr"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := New(Config{Level: "chatty"})
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestBadOutputFile(t *testing.T) {
	_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "stderr", cfg.OutputFile)
}
