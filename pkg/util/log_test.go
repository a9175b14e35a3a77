package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	require.Equal(t, zap.WarnLevel, ParseLevel("warn"))
	require.Equal(t, zap.InfoLevel, ParseLevel(""))
	require.Equal(t, zap.InfoLevel, ParseLevel("loud"))
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "simd.log")
	logger, err := NewLoggerWithFile(path, zap.InfoLevel)
	require.NoError(t, err)

	logger.Sugar().Infow("run_complete", "completion_pct", 100.0)
	logger.Debug("dropped")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"run_complete"`)
	require.Contains(t, string(data), `"level":"INFO"`)
	require.Contains(t, string(data), `"ts":`)
	require.NotContains(t, string(data), "dropped")
}
