package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/hellooo-cards/iconbridge/internal/common/config"
)

func TestNewLogger_Defaults(t *testing.T) {
	cfg := &config.LoggerConfig{}
	l, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, l)

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNewLogger_FileOutput(t *testing.T) {
	cfg := &config.LoggerConfig{
		Output:   "file",
		FilePath: filepath.Join(t.TempDir(), "logs", "iconbridge.log"),
		Format:   "console",
	}
	l, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	l.Info("hello")
	require.NoError(t, l.Sync())
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, getLogLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, getLogLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, getLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, getLogLevel("bogus"))
}
