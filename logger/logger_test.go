package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrappers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Debug("d", zap.Int("n", 1))
	Info("i")
	Warn("w")
	Error("e", zap.String("path", "x"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(1), entries[0].ContextMap()["n"])
	assert.Equal(t, "x", entries[3].ContextMap()["path"])
}

func TestInitLogger(t *testing.T) {
	restore := Replace(zapLog)
	defer restore()

	require.NoError(t, InitLogger(zapcore.WarnLevel))
	assert.False(t, zapLog.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zapLog.Core().Enabled(zapcore.ErrorLevel))

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
