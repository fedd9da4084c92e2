package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestUse(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))

	Log().Info("frame", zap.Int("frame", 3))
	S().Debugw("faces", "count", 1)
	Sync()

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "frame", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["frame"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Same(t, Log(), zap.L())
}

func TestInit(t *testing.T) {
	require.NoError(t, InitProduction())
	assert.False(t, Log().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitProductionDebug())
	assert.True(t, Log().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitDevelopment())
	assert.True(t, Log().Core().Enabled(zapcore.DebugLevel))
}
