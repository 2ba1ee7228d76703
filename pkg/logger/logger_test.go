package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInit_LevelHandling(t *testing.T) {
	require.NoError(t, Init("debug"))
	require.True(t, Logger().Core().Enabled(zapcore.DebugLevel))

	// Unknown levels fall back to info rather than failing startup.
	require.NoError(t, Init("not-a-level"))
	require.False(t, Logger().Core().Enabled(zapcore.DebugLevel))
	require.True(t, Logger().Core().Enabled(zapcore.InfoLevel))
}

func TestWithModule_NeverNil(t *testing.T) {
	require.NotNil(t, WithModule("test"))
}
