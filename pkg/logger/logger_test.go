package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		require.NoError(t, Init(level))
		require.NotNil(t, Logger())
	}
}

func TestInitFallsBackOnUnknownLevel(t *testing.T) {
	require.NoError(t, Init("not-a-level"))
	require.NotNil(t, Logger())
}

func TestWithModuleReturnsChild(t *testing.T) {
	require.NoError(t, Init("info"))
	child := WithModule("reminders")
	require.NotNil(t, child)
}
