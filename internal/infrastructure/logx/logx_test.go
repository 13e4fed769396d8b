package logx

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	require.True(t, New("debug").Core().Enabled(zap.DebugLevel))
	require.False(t, New("WARN").Core().Enabled(zap.InfoLevel))
	require.True(t, New("bogus").Core().Enabled(zap.InfoLevel))
	require.False(t, New("").Core().Enabled(zap.DebugLevel))
}

func TestNamed(t *testing.T) {
	require.NotNil(t, L())
	require.NotNil(t, Named("sync"))
}
