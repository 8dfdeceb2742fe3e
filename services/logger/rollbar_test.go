package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/kazi/core"
)

func TestRollbarLogger(t *testing.T) {
	zcore, logs := observer.New(zapcore.DebugLevel)
	logger := NewRollbarLogger(zap.New(zcore), &core.Config{Env: "TEST", TestMode: true})

	logger.Warn("reading draft",
		errors.New("boom"),
		map[string]interface{}{"path": "p/ada/1"},
		core.Identity{ID: "8A_Ada", Name: "Ada", Role: "student"},
		core.Identity{ID: "ignored"},
	)
	logger.Debug("plain")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	warn := entries[0]
	assert.Equal(t, zapcore.WarnLevel, warn.Level)
	assert.Equal(t, "reading draft", warn.Message)
	fields := warn.ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "p/ada/1", fields["path"])
	assert.Equal(t, "8A_Ada", fields["person"])
	assert.Equal(t, "student", fields["role"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Empty(t, entries[1].ContextMap())
}

func TestNewZap(t *testing.T) {
	zl, err := NewZap(&core.Config{AppName: "Kazi", Debug: true})
	require.NoError(t, err)
	assert.True(t, zl.Core().Enabled(zapcore.DebugLevel))

	zl, err = NewZap(&core.Config{AppName: "Kazi"})
	require.NoError(t, err)
	assert.False(t, zl.Core().Enabled(zapcore.DebugLevel))
}
