package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Info("signed in", "account_id", "abc", "role", "Member")
	logger.Warn("notification failed", "error", "timeout")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "signed in", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"account_id": "abc", "role": "Member"}, entries[0].ContextMap())
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestZapLoggerNil(t *testing.T) {
	logger := NewZapLogger(nil)
	assert.NotPanics(t, func() {
		logger.Debug("nothing")
		logger.Error("still nothing", "k", 1)
	})
}
