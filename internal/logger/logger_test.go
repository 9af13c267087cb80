package logger

import (
	"iap-entitlement-service/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(config.Log{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.Log{Level: "DEBUG", Format: "console"})
	require.NoError(t, err)

	_, err = New(config.Log{Level: "verbose"})
	assert.Error(t, err)
}
