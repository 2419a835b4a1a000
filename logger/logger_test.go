package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		text  string
		level zapcore.Level
	}{
		{text: "debug", level: zapcore.DebugLevel},
		{text: "warn", level: zapcore.WarnLevel},
		{text: "error", level: zapcore.ErrorLevel},
		{text: "loud", level: zapcore.InfoLevel},
		{text: "", level: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.level, ParseLevel(tt.text))
		})
	}
}

func TestInitLogger(t *testing.T) {
	previous := zapLog
	t.Cleanup(func() { zapLog = previous })

	require.NoError(t, InitLogger(zapcore.WarnLevel))
	assert.False(t, zapLog.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zapLog.Core().Enabled(zapcore.WarnLevel))
}
