package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"ConsoleInfo", "info", FormatConsole},
		{"ConsoleDebug", "debug", FormatConsole},
		{"JSONWarn", "warn", FormatJSON},
		{"Defaults", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(LogConfig{Level: tt.level, Format: tt.format, Output: &buf})
			require.NoError(t, err)
			logger.Error("heartbeat")
			assert.Contains(t, buf.String(), "heartbeat")
		})
	}
}

func TestNewLoggerJSONFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, err := NewLogger(LogConfig{Level: "info", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)
	logger.Info("index built", zap.Int("tables", 4))
	logger.Debug("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "index built", entry["msg"])
	assert.EqualValues(t, 4, entry["tables"])
	assert.Contains(t, entry, "timestamp")
}

func TestNewLoggerInvalid(t *testing.T) {
	t.Parallel()
	_, err := NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestRunID(t *testing.T) {
	t.Parallel()
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestTimer(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	done := Timer(zap.New(core), "build")
	done(zap.Int("tables", 2))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "build", fields["stage"])
	assert.EqualValues(t, 2, fields["tables"])
	assert.Contains(t, fields, "elapsed")
}
