package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, level zapcore.Level) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(Options{Level: level, Output: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
		"fatal":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestZapAdapter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(Options{Level: zapcore.InfoLevel, Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	logger.Info("contact stored", String("contact_id", "c1"), Int("length", 42))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "contact stored", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "c1", entry["contact_id"])
	assert.Equal(t, float64(42), entry["length"])
}

func TestNewZapLogger_UnknownFormat(t *testing.T) {
	_, err := NewZapLogger(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestZapAdapter_Levels(t *testing.T) {
	logger, buf := newBufferLogger(t, zapcore.DebugLevel)

	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warn message", Bool("flag", true))
	logger.Error("error message", errors.New("boom"), String("code", "E1"))

	out := buf.String()
	for _, s := range []string{"DEBUG", "debug message", "value", "INFO", "42", "WARN", "true", "ERROR", "boom", "E1"} {
		assert.Contains(t, out, s)
	}
}

func TestZapAdapter_Filtering(t *testing.T) {
	logger, buf := newBufferLogger(t, zapcore.WarnLevel)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("shown warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
}

func TestZapAdapter_WithFieldsAndContext(t *testing.T) {
	logger, buf := newBufferLogger(t, zapcore.InfoLevel)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithSessionID(ctx, "sess-456")

	logger.WithFields(String("component", "revalidation")).WithContext(ctx).Info("dispatched")

	out := buf.String()
	assert.Contains(t, out, "revalidation")
	assert.Contains(t, out, "req-123")
	assert.Contains(t, out, "sess-456")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestZapAdapter_WithContextWithoutValues(t *testing.T) {
	logger, _ := newBufferLogger(t, zapcore.InfoLevel)
	assert.Same(t, logger, logger.WithContext(context.Background()))
	assert.Same(t, logger, logger.WithFields())
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, buf := newBufferLogger(t, zapcore.DebugLevel)
	SetGlobalLogger(logger)

	Info("info from global")
	Error("error from global", errors.New("global error"))

	assert.Contains(t, buf.String(), "info from global")
	assert.Contains(t, buf.String(), "global error")
}

func TestInitGlobalLogger_File(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	path := filepath.Join(t.TempDir(), "edge.log")
	require.NoError(t, InitGlobalLogger("debug", FormatJSON, path))
	Info("written to file")
	MustSync()

	assert.FileExists(t, path)
}

func TestInitGlobalLogger_BadPath(t *testing.T) {
	err := InitGlobalLogger("info", FormatConsole, filepath.Join(t.TempDir(), "missing", "edge.log"))
	assert.Error(t, err)
}
