package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	peekerrors "github.com/conneroisu/peek/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("reconciler").
		With("session", "abc").
		Warn(context.Background(), errors.New("boom"), "regeneration failed", "file", "a.go")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "regeneration failed", record["msg"])
	assert.Equal(t, "reconciler", record["component"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "abc", record["session"])
	assert.Equal(t, "a.go", record["file"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Debug(context.Background(), "hidden debug")
	logger.Info(context.Background(), "hidden info")
	logger.Warn(context.Background(), nil, "shown warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown warn")
}

func TestAutoFormatWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "auto", Output: &buf})
	logger.Info(context.Background(), "hello")

	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"), "non-terminal output falls back to JSON")
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "discarded")
	})
}

func TestStructuredErrorDetails(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	err := peekerrors.ScanError("widgets/card.go", "parse failed", errors.New("expected ';'"))
	logger.Warn(context.Background(), err, "Rescan failed")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	details, ok := record["error_details"].(map[string]interface{})
	require.True(t, ok, "scan errors carry structured details")
	assert.Equal(t, peekerrors.ErrCodeParseFailed, details["code"])
	assert.Equal(t, "scan", details["type"])
	assert.Equal(t, "widgets/card.go", details["file"])
	assert.Equal(t, true, details["recoverable"])
}
