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
)

func newJSONLogger(buf *bytes.Buffer, level LogLevel) *GatewayLogger {
	return NewLogger(&LoggerConfig{Level: level, Format: FormatJSON, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelDebug).
		WithComponent("dispatch").
		With("route", "index.go")

	logger.Info(context.Background(), "served", "status", 200)
	logger.Error(context.Background(), errors.New("boom"), "failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "served", lines[0]["msg"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "dispatch", lines[0]["component"])
	assert.Equal(t, "index.go", lines[0]["route"])
	assert.Equal(t, float64(200), lines[0]["status"])

	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, LevelWarn)

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), nil, "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestWithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := newJSONLogger(&buf, LevelInfo)
	_ = base.With("request_id", "abc")

	base.Info(context.Background(), "plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["request_id"]
	assert.False(t, ok)
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, FormatJSON, ResolveFormat(FormatAuto, &buf))
	assert.Equal(t, FormatText, ResolveFormat("TEXT", &buf))
	assert.Equal(t, FormatJSON, ResolveFormat("json", &buf))
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Fatal(context.Background(), errors.New("x"), "dropped")
		logger.With("k", "v").Info(context.Background(), "dropped")
	})
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	op := StartOperation(newJSONLogger(&buf, LevelInfo), "build")
	op.End(context.Background(), "pages", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "build", lines[0]["operation"])
	assert.Equal(t, float64(3), lines[0]["pages"])
	assert.Contains(t, lines[0], "duration_ms")
}
