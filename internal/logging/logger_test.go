package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "", want: LevelInfo},
		{input: " warning ", want: LevelWarn},
		{input: "error", want: LevelError},
		{input: "verbose", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("server").
		With("address", "127.0.0.1:8080").
		Error(context.Background(), errors.New("boom"), "Connection failed", "verb", "GET")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "Connection failed", record["msg"])
	assert.Equal(t, "server", record["component"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "127.0.0.1:8080", record["address"])
	assert.Equal(t, "GET", record["verb"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})
	ctx := context.Background()

	logger.Debug(ctx, "hidden debug")
	logger.Info(ctx, "hidden info")
	assert.Empty(t, buf.String())

	logger.Warn(ctx, nil, "visible warning")
	assert.Contains(t, buf.String(), "visible warning")
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "text", Output: &buf})
	_ = parent.With("request_id", "abc")

	parent.Info(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error(context.Background(), errors.New("ignored"), "nothing to see")
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "text", Output: &buf})

	op := StartOperation(logger, "render")
	op.End(context.Background())

	out := buf.String()
	assert.Contains(t, out, "Operation completed")
	assert.Contains(t, out, "operation=render")
	assert.Contains(t, out, "duration_ms=")

	buf.Reset()
	StartOperation(logger, "render").EndWithError(context.Background(), errors.New("boom"))
	assert.Contains(t, buf.String(), "Operation failed")
	assert.Contains(t, buf.String(), "error=boom")

	buf.Reset()
	quiet := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "text", Output: &buf})
	StartOperation(quiet, "render").End(context.Background())
	assert.Empty(t, buf.String())
}
