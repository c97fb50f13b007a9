package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/delegation-deployments/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "text")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("chain checked", "chain_id", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "chain checked", entry["msg"])
	assert.Equal(t, float64(1), entry["chain_id"])
}

func TestNewFallback(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LoggingConfig{Level: "warn"}, "text")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("slow endpoint", "chain", "Base")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=\"slow endpoint\"")
	assert.Contains(t, out, "chain=Base")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LoggingConfig{Level: "debug", Format: "console"}, "json")
	require.NoError(t, err)

	logger.Error("dial failed", "rpc", "https://rpc.example")

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "dial failed")
	assert.Contains(t, out, "https://rpc.example")
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LoggingConfig{Format: "xml"}, "json")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}
