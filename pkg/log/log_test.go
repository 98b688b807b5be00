package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{name: "debug", want: slog.LevelDebug},
		{name: "WARN", want: slog.LevelWarn},
		{name: " error ", want: slog.LevelError},
		{name: "info+2", want: slog.LevelInfo + 2},
		{name: "verbose", want: slog.LevelInfo},
		{name: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}

func TestSetup(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer

	logger := Setup(&buf, "warn", "JSON")
	logger.Info("hidden")
	WithModule("bot_registry").Warn("bot stopped", "botId", "bot-1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "bot stopped", record["msg"])
	assert.Equal(t, "bot_registry", record["module"])
	assert.Equal(t, "bot-1", record["botId"])

	buf.Reset()
	Setup(&buf, "debug", "text").Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
