package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel(" warn "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewWithWriterJSON(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "poster")
	log.Debug("hidden")
	log.Info("hello", slog.Int("sequence", 45))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "poster", line["service"])
	require.Equal(t, "hello", line["msg"])
	require.EqualValues(t, 45, line["sequence"])
}

func TestNewWithWriterTextLevel(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "trigger")
	log.Info("dropped")
	require.Empty(t, buf.String())

	log.Warn("kept")
	require.Contains(t, buf.String(), "service=trigger")
	require.Contains(t, buf.String(), "msg=kept")
}
