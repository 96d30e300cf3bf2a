package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novamem/internal"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("json", slog.LevelInfo, &buf)
	log.Debug("hidden")
	log.Info("checkpoint done", "version", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "checkpoint done", rec["msg"])
	assert.Equal(t, float64(7), rec["version"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("text", slog.LevelWarn, &buf)
	log.Info("hidden")
	log.Warn("slow", "took", "2s")
	assert.Contains(t, buf.String(), "msg=slow")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novamem.log")
	log, closer, err := New(internal.LogConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("hello", "k", "v")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "msg=hello")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(internal.LogConfig{Level: "nope"})
	require.Error(t, err)
}
