package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/emovec/internal/env"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithWriter(&buf))

	log.Debug("hidden")
	log.Info("model loaded", "path", "/models/emotion2vec.onnx")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "model loaded", record["msg"])
	assert.Equal(t, "/models/emotion2vec.onnx", record["path"])
}

func TestNew_SharedLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	log := New(env.Test, WithWriter(&buf), WithLevel(level))

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	level.Set(slog.LevelInfo)
	log.Info("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_LogToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "emovec.log")
	log := New(env.Test, WithWriter(&buf), WithLogToFile(true), WithLogFile(path))

	log.With("component", "test").Info("inference completed", "samples", 16000)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, buf.String(), "inference completed")
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel("warn")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, level)

	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}
