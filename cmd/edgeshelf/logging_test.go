package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/edgeshelf/config"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logLevel("warn"))
	assert.Equal(t, slog.LevelError, logLevel("error"))
	assert.Equal(t, slog.LevelInfo, logLevel("nonsense"))
	assert.Equal(t, slog.LevelInfo, logLevel(""))
}

func TestNewLogHandler_ProductionJSON(t *testing.T) {
	cfg := &config.Config{Env: "prod"}
	cfg.Log.Level = "info"

	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, cfg))
	logger.Debug("dropped")
	logger.Info("edge cache miss", "key", "GET /cat.png")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "edge cache miss", record["msg"])
	assert.Equal(t, "GET /cat.png", record["key"])
	assert.Equal(t, "edgeshelf", record["service"])
	assert.Equal(t, "prod", record["env"])
	assert.Contains(t, record["time"], "Z")
}

func TestNewLogHandler_DevelopmentText(t *testing.T) {
	cfg := &config.Config{Env: "dev"}
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, cfg))
	logger.Info("dropped")
	logger.Warn("edge cache store failed")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "edge cache store failed")
	assert.False(t, json.Valid(buf.Bytes()))
}
