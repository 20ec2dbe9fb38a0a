package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.NotEmpty(t, cfg.Upload.Endpoint)
	assert.True(t, cfg.Queue.AutoResume)
	assert.Equal(t, 15, cfg.Probe.IntervalSec)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Upload.Endpoint, cfg.Upload.Endpoint)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upload:
  endpoint: https://upload.example.net/tus
  chunk_size_bytes: 1048576
api:
  base_url: https://api.example.net
queue:
  file: /tmp/queue.json
  auto_resume: false
libraries:
  "42": topsecret
logging:
  level: debug
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://upload.example.net/tus", cfg.Upload.Endpoint)
	assert.Equal(t, int64(1<<20), cfg.Upload.ChunkSizeBytes)
	assert.False(t, cfg.Queue.AutoResume)
	assert.Equal(t, "topsecret", cfg.Libraries["42"])
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STREAMUP_ENDPOINT", "https://env.example.net/tus")
	t.Setenv("STREAMUP_AUTO_RESUME", "false")
	t.Setenv("STREAMUP_API_KEY_7", "envkey")
	t.Setenv("STREAMUP_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.net/tus", cfg.Upload.Endpoint)
	assert.False(t, cfg.Queue.AutoResume)
	assert.Equal(t, "envkey", cfg.Libraries["7"])
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Upload.Endpoint = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Upload.ChunkSizeBytes = -1
	assert.Error(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".streamup", "queue.json"), ExpandPath("~/.streamup/queue.json"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, home, ExpandPath("~"))
}

func TestProbeTargetFallsBackToEndpoint(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.Upload.Endpoint, cfg.ProbeTarget())

	cfg.Probe.Target = "https://probe.example.net"
	assert.Equal(t, "https://probe.example.net", cfg.ProbeTarget())
}

func TestLogLevel(t *testing.T) {
	for level, want := range map[string]string{
		"debug": "DEBUG", "info": "INFO", "warn": "WARN", "error": "ERROR",
	} {
		cfg := Default()
		cfg.Logging.Level = level
		assert.Equal(t, want, strings.ToUpper(cfg.LogLevel().String()))
	}
}
