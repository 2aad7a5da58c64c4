package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
datasource:
  mode: JSON
  json_path: /tmp/state.json
sync:
  poll_interval: 2s
  batch_size: 25
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ModeJSON, cfg.DataSource.Mode)
	assert.Equal(t, "/tmp/state.json", cfg.DataSource.JSONPath)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	// defaults
	assert.Equal(t, SyncStoreMemory, cfg.Sync.Store)
	assert.Equal(t, 3, cfg.Sync.RetryAttempts)
	assert.Equal(t, "vitalflow.actions", cfg.Sync.Channel)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("VITALFLOW_SERVER_PORT", "7070")
	t.Setenv("VITALFLOW_SYNC_BATCH_SIZE", "5")
	t.Setenv("VITALFLOW_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Sync.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInvalidModeRejected(t *testing.T) {
	path := writeConfig(t, "datasource:\n  mode: carrier-pigeon\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datasource.mode")
}

func TestAPIModeNeedsBaseURL(t *testing.T) {
	path := writeConfig(t, "datasource:\n  mode: api\n")
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestConversions(t *testing.T) {
	s := SyncConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond, Channel: "c"}
	w := s.ToWorkerConfig()
	assert.Equal(t, 10, w.BatchSize)
	assert.Equal(t, "c", w.Channel)

	r := RedisConfig{URL: "redis://localhost:6379/0", PoolSize: 4}
	assert.Equal(t, 4, r.ToBrokerConfig().PoolSize)
}
