package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dreamlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dreamlog.db", cfg.DBPath())
	assert.Equal(t, "info", cfg.LogLevel())
	assert.Equal(t, 5*time.Second, cfg.SchedulerPollInterval())
	assert.Equal(t, 15*time.Minute, cfg.RetryDelay())
	assert.Equal(t, 4, cfg.WorkerCount())
	assert.Equal(t, 2*time.Minute, cfg.AttemptTimeout())
	assert.Equal(t, 5*time.Minute, cfg.ClaimTTL())
	assert.Equal(t, 8, cfg.MaxAttempts())
	assert.Equal(t, 2*time.Second, cfg.DispatcherPollInterval())
	assert.Equal(t, 50, cfg.DispatcherBatchSize())
	assert.Equal(t, "gemini-1.5-flash-latest", cfg.AITextModel())
	assert.Equal(t, "imagen-3.0-generate-001", cfg.AIImageModel())
	assert.Equal(t, "local", cfg.StorageBackend())
	assert.Equal(t, time.Hour, cfg.URLExpiry())
	assert.Equal(t, "dreamlog.entry", cfg.NATSSubjectPrefix())
	assert.Equal(t, 20, cfg.EntriesPerHour())
	assert.Equal(t, "default", cfg.ConfigSource())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
db_path: /data/journal.db
log_level: debug
scheduler:
  retry_delay: 30m
  worker_count: 8
  max_attempts: 5
ai:
  api_key: yaml-key
  text_model: gemini-2.0-flash
storage:
  backend: s3
  bucket: my-dreams
  url_expiry: 2h
rate_limit:
  entries_per_hour: 5
metrics_addr: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/journal.db", cfg.DBPath())
	assert.Equal(t, "debug", cfg.LogLevel())
	assert.Equal(t, 30*time.Minute, cfg.RetryDelay())
	assert.Equal(t, 8, cfg.WorkerCount())
	assert.Equal(t, 5, cfg.MaxAttempts())
	assert.Equal(t, "yaml-key", cfg.AIAPIKey())
	assert.Equal(t, "gemini-2.0-flash", cfg.AITextModel())
	assert.Equal(t, "s3", cfg.StorageBackend())
	assert.Equal(t, "my-dreams", cfg.S3Bucket())
	assert.Equal(t, 2*time.Hour, cfg.URLExpiry())
	assert.Equal(t, 5, cfg.EntriesPerHour())
	assert.Equal(t, ":9102", cfg.MetricsAddr())

	// Untouched fields keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.SchedulerPollInterval())
	assert.Equal(t, "yaml", cfg.ConfigSource())
	assert.Equal(t, path, cfg.ConfigPath())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
db_path: /from/yaml.db
scheduler:
  retry_delay: 30m
`)
	t.Setenv("DREAMLOG_DB_PATH", "/from/env.db")
	t.Setenv("DREAMLOG_RETRY_DELAY", "45m")
	t.Setenv("DREAMLOG_MAX_ATTEMPTS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env.db", cfg.DBPath())
	assert.Equal(t, 45*time.Minute, cfg.RetryDelay())
	assert.Equal(t, 3, cfg.MaxAttempts())
	assert.Equal(t, "env", cfg.ConfigSource())
}

func TestLoad_BadDurationFails(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  retry_delay: quarter-hour
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quarter-hour")
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := writeConfig(t, "scheduler: [not: a map")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dreamlog.db", cfg.DBPath())
}
