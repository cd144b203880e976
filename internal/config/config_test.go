package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apigate/internal/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, models.StorageTypeMemory, cfg.Storage.Type)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 1, cfg.RateLimit.DecayMinutes)
	assert.Equal(t, models.FailModeOpen, cfg.RateLimit.FailMode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
rate_limit:
  decay_minutes: 5
  fail_mode: closed
  policies:
    public:
      auth:
        POST: 3
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.RateLimit.DecayMinutes)
	assert.Equal(t, models.FailModeClosed, cfg.RateLimit.FailMode)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// File policy tables replace the defaults wholesale for the tiers they set.
	assert.Equal(t, 3, cfg.RateLimit.Policies.Public["auth"]["POST"])
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not: valid")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfigFile(t, `
rate_limit:
  decay_minutes: -1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APIGATE_PORT", "9999")
	t.Setenv("APIGATE_HOST", "127.0.0.1")
	t.Setenv("APIGATE_READ_TIMEOUT", "45s")
	t.Setenv("APIGATE_RATE_LIMIT_DECAY_MINUTES", "10")
	t.Setenv("APIGATE_RATE_LIMIT_ADD_HEADERS", "false")
	t.Setenv("APIGATE_RATE_LIMIT_FAIL_MODE", "closed")
	t.Setenv("APIGATE_RATE_LIMIT_STORE", "redis")
	t.Setenv("APIGATE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("APIGATE_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10, cfg.RateLimit.DecayMinutes)
	assert.False(t, cfg.RateLimit.AddHeaders)
	assert.Equal(t, models.FailModeClosed, cfg.RateLimit.FailMode)
	assert.Equal(t, models.CounterStoreRedis, cfg.RateLimit.Store)
	assert.Equal(t, "redis.internal:6379", cfg.RateLimit.Redis.Addr)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
`)
	t.Setenv("APIGATE_PORT", "9001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Server.Port, "environment wins over file")
}

func TestLoad_InvalidEnvValueIgnored(t *testing.T) {
	t.Setenv("APIGATE_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
