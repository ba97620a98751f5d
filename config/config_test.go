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
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"redis": {"addrs": ["localhost:6379"]}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":", cfg.KeyDelimiter)
	assert.Equal(t, 5*time.Second, cfg.RedisLockTimeout)
	assert.Equal(t, 5*time.Minute, cfg.TriggerLockTimeout)
	assert.NotEmpty(t, cfg.InstanceID)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_RejectsMissingAddrs(t *testing.T) {
	path := writeConfig(t, `{"redis": {"addrs": []}}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsNonexistentFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfig_PreservesExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"redis": {"addrs": ["redis-0:6379", "redis-1:6379"], "db": 2},
		"key_prefix": "myapp",
		"instance_id": "fixed-id",
		"redis_lock_timeout": 1000000000
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"redis-0:6379", "redis-1:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "myapp", cfg.KeyPrefix)
	assert.Equal(t, "fixed-id", cfg.InstanceID)
	assert.Equal(t, time.Second, cfg.RedisLockTimeout)
}

func TestNewInstanceID_Unique(t *testing.T) {
	a := newInstanceID()
	b := newInstanceID()
	assert.NotEqual(t, a, b)
}
