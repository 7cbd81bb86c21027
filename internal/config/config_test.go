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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "marquee", cfg.Storage.Primary)
	assert.Equal(t, "marquee-rescue", cfg.Storage.Quarantine)
	assert.Equal(t, time.Second, cfg.Storage.OpenTimeout)
	assert.Equal(t, 1, cfg.Storage.MaxReloads)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFrom_File(t *testing.T) {
	path := writeConfig(t, `
storage:
  dir: /tmp/marquee-test
  primary: main
  open_timeout: 250ms
  max_reloads: 2
ui:
  plain: true
logging:
  level: debug
`)
	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/marquee-test", cfg.Storage.Dir)
	assert.Equal(t, "main", cfg.Storage.Primary)
	assert.Equal(t, "marquee-rescue", cfg.Storage.Quarantine, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.OpenTimeout)
	assert.Equal(t, 2, cfg.Storage.MaxReloads)
	assert.True(t, cfg.UI.Plain)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFrom_Env(t *testing.T) {
	path := writeConfig(t, "storage:\n  primary: fromfile\n")
	t.Setenv("MARQUEE_STORAGE_PRIMARY", "fromenv")
	t.Setenv("MARQUEE_LOGGING_LEVEL", "WARN")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Storage.Primary)
	assert.Equal(t, "WARN", cfg.Logging.Level)
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	path := writeConfig(t, "storage:\n  primary: same\n  quarantine: same\n")
	_, err := LoadConfigFrom(path)
	assert.ErrorContains(t, err, "must differ")
}

func TestLoadConfigFrom_Malformed(t *testing.T) {
	path := writeConfig(t, "storage: [unclosed\n")
	_, err := LoadConfigFrom(path)
	assert.ErrorContains(t, err, "error reading config file")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.MaxReloads = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Storage.Dir = ""
	assert.Error(t, cfg.Validate())
}
