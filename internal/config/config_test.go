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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
database:
  url: postgres://localhost/memberhub
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Dispatch.BatchSize)
	assert.Equal(t, time.Second, cfg.Dispatch.BatchDelay())
	assert.Equal(t, 10, cfg.Dispatch.MaxReportErrors)
	assert.Equal(t, "_verification", cfg.Domains.TXTPrefix)
	assert.Equal(t, "certbot", cfg.Domains.CertbotBin)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  host: 0.0.0.0
  port: 9000
dispatch:
  batch_size: 25
  batch_delay_ms: 250
domains:
  txt_prefix: _mh-verify
  certbot_bin: /usr/bin/certbot
  reload_command: ["systemctl", "reload", "nginx"]
mail:
  base_url: https://api.mail.example
  timeout_seconds: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Dispatch.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatch.BatchDelay())
	assert.Equal(t, "_mh-verify", cfg.Domains.TXTPrefix)
	assert.Equal(t, []string{"systemctl", "reload", "nginx"}, cfg.Domains.ReloadCommand)
	assert.Equal(t, 5*time.Second, cfg.Mail.Timeout())
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/dev
`)
	t.Setenv("DATABASE_URL", "postgres://prod-host/memberhub")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod-host/memberhub", cfg.Database.URL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
