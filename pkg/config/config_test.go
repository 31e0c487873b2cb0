package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("PULSE_CONFIG_PATH", path)
}

func TestLoadAppliesDefaults(t *testing.T) {
	writeConfig(t, `
host: pulse.example.com
postgres:
  host: localhost
  port: "5432"
  dbname: pulse
  user: pulse
  password: secret
redis:
  url: redis://localhost:6379/0
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pulse.example.com", cfg.Host)
	assert.Equal(t, ":8088", cfg.ServerAddr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "us-east", cfg.Region)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Equal(t, "UTC", cfg.Postgres.TimeZone)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	writeConfig(t, `
serverAddr: ":9000"
region: eu-west
queue:
  concurrency: 12
  maxAttempts: 7
`)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, "eu-west", cfg.Region)
	assert.Equal(t, 12, cfg.Queue.Concurrency)
	assert.Equal(t, 7, cfg.Queue.MaxAttempts)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("PULSE_CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	writeConfig(t, "host: [unclosed")
	_, err := Load()
	assert.Error(t, err)
}
