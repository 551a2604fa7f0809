package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Session.Timeout)
	assert.Equal(t, "cookies-accepted", cfg.CookieBanner.Name)
	assert.Empty(t, cfg.Consul.Address)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
http_port: 9090
database:
  driver: sqlite
  url: "file::memory:"
session:
  backend: database
  timeout: 30m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("ACRONYMS_ADMIN_PASSWORD", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "database", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, "from-env", cfg.Admin.Password)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("ACRONYMS_DATABASE_DRIVER", "oracle")

	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "unsupported database driver")
}
