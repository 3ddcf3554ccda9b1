package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err) // explicit missing file is an error

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:5000", cfg.Addr)
	assert.Equal(t, 5, cfg.Database.MaxConns)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadFileAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskpilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: "127.0.0.1:9000"
database:
  url: "postgres://file-host/db"
  max_conns: 12
auth:
  secret: "file-secret"
`), 0o600))

	t.Setenv("DATABASE_URL", "postgres://env-host/db")
	t.Setenv("TASKPILOT_TOKEN_TTL", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)

	// file overrides defaults
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 12, cfg.Database.MaxConns)
	assert.Equal(t, "file-secret", cfg.Auth.Secret)
	// env overrides file
	assert.Equal(t, "postgres://env-host/db", cfg.Database.URL)
	assert.Equal(t, 48*time.Hour, cfg.Auth.TokenTTL)
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := defaults()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSecret)

	cfg.Auth.Secret = "s3cret"
	assert.NoError(t, cfg.Validate())
}
