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
	t.Setenv("UNILIB_JWT_SECRET", "test-secret")
	t.Setenv("UNILIB_HTTP_ADDR", "")
	t.Setenv("UNILIB_SELF_SERVICE", "")
	t.Setenv("UNILIB_TOKEN_TTL", "")
	t.Setenv("UNILIB_LOG_LEVEL", "")
	t.Setenv("UNILIB_EVENT_EXCHANGE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "unilib.circulation", cfg.Events.Exchange)
	assert.False(t, cfg.Circulation.SelfService)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("UNILIB_JWT_SECRET", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("UNILIB_JWT_SECRET", "test-secret")
	t.Setenv("UNILIB_HTTP_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("UNILIB_SELF_SERVICE", "")
	t.Setenv("UNILIB_TOKEN_TTL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
database:
  url: "postgres://example/db"
circulation:
  self_service: true
auth:
  token_ttl: 1h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://example/db", cfg.Database.URL)
	assert.True(t, cfg.Circulation.SelfService)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("UNILIB_JWT_SECRET", "test-secret")
	t.Setenv("UNILIB_HTTP_ADDR", ":7070")
	t.Setenv("UNILIB_SELF_SERVICE", "true")
	t.Setenv("UNILIB_TOKEN_TTL", "30m")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.True(t, cfg.Circulation.SelfService)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
}

func TestLoadBadFile(t *testing.T) {
	t.Setenv("UNILIB_JWT_SECRET", "test-secret")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
