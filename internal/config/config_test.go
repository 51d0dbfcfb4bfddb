package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SECRETBOX_MASTER_KEY", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	requiredEnv(t)
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, 3, c.Upstream.MaxRetries)
	assert.Equal(t, 7*24*time.Hour, c.Session.TTL)
	assert.Equal(t, 15*time.Minute, c.JWT.AccessTTL)
	assert.False(t, c.SpotifyConfigured())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	requiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  app_env: staging
server:
  addr: ":9000"
storage:
  driver: postgres
  dsn: postgres://tunetrail@localhost/tunetrail
upstream:
  max_retries: 5
  attempt_timeout: 4s
spotify:
  client_id: yaml-client
  client_secret: yaml-secret
`), 0o600))

	t.Setenv("SERVER_ADDR", ":7000")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("UPSTREAM_ATTEMPT_TIMEOUT", "2s")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.App.Env)
	assert.Equal(t, ":7000", c.Server.Addr)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, 5, c.Upstream.MaxRetries)
	assert.Equal(t, 2*time.Second, c.Upstream.AttemptTimeout)
	assert.True(t, c.SpotifyConfigured())
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("CACHE_KIND", "mongo")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SECRETBOX_MASTER_KEY", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn is required")
	assert.Contains(t, err.Error(), "cache.kind \"mongo\"")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "SECRETBOX_MASTER_KEY")
}

func TestValidate_FastHashingRejectedInProd(t *testing.T) {
	requiredEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PASSWORD_HASHING", "fast")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in prod")
}

func TestLoad_BadYAML(t *testing.T) {
	requiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_SpotifyScopes(t *testing.T) {
	requiredEnv(t)
	t.Setenv("SPOTIFY_SCOPES", "user-read-email, Bad Scope")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Bad Scope" is not a valid scope name`)
}
