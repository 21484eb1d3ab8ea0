package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{FileEnv, "PRIMARY_TIMEZONE", "HTTP_TIMEOUT", "DATABASE_DRIVER", "DATABASE_URL", "GOOGLE_CLIENT_ID", "RATE_LIMIT_PER_SECOND", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "UTC", c.TimeZone)
	assert.Equal(t, 30*time.Second, c.HTTPTimeout)
	assert.Equal(t, "sqlite3", c.Database.Driver)
	assert.Equal(t, "calsync.db", filepath.Base(c.Database.URL))
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
time_zone: America/Denver
http_timeout: 10s
database:
  driver: pgx
  url: postgres://localhost/calsync
google:
  client_id: file-id
server:
  rate_limit_burst: 3
`), 0o600))

	clearEnv(t)
	t.Setenv(FileEnv, path)
	t.Setenv("GOOGLE_CLIENT_ID", "env-id")
	t.Setenv("RATE_LIMIT_PER_SECOND", "0.5")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "America/Denver", c.TimeZone)
	assert.Equal(t, 10*time.Second, c.HTTPTimeout)
	assert.Equal(t, "pgx", c.Database.Driver)
	assert.Equal(t, "env-id", c.Google.ClientID)
	assert.Equal(t, 3, c.Server.RateLimitBurst)
	assert.Equal(t, 0.5, c.Server.RateLimitPerSecond)
	assert.Equal(t, "America/Denver", c.Location().String())
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRIMARY_TIMEZONE", "Mars/Olympus")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid timezone")
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidateDriver(t *testing.T) {
	c := Defaults()
	c.Database.Driver = "mysql"
	assert.Error(t, c.Validate())
}
