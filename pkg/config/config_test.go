package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp isolates Load from any .env in the package directory
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	for _, k := range []string{"SERVER_PORT", "STORE", "TOKEN_TTL_MINUTES", "RATE_LIMIT_DISABLED", "ENVIRONMENT", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, int64(100), cfg.RateLimitRequests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.RateLimitDisabled)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.Minute, cfg.StatsInterval)
}

func TestLoadTestEnvironmentDisablesRateLimit(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("RATE_LIMIT_DISABLED", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RateLimitDisabled)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STORE=memory\nSEED_ADMIN_EMAIL=root@example.com\n"), 0o600))
	t.Setenv("STORE", "")
	t.Setenv("SEED_ADMIN_EMAIL", "")
	// godotenv does not override variables already present
	os.Unsetenv("STORE")
	os.Unsetenv("SEED_ADMIN_EMAIL")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "root@example.com", cfg.SeedAdminEmail)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdirTemp(t)
	cases := map[string]string{
		"SERVER_PORT":               "eighty",
		"STORE":                     "mongo",
		"TOKEN_TTL_MINUTES":         "0",
		"RATE_LIMIT_REQUESTS":       "-1",
		"RATE_LIMIT_WINDOW_MINUTES": "x",
		"STATS_INTERVAL_SECONDS":    "-5",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
