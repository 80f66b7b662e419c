package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.ManagerPIN)
	assert.Empty(t, cfg.AdminPassword)
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	for _, key := range []string{"PORT", "RATE_CACHE_TTL_SECONDS", "CART_TTL_HOURS", "TX_MAX_ATTEMPTS", "STRICT_PRICING", "ACCESS_TOKEN_TTL_MINUTES", "MONGO_DATABASE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 30*time.Second, cfg.RateCacheTTL)
	assert.Equal(t, 12*time.Hour, cfg.CartTTL)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.True(t, cfg.StrictPricing)
	assert.Equal(t, 8*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, "karatpos", cfg.MongoDatabase)
}

func TestLoadReadsEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STRICT_PRICING", "false")
	t.Setenv("TX_MAX_ATTEMPTS", "9")
	t.Setenv("RATE_CACHE_TTL_SECONDS", "-4")
	t.Setenv("REDIS_ADDR", " localhost:6379 ")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Address())
	assert.False(t, cfg.StrictPricing)
	assert.Equal(t, 9, cfg.TxMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RateCacheTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.env")
	require.NoError(t, os.WriteFile(path, []byte("MANAGER_PIN=739164\nCART_TTL_HOURS=2\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("MANAGER_PIN", "")
	require.NoError(t, os.Unsetenv("MANAGER_PIN"))
	t.Setenv("CART_TTL_HOURS", "")
	require.NoError(t, os.Unsetenv("CART_TTL_HOURS"))

	cfg := Load()
	assert.Equal(t, "739164", cfg.ManagerPIN)
	assert.Equal(t, 2*time.Hour, cfg.CartTTL)
}
