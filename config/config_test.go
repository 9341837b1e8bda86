package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/wallet-ledger/config"
)

// clearEnv resets every variable config.Load reads, so each test
// starts from a known-empty environment regardless of test order or
// a stray .env file on disk (t.Setenv below still wins over a real
// .env since Load reads os.Getenv after godotenv.Load populates only
// unset variables).
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"APP_ENV", "HTTP_PORT", "DATABASE_URL", "TEST_DATABASE_URL", "SECRET_KEY", "API_V1_PREFIX", "PROJECT_NAME"} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "wallet.db")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "/api/v1", cfg.APIV1Prefix)
	assert.Equal(t, "wallet-ledger", cfg.ProjectName)
	assert.False(t, cfg.IsProduction())
}

func TestLoadRejectsUnknownAppEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "wallet.db")
	t.Setenv("APP_ENV", "staging")

	_, err := config.Load()
	assert.ErrorContains(t, err, "APP_ENV must be development or production")
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := config.Load()
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestLoadRequiresSecretKeyInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "wallet.db")
	t.Setenv("APP_ENV", "production")

	_, err := config.Load()
	assert.ErrorContains(t, err, "SECRET_KEY is required in production")
}

func TestLoadAcceptsProductionWithSecretKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "wallet.db")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SECRET_KEY", "s3cr3t")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsNonIntegerHTTPPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "wallet.db")
	t.Setenv("HTTP_PORT", "not-a-port")

	_, err := config.Load()
	assert.ErrorContains(t, err, "HTTP_PORT must be an integer")
}

func TestLoadAggregatesMultipleErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "bogus")

	_, err := config.Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "APP_ENV must be development or production")
	assert.ErrorContains(t, err, "DATABASE_URL is required")
}

func TestHTTPAddrFormatsPort(t *testing.T) {
	cfg := config.Config{HTTPPort: 9090}
	assert.Equal(t, ":9090", cfg.HTTPAddr())
}
