package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8081", cfg.Port)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, 300, cfg.RateLimit.APIPerWindow)
	require.Equal(t, 10, cfg.RateLimit.LoginPerWindow)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	require.False(t, cfg.AllowDevBypass)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("RATE_LIMIT_LOGIN_PER_WINDOW", "5")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, 5, cfg.RateLimit.LoginPerWindow)
}

func TestDevBypassRejectedOutsideDevEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("ALLOW_DEV_BYPASS", "true")

	_, err := Load()
	require.ErrorContains(t, err, "allow_dev_bypass")
}

func TestDevBypassAcceptedInDevEnv(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("ALLOW_DEV_BYPASS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.AllowDevBypass)
}

func TestIsDev(t *testing.T) {
	for env, want := range map[string]bool{
		"development": true,
		"dev":         true,
		"local":       true,
		"production":  false,
		"staging":     false,
	} {
		cfg := &Config{Env: env}
		require.Equal(t, want, cfg.IsDev(), "env %q", env)
	}
}

func TestEmptyDatabaseURLRejected(t *testing.T) {
	t.Setenv("DATABASE_URL", " ")

	_, err := Load()
	require.ErrorContains(t, err, "database_url")
}
