package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	return &Config{
		BaseURL:                 "http://localhost:8000",
		OSRMURL:                 "https://router.project-osrm.org",
		AuthCookieMaxAge:        3600,
		AuthExpiryWarningOffset: 300,
		DefaultTwistsLoaded:     20,
		MaxTwistsLoaded:         100,
		DoubleClickTimeout:      400 * time.Millisecond,
		RefreshDebounce:         150 * time.Millisecond,
	}
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, defaults().Validate())
}

func TestValidate_WarningOffsetExceedsMaxAge(t *testing.T) {
	cfg := defaults()
	cfg.AuthCookieMaxAge = 200
	cfg.AuthExpiryWarningOffset = 300

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_EXPIRY_WARNING_OFFSET")
}

func TestValidate_DefaultLoadedExceedsMax(t *testing.T) {
	cfg := defaults()
	cfg.DefaultTwistsLoaded = 200

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_TWISTS_LOADED")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TWISTMAP_BASE_URL", "https://twists.example.com/")
	t.Setenv("AUTH_EXPIRY_WARNING_OFFSET", "60")
	t.Setenv("DOUBLE_CLICK_TIMEOUT_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://twists.example.com", cfg.BaseURL)
	assert.Equal(t, 60, cfg.AuthExpiryWarningOffset)
	assert.Equal(t, 250*time.Millisecond, cfg.DoubleClickTimeout)
	assert.Equal(t, time.Hour, cfg.SessionLifetime())
	assert.Equal(t, time.Minute, cfg.WarningOffset())
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("DEFAULT_TWISTS_LOADED", "twenty")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.DefaultTwistsLoaded)
}
