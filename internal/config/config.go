// Package config loads engine settings from the environment, with a .env
// file as an optional local override.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the engine reads.
type Config struct {
	InstanceName string
	BaseURL      string // Twist server base URL, no trailing slash
	OSRMURL      string // routing service base URL
	StateFile    string // sqlite file backing the durable client store

	// AuthCookieMaxAge is the server-issued session lifetime in seconds.
	// Zero means the cookie has no tracked expiry.
	AuthCookieMaxAge int

	// AuthExpiryWarningOffset is how many seconds before expiry the
	// renewal countdown appears. Zero disables the warning state.
	AuthExpiryWarningOffset int

	DefaultTwistsLoaded int
	MaxTwistsLoaded     int

	DoubleClickTimeout time.Duration
	RefreshDebounce    time.Duration
}

// Load reads configuration from a .env file (if present) and the
// environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables from system")
	}

	cfg := &Config{
		InstanceName:            envString("TWISTMAP_INSTANCE_NAME", "TwistMap"),
		BaseURL:                 trimTrailingSlash(envString("TWISTMAP_BASE_URL", "http://localhost:8000")),
		OSRMURL:                 trimTrailingSlash(envString("OSRM_URL", "https://router.project-osrm.org")),
		StateFile:               envString("TWISTMAP_STATE_FILE", "twistmap.db"),
		AuthCookieMaxAge:        envInt("AUTH_COOKIE_MAX_AGE", 3600),
		AuthExpiryWarningOffset: envInt("AUTH_EXPIRY_WARNING_OFFSET", 300),
		DefaultTwistsLoaded:     envInt("DEFAULT_TWISTS_LOADED", 20),
		MaxTwistsLoaded:         envInt("MAX_TWISTS_LOADED", 100),
		DoubleClickTimeout:      time.Duration(envInt("DOUBLE_CLICK_TIMEOUT_MS", 400)) * time.Millisecond,
		RefreshDebounce:         time.Duration(envInt("ROUTE_REFRESH_DEBOUNCE_MS", 150)) * time.Millisecond,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.AuthCookieMaxAge < 0 {
		return fmt.Errorf("AUTH_COOKIE_MAX_AGE (%d) must not be negative", c.AuthCookieMaxAge)
	}
	if c.AuthExpiryWarningOffset < 0 {
		return fmt.Errorf("AUTH_EXPIRY_WARNING_OFFSET (%d) must not be negative", c.AuthExpiryWarningOffset)
	}
	if c.AuthExpiryWarningOffset > c.AuthCookieMaxAge {
		return fmt.Errorf(
			"AUTH_EXPIRY_WARNING_OFFSET (%d) must be less than or equal to AUTH_COOKIE_MAX_AGE (%d)",
			c.AuthExpiryWarningOffset, c.AuthCookieMaxAge,
		)
	}
	if c.DefaultTwistsLoaded < 2 {
		return fmt.Errorf("DEFAULT_TWISTS_LOADED (%d) must be greater than 1", c.DefaultTwistsLoaded)
	}
	if c.DefaultTwistsLoaded > c.MaxTwistsLoaded {
		return fmt.Errorf(
			"DEFAULT_TWISTS_LOADED (%d) must be less than or equal to MAX_TWISTS_LOADED (%d)",
			c.DefaultTwistsLoaded, c.MaxTwistsLoaded,
		)
	}
	return nil
}

// SessionLifetime returns AuthCookieMaxAge as a duration.
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.AuthCookieMaxAge) * time.Second
}

// WarningOffset returns AuthExpiryWarningOffset as a duration.
func (c *Config) WarningOffset() time.Duration {
	return time.Duration(c.AuthExpiryWarningOffset) * time.Second
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func trimTrailingSlash(s string) string {
	for len(s) > 1 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
