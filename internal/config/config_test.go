package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "*", cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 1.0, cfg.VarianceWarnPct)
	assert.Equal(t, 5.0, cfg.VarianceCriticalPct)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:tillshift.db")
	t.Setenv("BUSINESS_TIMEZONE", "UTC")
	t.Setenv("STORE_TIMEOUT_SECONDS", "2")
	t.Setenv("VARIANCE_WARN_PCT", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:tillshift.db", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 0.5, cfg.VarianceWarnPct)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DatabaseDriver:      "postgres",
			BusinessTimezone:    "UTC",
			StoreTimeoutSeconds: 5,
			VarianceWarnPct:     1,
			VarianceCriticalPct: 5,
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"unknown driver":      func(c *Config) { c.DatabaseDriver = "mysql" },
		"bad timezone":        func(c *Config) { c.BusinessTimezone = "Mars/Olympus" },
		"thresholds inverted": func(c *Config) { c.VarianceWarnPct = 10 },
		"zero timeout":        func(c *Config) { c.StoreTimeoutSeconds = 0 },
		"prod without secret": func(c *Config) { c.Env = "production" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
