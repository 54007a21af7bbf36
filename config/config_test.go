package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tour-pricing/core"
	"github.com/warp/tour-pricing/refund"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"APP_PORT", "DB_PATH", "BACKEND_URL", "BACKEND_TIMEOUT", "LOG_LEVEL", "REDIS_ADDR",
		"REDIS_DB", "GUIDE_CACHE_TTL", "GUIDE_CACHE_MAX_ENTRIES", "REFUND_BALANCE_DUE_POLICY", "CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "tours.db", cfg.DBPath)
	assert.True(t, cfg.Standalone())
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.GuideCacheTTL)
	assert.Equal(t, 1024, cfg.GuideCacheMaxEntries)
	assert.Equal(t, refund.BalanceDuePerDraw, cfg.BalanceDue)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://booking.example.com/api/")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("GUIDE_CACHE_TTL", "not-a-duration")
	t.Setenv("GUIDE_CACHE_MAX_ENTRIES", "0")
	t.Setenv("REFUND_BALANCE_DUE_POLICY", "none")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "https://booking.example.com/api", cfg.BackendURL)
	assert.False(t, cfg.Standalone())
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 5*time.Minute, cfg.GuideCacheTTL, "unparseable falls back")
	assert.Equal(t, 1, cfg.GuideCacheMaxEntries)
	assert.Equal(t, refund.BalanceDueNone, cfg.BalanceDue)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnv_RejectsUnknownValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("REFUND_BALANCE_DUE_POLICY", "sometimes")
	_, err = FromEnv()
	assert.ErrorIs(t, err, core.ErrValidation)
}
