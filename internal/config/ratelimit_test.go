package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadRateLimitConfig_Env(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "ip")

	cfg := LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL, "ttl is raised to five refill intervals")
	assert.Equal(t, "ip", cfg.KeyStrategy)
	assert.Equal(t, "rl:auth", cfg.Prefix)
}
