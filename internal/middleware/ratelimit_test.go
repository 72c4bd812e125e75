package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func limitedEcho(cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb))
	return e
}

func login(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:test",
	}
	e := limitedEcho(cfg, rdb)

	for i := 0; i < 2; i++ {
		rec := login(e, "10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := login(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")

	// a different client has its own bucket
	assert.Equal(t, http.StatusOK, login(e, "10.0.0.2").Code)
}

func TestTokenBucket_FailsOpenWhenRedisGoesAway(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour, Prefix: "rl"}
	e := limitedEcho(cfg, rdb)

	mr.Close()
	assert.Equal(t, http.StatusOK, login(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, login(e, "10.0.0.1").Code)
}

func TestTokenBucket_DisabledIsPassThrough(t *testing.T) {
	e := limitedEcho(config.RateLimitConfig{Enabled: false}, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, login(e, "10.0.0.1").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:192.0.2.7:route:POST /auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "route"
	assert.Equal(t, "rl:route:POST /auth/login", buildRateKey(cfg, c))

	// user-keyed strategies are not offered; they fall back to ip_route
	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:192.0.2.7:route:POST /auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:192.0.2.7", buildRateKey(cfg, c))
}
