package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolsecure/hallpass/internal/config"
)

func rateContext(userID interface{}, method, path string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:42000"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	if userID != nil {
		c.Set("user_id", userID)
	}
	return c
}

func TestBuildRateKeyStrategies(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: ""}
	c := rateContext(uint64(5), http.MethodPost, "/v1/passes")

	cases := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:203.0.113.7"},
		{"user", "rl:user:5"},
		{"route", "rl:route:POST /v1/passes"},
		{"ip_user", "rl:ip:203.0.113.7:user:5"},
		{"user_route", "rl:user:5:route:POST /v1/passes"},
		{"", "rl:ip:203.0.113.7:user:5:route:POST /v1/passes"},
	}
	for _, tc := range cases {
		cfg.KeyStrategy = tc.strategy
		assert.Equal(t, tc.want, buildRateKey(cfg, c), "strategy %q", tc.strategy)
	}
}

func TestBuildRateKeyAnonymousUser(t *testing.T) {
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	c := rateContext(nil, http.MethodGet, "/v1/auth/login")
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil)
	c := rateContext(uint64(1), http.MethodGet, "/v1/passes/mine")

	called := false
	h := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	assert.True(t, called)
}

func TestAsInt64Forms(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(int64(3)))
	assert.Equal(t, int64(3), asInt64(3))
	assert.Equal(t, int64(3), asInt64(3.9))
	assert.Equal(t, int64(3), asInt64("3"))
	assert.Equal(t, int64(0), asInt64("nope"))
}
