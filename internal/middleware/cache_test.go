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

func cacheContext(userID interface{}, path, query string) echo.Context {
	e := echo.New()
	target := path
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	if userID != nil {
		c.Set("user_id", userID)
	}
	return c
}

func TestCacheKeySeparatesUsers(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "user_route_query"}

	alice := cacheKeyFrom(cfg, cacheContext(uint64(1), "/v1/dashboards/student", ""))
	bob := cacheKeyFrom(cfg, cacheContext(uint64(2), "/v1/dashboards/student", ""))
	aliceAgain := cacheKeyFrom(cfg, cacheContext(uint64(1), "/v1/dashboards/student", ""))

	assert.NotEqual(t, alice, bob)
	assert.Equal(t, alice, aliceAgain)
}

func TestCacheKeyRouteStrategySharesAcrossUsers(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route"}

	alice := cacheKeyFrom(cfg, cacheContext(uint64(1), "/v1/locations", ""))
	bob := cacheKeyFrom(cfg, cacheContext(uint64(2), "/v1/locations", ""))

	assert.Equal(t, alice, bob)
}

func TestCacheKeyQuerySensitivity(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "user_route_query"}

	day := cacheKeyFrom(cfg, cacheContext(uint64(1), "/v1/dashboards/admin", "window=day"))
	week := cacheKeyFrom(cfg, cacheContext(uint64(1), "/v1/dashboards/admin", "window=week"))

	assert.NotEqual(t, day, week)
}

func TestRequestUserIDForms(t *testing.T) {
	cases := []struct {
		name string
		set  interface{}
		want string
	}{
		{"uint64", uint64(42), "42"},
		{"int64", int64(7), "7"},
		{"float64", float64(9), "9"},
		{"string", "abc", "abc"},
		{"empty string", "", "anon"},
		{"unauthenticated", nil, "anon"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cacheContext(tc.set, "/", "")
			assert.Equal(t, tc.want, requestUserID(c))
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}, "X-Custom": {"a", "b"}}
	body := []byte(`{"ok":true}`)

	payload, err := encodePayload(http.StatusOK, hdr, body)
	require.NoError(t, err)

	status, gotHdr, gotBody, ok := decodePayload(payload)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, body, gotBody)
}

func TestDecodePayloadRejectsTruncated(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 0, 0})
	assert.False(t, ok)
}
