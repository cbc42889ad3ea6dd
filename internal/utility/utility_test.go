package utility

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContextFrom(e *echo.Echo, remoteAddr string, headers map[string]string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestGetRealIP(t *testing.T) {
	tests := []struct {
		name       string
		proxies    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct ignores forwarded header",
			remoteAddr: "198.51.100.4:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "direct ignores real ip header",
			remoteAddr: "198.51.100.4:4000",
			headers:    map[string]string{"X-Real-IP": "9.9.9.9"},
			want:       "198.51.100.4",
		},
		{
			name:       "trusted proxy forwards client",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.5"},
			want:       "1.2.3.4",
		},
		{
			name:       "untrusted peer cannot forward",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "198.51.100.4:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:       "198.51.100.4",
		},
		{
			name:       "spoofed entry left of untrusted hop",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "10.0.0.9:5555",
			headers:    map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			want:       "5.6.7.8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor, err := NewIPExtractor(tt.proxies)
			require.NoError(t, err)
			e := echo.New()
			e.IPExtractor = extractor
			assert.Equal(t, tt.want, GetRealIP(newContextFrom(e, tt.remoteAddr, tt.headers)))
		})
	}
}

func TestNewIPExtractor_InvalidCIDR(t *testing.T) {
	_, err := NewIPExtractor([]string{"10.0.0.0/8", "not-a-cidr"})
	assert.Error(t, err)
}

func TestGetUserIDFromContext(t *testing.T) {
	c := newContextFrom(echo.New(), "10.0.0.9:5555", nil)
	_, err := GetUserIDFromContext(c)
	assert.Error(t, err)

	c.Set("user_id", "u-1")
	id, err := GetUserIDFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
}

func TestIPRateLimiter_Allow(t *testing.T) {
	rl := NewIPRateLimiter(1, 2)
	fixed := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return fixed }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	// Buckets are per IP.
	assert.True(t, rl.Allow("b"))

	fixed = fixed.Add(time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestIPRateLimiter_SweepsIdleEntries(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }
	rl.lastSweep.Store(now.UnixNano())

	rl.Allow("idle")
	now = now.Add(rl.idleTTL + time.Second)
	rl.Allow("fresh")

	_, idleKept := rl.entries.Load("idle")
	_, freshKept := rl.entries.Load("fresh")
	assert.False(t, idleKept)
	assert.True(t, freshKept)
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	e := echo.New()
	e.IPExtractor = echo.ExtractIPDirect()
	rl := NewIPRateLimiter(0.001, 1)
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, rl.Middleware())

	do := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "198.51.100.7:1234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, do("1.1.1.1"))
	// Rotating the forwarded header does not earn a fresh bucket.
	assert.Equal(t, http.StatusTooManyRequests, do("2.2.2.2"))
}

func TestIPRateLimiter_ZeroRateDisables(t *testing.T) {
	rl := NewIPRateLimiter(0, 1)
	assert.True(t, rl.Disabled())

	start := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return start }
	for i := 0; i < 50; i++ {
		assert.True(t, rl.Allow("a"))
	}
	rl.now = func() time.Time { return start.Add(time.Hour) }
	assert.True(t, rl.Allow("a"))

	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, rl.Middleware())
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestIPRateLimiter_NegativeRateDisables(t *testing.T) {
	assert.True(t, NewIPRateLimiter(-3, 5).Disabled())
	assert.False(t, NewIPRateLimiter(0.5, 5).Disabled())
}
