package utility

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// GetRealIP returns the client address as resolved by the router's IPExtractor.
// Forwarding headers are only honoured when the extractor trusts the peer.
func GetRealIP(c echo.Context) string {
	return c.RealIP()
}

// NewIPExtractor trusts X-Forwarded-For only from the given proxy CIDRs.
// With no proxies configured the connection's remote address is used as is.
func NewIPExtractor(trustedProxies []string) (echo.IPExtractor, error) {
	if len(trustedProxies) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func GetUserIDFromContext(c echo.Context) (string, error) {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// IPRateLimiter hands out one token bucket per client IP.
// Buckets idle for longer than idleTTL are dropped on the next sweep.
// A non-positive rate disables limiting.
type IPRateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	entries   sync.Map // ip -> *limiterEntry
	lastSweep atomic.Int64
	now       func() time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	rl := &IPRateLimiter{
		limit:   limit,
		burst:   burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
	rl.lastSweep.Store(rl.now().UnixNano())
	return rl
}

// Allow reports whether ip may make another request now.
func (rl *IPRateLimiter) Allow(ip string) bool {
	if rl.Disabled() {
		return true
	}
	now := rl.now()
	val, _ := rl.entries.LoadOrStore(ip, &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)})
	entry := val.(*limiterEntry)
	entry.lastSeen.Store(now.UnixNano())

	rl.maybeSweep(now)
	return entry.limiter.AllowN(now, 1)
}

func (rl *IPRateLimiter) Disabled() bool {
	return rl.limit == rate.Inf
}

func (rl *IPRateLimiter) maybeSweep(now time.Time) {
	last := rl.lastSweep.Load()
	if now.UnixNano()-last < int64(rl.idleTTL) {
		return
	}
	if !rl.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-rl.idleTTL).UnixNano()
	rl.entries.Range(func(key, value any) bool {
		if value.(*limiterEntry).lastSeen.Load() < cutoff {
			rl.entries.Delete(key)
		}
		return true
	})
}

// Middleware answers 429 once a client exhausts its bucket.
func (rl *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rl.Disabled() {
			return next
		}
		return func(c echo.Context) error {
			ip := GetRealIP(c)
			if !rl.Allow(ip) {
				log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("Rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many requests, please try again later"})
			}
			return next(c)
		}
	}
}
