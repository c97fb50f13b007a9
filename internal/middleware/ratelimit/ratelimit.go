// Package ratelimit provides per-IP token bucket rate limiting.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/pendergraft/delegation-deployments/internal/config"
	"github.com/pendergraft/delegation-deployments/internal/middleware/realip"
)

// exemptPaths bypass rate limiting
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// RateLimiter keeps one limiter per client IP. Idle limiters expire from the
// cache after the cleanup interval.
type RateLimiter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
	idle     time.Duration
}

// New creates a RateLimiter.
func New(cfg config.RateLimitConfig) *RateLimiter {
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(idle, idle),
		rate:     rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:    burst,
		idle:     idle,
	}
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.limiter(ip).Allow()
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	if v, ok := rl.limiters.Get(ip); ok {
		l := v.(*rate.Limiter)
		// refresh expiry on use
		rl.limiters.Set(ip, l, rl.idle)
		return l
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	if err := rl.limiters.Add(ip, l, rl.idle); err != nil {
		// lost a race with another request from the same ip
		if v, ok := rl.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Tracked returns the number of client IPs with a live limiter.
func (rl *RateLimiter) Tracked() int {
	return rl.limiters.ItemCount()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	retryAfter := "60"
	if rl.rate > 0 {
		retryAfter = strconv.Itoa(max(1, int(1/float64(rl.rate))))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.Allow(realip.GetClientIP(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware returns a rate limiting middleware, or a pass-through when disabled.
func Middleware(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Middleware()
}
