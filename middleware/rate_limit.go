package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter counts requests per key in fixed windows
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int           // requests per window
	window    time.Duration // time window
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
		now:       time.Now,
	}
}

// Allow records a request for key. When the limit is hit it returns false and
// the time left until the window resets.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastReset) > l.window {
		l.tokens = make(map[string]int)
		l.lastReset = now
	}

	count := l.tokens[key]
	if count >= l.rate {
		return false, l.window - now.Sub(l.lastReset)
	}
	l.tokens[key] = count + 1
	return true, 0
}

// KeyFunc picks the bucket a request is counted in
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client IP
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// BySession counts requests per session, falling back to the client IP
func BySession(c *gin.Context) string {
	if sessionID := GetSessionID(c); sessionID != "" {
		return "session:" + sessionID
	}
	return c.ClientIP()
}

// RateLimit middleware limits requests per IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	return RateLimitBy(NewRateLimiter(rate, window), ByClientIP)
}

// RateLimitBy limits requests per key
func RateLimitBy(limiter *RateLimiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		ok, retryAfter := limiter.Allow(k)
		if !ok {
			slog.Warn("rate limit exceeded",
				"key", k,
				"request_id", GetRequestID(c),
			)

			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":   false,
				"error":     "Rate limit exceeded. Please try again later.",
				"kind":      "rate_limited",
				"retryable": true,
			})
			return
		}

		c.Next()
	}
}
