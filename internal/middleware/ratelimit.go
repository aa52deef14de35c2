package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type rateBucket struct {
	count       int
	windowStart time.Time
}

// InMemoryRateLimiter is a fixed-window counter per key. Good enough for a
// single instance; a multi-instance deployment would move this to a shared
// store.
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration
}

func NewInMemoryRateLimiter(limit int, window time.Duration) *InMemoryRateLimiter {
	r := &InMemoryRateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
	}
	go r.evictLoop()
	return r
}

// Allow reports whether the key may proceed, and when denied, how long until
// its window resets.
func (r *InMemoryRateLimiter) Allow(key string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	b, ok := r.buckets[key]
	if !ok || now.Sub(b.windowStart) >= r.window {
		r.buckets[key] = &rateBucket{count: 1, windowStart: now}
		return true, 0
	}
	if b.count >= r.limit {
		return false, b.windowStart.Add(r.window).Sub(now)
	}
	b.count++
	return true, 0
}

func (r *InMemoryRateLimiter) evictLoop() {
	tick := time.NewTicker(time.Minute)
	for range tick.C {
		r.mu.Lock()
		now := time.Now()
		for k, b := range r.buckets {
			if now.Sub(b.windowStart) >= r.window {
				delete(r.buckets, k)
			}
		}
		r.mu.Unlock()
	}
}

// RateLimit limits by client IP and tells a throttled caller when to retry.
func RateLimit(limiter *InMemoryRateLimiter) gin.HandlerFunc {
	return RateLimitKeyed(limiter, func(c *gin.Context) string { return c.ClientIP() })
}

// RateLimitKeyed limits by an arbitrary request key, e.g. the referral code
// on the public click endpoint so one hot code cannot starve the rest.
func RateLimitKeyed(limiter *InMemoryRateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryIn := limiter.Allow(key(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(retryIn.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
