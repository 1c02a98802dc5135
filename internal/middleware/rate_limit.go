package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"commentengine/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket. Buckets are keyed by client
// IP; the authenticated-user Redis window in EndpointRateLimit handles
// per-actor fairness, this layer sheds raw connection floods.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Middleware returns the gin middleware enforcing the limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := rl.getLimiter(c.ClientIP())
		if !limiter.Allow() {
			util.ErrorResponse(c, http.StatusTooManyRequests, "Too many requests, please slow down", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// EndpointRateLimit enforces a fixed-window limit per (actor, endpoint) in
// Redis, so the limit holds across replicas. Must run after Auth. Redis being
// unavailable fails open; the in-process limiter above still applies.
func EndpointRateLimit(redis *util.RedisClient, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redis == nil {
			c.Next()
			return
		}

		userID, exists := c.Get("userID")
		if !exists {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:%s:%s:%s", userID, c.Request.Method, c.FullPath())
		count, err := redis.IncrWithExpire(c.Request.Context(), key, window)
		if err != nil {
			c.Next()
			return
		}
		if count > int64(limit) {
			util.ErrorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded for this endpoint", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
