package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"cyberchat/internal/redis"
)

const rateLimitKeyPrefix = "ratelimit:"

type localWindow struct {
	count  int
	resets time.Time
}

// RateLimiter throttles requests per client address over a fixed window.
// With a redis client the window counters are shared across instances;
// without one it degrades to process-local counters.
type RateLimiter struct {
	cache  *redis.Client
	limit  int
	window time.Duration

	mu    sync.Mutex
	local map[string]*localWindow
}

func NewRateLimiter(cache *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimiter{
		cache:  cache,
		limit:  limit,
		window: window,
		local:  make(map[string]*localWindow),
	}
}

// Middleware rejects clients above the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context) bool {
	ip := c.ClientIP()
	if rl.cache != nil {
		return rl.allowRedis(c, ip)
	}
	return rl.allowLocal(ip)
}

func (rl *RateLimiter) allowRedis(c *gin.Context, ip string) bool {
	ctx := c.Request.Context()
	key := rateLimitKeyPrefix + ip
	count, err := rl.cache.Incr(ctx, key)
	if err != nil {
		// Fail open: a cache outage should not take the API down.
		log.Printf("rate limit incr: %v", err)
		return true
	}
	if count == 1 {
		if err := rl.cache.Expire(ctx, key, rl.window); err != nil {
			log.Printf("rate limit expire: %v", err)
		}
	}
	return count <= int64(rl.limit)
}

func (rl *RateLimiter) allowLocal(ip string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.local[ip]
	if !ok || now.After(w.resets) {
		rl.local[ip] = &localWindow{count: 1, resets: now.Add(rl.window)}
		return true
	}
	w.count++
	return w.count <= rl.limit
}
