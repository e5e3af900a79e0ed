package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"readearn/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter connects the shared Redis client used by the
// limiters and returns it, or nil when addr is empty or the ping fails.
// The limiters then fall back to memory.
func InitRedisRateLimiter(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting in memory", "addr", addr, "error", err)
		_ = rdb.Close()
		redisClient = nil
		return nil
	}
	redisClient = rdb
	return rdb
}

// SetRedisClient shares an existing client with the limiters; nil disables
// Redis.
func SetRedisClient(rdb *redis.Client) {
	redisClient = rdb
}

// RedisRateLimit is a fixed-window limiter using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<caller>
// Without Redis, or on a Redis error, the in-memory limiter decides.
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	fallback := NewMemoryRateLimiter(maxRequests, window, maxRequests, 10*window)

	return func(c *gin.Context) {
		ident := callerKey(c)

		if redisClient == nil {
			limitInMemory(c, fallback, ident)
			return
		}

		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident
		ctx := c.Request.Context()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			limitInMemory(c, fallback, ident)
			return
		}
		if val == 1 {
			// first increment, set expiry
			redisClient.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

func limitInMemory(c *gin.Context, l RateLimiter, ident string) {
	if !l.Allow(ident) {
		RLBlocked.WithLabelValues(c.FullPath()).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}
	RLRequests.WithLabelValues(c.FullPath()).Inc()
	c.Next()
}
