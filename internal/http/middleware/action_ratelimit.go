package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ActionRateLimit limits one kind of action (gift, publish) per BFF session,
// independent of the general API limit. Requires Session to run first.
func ActionRateLimit(action string, maxActions int, window time.Duration) gin.HandlerFunc {
	fallback := NewMemoryRateLimiter(maxActions, window, maxActions, 10*window)

	return func(c *gin.Context) {
		sid := SessionID(c)
		if sid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session required"})
			return
		}

		if redisClient == nil {
			if !fallback.Allow(action + ":" + sid) {
				blockAction(c, action, window)
				return
			}
			RLRequests.WithLabelValues("action:" + action).Inc()
			c.Next()
			return
		}

		key := "act_rl:" + action + ":" + sid + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		ctx := c.Request.Context()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-ActionRateLimit-Error", "redis-error")
			if !fallback.Allow(action + ":" + sid) {
				blockAction(c, action, window)
				return
			}
			c.Next()
			return
		}
		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		c.Header("X-ActionRateLimit-Limit", strconv.Itoa(maxActions))
		c.Header("X-ActionRateLimit-Remaining", strconv.FormatInt(max(0, int64(maxActions)-val), 10))

		if val > int64(maxActions) {
			blockAction(c, action, window)
			return
		}

		RLRequests.WithLabelValues("action:" + action).Inc()
		c.Next()
	}
}

func blockAction(c *gin.Context, action string, window time.Duration) {
	RLBlocked.WithLabelValues("action:" + action).Inc()
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "too many " + action + " requests",
		"retry_after": int(window.Seconds()),
	})
}
