package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a per-IP sliding-window limit on maxRequests per
// minute using Redis sorted sets. A nil rdb disables the limiter
// entirely (no Redis configured).
func RateLimiter(rdb *redis.Client, maxRequests int) gin.HandlerFunc {
	window := time.Minute

	return func(c *gin.Context) {
		if rdb == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		key := fmt.Sprintf("coursegrader:ratelimit:%s", ip)
		now := time.Now()
		nowUnixNano := float64(now.UnixNano())
		windowStart := float64(now.Add(-window).UnixNano())

		ctx := context.Background()
		pipe := rdb.Pipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", windowStart))
		countCmd := pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: nowUnixNano, Member: nowUnixNano})
		pipe.Expire(ctx, key, window+time.Second)

		if _, err := pipe.Exec(ctx); err != nil {
			// Redis is down: fail open rather than block webhook delivery.
			c.Next()
			return
		}

		count := countCmd.Val()
		if count >= int64(maxRequests) {
			rdb.ZRemRangeByScore(ctx, key, fmt.Sprintf("%f", nowUnixNano), fmt.Sprintf("%f", nowUnixNano))
			c.Header("Retry-After", "60")
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}

		c.Next()
	}
}
