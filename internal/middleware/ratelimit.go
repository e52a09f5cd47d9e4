package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"orgchat-backend/internal/database"
)

// RateLimiter implements Redis-based fixed-window rate limiting
type RateLimiter struct {
	redisClient *database.RedisClient
	requests    int
	window      time.Duration
}

// NewRateLimiter creates a new rate limiter.
// requests: maximum number of requests allowed per window.
func NewRateLimiter(redisClient *database.RedisClient, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		requests:    requests,
		window:      window,
	}
}

// Middleware returns a Gin middleware for rate limiting. Authenticated
// requests are limited per user, anonymous ones per client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var identifier string
		if userID, exists := c.Get("user_id"); exists {
			identifier = fmt.Sprintf("user:%v", userID)
		} else {
			identifier = fmt.Sprintf("ip:%s", c.ClientIP())
		}

		allowed, remaining, resetTime, err := rl.checkRateLimit(c.Request.Context(), identifier)
		if err != nil {
			// Fail-open: a Redis outage must not take signaling down with it
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Rate limit exceeded",
				"limit":     rl.requests,
				"remaining": remaining,
				"reset_at":  resetTime,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// checkRateLimit counts the request against its fixed window. The window
// start is tracked in a companion key; a count left over from an earlier
// window is reset, not accumulated.
func (rl *RateLimiter) checkRateLimit(ctx context.Context, identifier string) (bool, int, int64, error) {
	if rl.redisClient.IsDegraded() {
		return false, 0, 0, fmt.Errorf("redis degraded")
	}

	key := fmt.Sprintf("ratelimit:%s", identifier)
	now := time.Now().Unix()
	windowStart := now - int64(rl.window.Seconds())

	count, err := rl.redisClient.Client.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return false, 0, 0, fmt.Errorf("failed to get rate limit count: %w", err)
	}
	if err == redis.Nil {
		count = 0
	}

	lastReset, err := rl.redisClient.Client.Get(ctx, key+":reset").Int64()
	if err != nil && err != redis.Nil {
		return false, 0, 0, fmt.Errorf("failed to get last reset time: %w", err)
	}

	if err == redis.Nil || lastReset < windowStart {
		pipe := rl.redisClient.Client.Pipeline()
		pipe.Set(ctx, key, 1, rl.window)
		pipe.Set(ctx, key+":reset", now, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, 0, 0, fmt.Errorf("failed to reset rate limit: %w", err)
		}
		count = 1
		lastReset = now
	} else {
		pipe := rl.redisClient.Client.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, 0, 0, fmt.Errorf("failed to increment rate limit: %w", err)
		}
		count++
	}

	remaining := rl.requests - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= rl.requests, remaining, lastReset + int64(rl.window.Seconds()), nil
}
