package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-practice/internal/response"
)

// RateLimiter is a per-IP fixed window counter kept in Redis, so every
// instance behind the load balancer shares the same budget.
type RateLimiter struct {
	rdb    redis.Cmdable
	log    zerolog.Logger
	key    func(ip string) string
	rate   int64         // Requests per window
	window time.Duration // Window length
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
// key maps a client IP to its counter key.
func NewRateLimiter(rdb redis.Cmdable, log zerolog.Logger, key func(ip string) string, rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		log:    log.With().Str("component", "rate_limiter").Logger(),
		key:    key,
		rate:   int64(rate),
		window: window,
	}
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := rl.key(c.ClientIP())

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			err = rl.rdb.Expire(ctx, key, rl.window).Err()
		}
		if err != nil {
			// Fail open; login still requires valid credentials.
			rl.log.Warn().Err(err).Msg("Rate limit counter unavailable")
			c.Next()
			return
		}

		if count > rl.rate {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}
