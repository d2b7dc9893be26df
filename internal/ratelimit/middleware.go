package ratelimit

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/errors"
)

// IPRateLimitMiddleware creates middleware for IP-based rate limiting.
// Limiter failures are logged and the request proceeds.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}
			errors.Abort(c, errors.NewRateLimitError(result.RetryAfter))
			return
		}

		c.Next()
	}
}
