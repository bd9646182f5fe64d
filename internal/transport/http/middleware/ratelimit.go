package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/metrics"
)

// RateLimit applies one limiter class to a route group. The principal key
// is the authenticated employee when available, otherwise the client IP,
// so pre-auth endpoints (login) are limited per source address.
func RateLimit(limiter *auth.RateLimiter, class string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := Actor(c).ID
		if key == "" {
			key = c.ClientIP()
		}
		if !limiter.Allow(key) {
			metrics.RateLimitedTotal.WithLabelValues(class).Inc()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, retry later",
			})
			return
		}
		c.Next()
	}
}
