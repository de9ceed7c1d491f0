package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/ugel-puno/certificados-api/pkg/errors"
	"github.com/ugel-puno/certificados-api/pkg/response"
)

// RateLimit throttles requests per client IP using a fixed redis window. The
// public verification endpoints are its main consumer. Without redis the
// middleware is a no-op.
func RateLimit(cache *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache == nil || limit <= 0 {
			c.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), time.Now().Unix()/int64(window.Seconds()))
		count, err := cache.Incr(c.Request.Context(), key).Result()
		if err != nil {
			// Redis being down must not take the public endpoint with it.
			c.Next()
			return
		}
		if count == 1 {
			cache.Expire(c.Request.Context(), key, window)
		}
		if count > int64(limit) {
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many verification requests, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
