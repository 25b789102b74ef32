package middleware

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-electives-api/pkg/errors"
	"github.com/noah-isme/sma-electives-api/pkg/ratelimit"
	"github.com/noah-isme/sma-electives-api/pkg/response"
)

// Limiter counts hits per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RateLimit throttles requests per client IP. Limiter failures let the
// request through.
func RateLimit(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		res, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
