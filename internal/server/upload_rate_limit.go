package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taxmate/internal/observability/logger"
	"go.uber.org/zap"
)

// UploadRateLimit throttles upload endpoints per user. A nil limiter lets
// every request through.
func (s *Server) UploadRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.uploadLimiter == nil {
			c.Next()
			return
		}

		userID, ok := mustUserID(c)
		if !ok {
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		decision, err := s.uploadLimiter.Allow(ctx, userID, endpoint)
		if err != nil {
			logger.FromContext(ctx).Warn("upload rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			logger.FromContext(ctx).Warn("upload rate limit exceeded", zap.String("endpoint", endpoint))
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)
			}
			retry := int(math.Ceil(decision.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
