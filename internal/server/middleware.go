package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	achievementdomain "github.com/smallbiznis/actionboard/internal/achievement/domain"
	"github.com/smallbiznis/actionboard/internal/observability/logger"
	"github.com/smallbiznis/actionboard/pkg/telemetry"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

// UserRequired reads the user id forwarded by the gateway. Authentication
// itself happens upstream.
func UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(logger.UserIDHeader))
		if userID == "" {
			AbortWithError(c, achievementdomain.ErrUnauthenticated)
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(contextUserIDKey)
}

// SubmissionRateLimit throttles achievement submissions per user.
func (s *Server) SubmissionRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.submitLimiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.submitLimiter.Allow(ctx, userIDFrom(c))
		if err != nil {
			// Fail open; the submission lock still guards the write path.
			logger.FromContext(ctx).Warn("submission rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// APIMetrics records request counts and latency per route.
func APIMetrics(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "/metrics" {
			return
		}
		metrics.ObserveAPIRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
