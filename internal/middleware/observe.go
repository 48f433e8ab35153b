package middleware

import (
	"fmt"
	"math"
	"time"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func retryAfterSeconds(err error) string {
	if appErr, ok := apperr.As(err); ok && appErr.RetryAfter > 0 {
		return fmt.Sprintf("%d", int(math.Ceil(appErr.RetryAfter.Seconds())))
	}
	return "1"
}

// ObserveMiddleware logs failed requests and feeds the latency histogram.
// Route templates rather than raw paths keep label cardinality bounded.
func ObserveMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := fmt.Sprintf("%d", c.Writer.Status())
		elapsed := time.Since(began)
		metrics.ObserveHTTP(route, code, elapsed)

		if c.Writer.Status() >= 500 {
			logger.Warn("request failed",
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("elapsed", elapsed))
		}
	}
}
