package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weisyn/viewd/pkg/log"
)

// AccessLog logs one line per request at a level chosen by status code,
// grounded on the teacher's middleware.Logger but speaking through this
// project's own Logger interface instead of a raw zap handle.
func AccessLog(logger log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		l := logger.With(
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case status >= 500:
			l.Error("http request")
		case status >= 400:
			l.Warn("http request")
		default:
			l.Info("http request")
		}
	}
}
