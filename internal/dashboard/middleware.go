package dashboard

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/pkg/logger"
)

// LoggerMiddleware logs each request and records it in m.
func LoggerMiddleware(log logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), latency)

		if raw != "" {
			path = path + "?" + raw
		}
		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", latency,
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			args = append(args, "error", errs)
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("HTTP request", args...)
		case status >= 400:
			log.Warn("HTTP request", args...)
		default:
			log.Debug("HTTP request", args...)
		}
	}
}
