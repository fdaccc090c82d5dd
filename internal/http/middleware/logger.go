package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/common/logger"
)

// quietRoutes are polled constantly and only logged at debug level when they succeed.
var quietRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{Component: "lighthouse.http"})

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request rejected", attrs...)
		case quietRoutes[c.FullPath()]:
			slog.DebugContext(ctx, "request", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}
