package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"lighthouse.app/cityintel/common/logger"
)

// Recovery turns a handler panic into a 500 JSON response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{Component: "lighthouse.http"})
			slog.ErrorContext(ctx, "panic recovered",
				"error", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()))

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}()
		c.Next()
	}
}
