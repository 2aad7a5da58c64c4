package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/vitalflow/pkg/logger"
)

// Logger logs one line per request. Client errors log at warn, server errors
// at error with the first handler error attached.
func Logger(log *logger.Logger) gin.HandlerFunc {
	log = log.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
		}

		switch {
		case status >= 500:
			log.Error(c.Errors.Last(), "server error", fields...)
		case status >= 400:
			if last := c.Errors.Last(); last != nil {
				fields = append(fields, "error", last.Error())
			}
			log.Warn("client error", fields...)
		default:
			log.Info("request processed", fields...)
		}
	}
}
