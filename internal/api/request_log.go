package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/submission-workflow/internal/metrics"
	"github.com/sirupsen/logrus"
)

// RequestLogMiddleware 请求日志中间件
func RequestLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// 使用路由模板作为指标标签,避免基数膨胀
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()

		metrics.RecordHTTPRequest(method, path, status, latency.Seconds())

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
		})

		switch {
		case status >= 500:
			entry.Error("HTTP request")
		case status >= 400:
			entry.Warn("HTTP request")
		default:
			entry.Debug("HTTP request")
		}
	}
}
