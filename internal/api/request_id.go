package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/service"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware 为每个请求分配请求 ID,并写入响应头与请求上下文
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(service.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}
