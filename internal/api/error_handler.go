package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/submission-workflow/internal/workflow"
)

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		kind := string(workflow.KindOf(err))
		if kind == "" {
			kind = "internal"
		}
		Error(c, StatusFor(err), kind, err.Error())
	}
}

// StatusFor 工作流错误类别对应的 HTTP 状态码
func StatusFor(err error) int {
	switch workflow.KindOf(err) {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindAuthorization:
		return http.StatusForbidden
	case workflow.KindConcurrency:
		return http.StatusConflict
	case workflow.KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
