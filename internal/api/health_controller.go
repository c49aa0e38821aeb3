package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/submission-workflow/internal/database"
	"gorm.io/gorm"
)

// HealthChecker 外部依赖的健康检查
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// HealthController 健康检查控制器
type HealthController struct {
	db       *gorm.DB
	checkers map[string]HealthChecker
}

// NewHealthController 创建健康检查控制器
// checkers 为附加依赖,如 openfga
func NewHealthController(db *gorm.DB, checkers map[string]HealthChecker) *HealthController {
	return &HealthController{
		db:       db,
		checkers: checkers,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	if c.db == nil {
		checks["database"] = "not configured"
	} else if database.CheckHealth(ctx.Request.Context(), c.db) {
		checks["database"] = "healthy"
	} else {
		status = "unhealthy"
		checks["database"] = "unhealthy"
	}

	for name, checker := range c.checkers {
		if checker.CheckHealth(ctx.Request.Context()) {
			checks[name] = "healthy"
		} else {
			status = "unhealthy"
			checks[name] = "unhealthy"
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
