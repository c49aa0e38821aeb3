package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/submission-workflow/internal/metrics"
	"github.com/mautops/submission-workflow/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterOptions 运维路由依赖
type RouterOptions struct {
	DB        *gorm.DB
	Checkers  map[string]HealthChecker
	Stats     service.StatisticsService
	Workflow  service.WorkflowService
	Logger    *logrus.Logger
	Tracing   *Tracing
	RateLimit float64
	Burst     int
}

// SetupRoutes 配置运维路由: 健康检查、指标、运行状态
func SetupRoutes(opts RouterOptions) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	if opts.Tracing != nil {
		router.Use(opts.Tracing.Middleware())
	}
	if opts.Logger != nil {
		router.Use(RequestLogMiddleware(opts.Logger))
	}
	router.Use(ErrorHandlerMiddleware())

	healthController := NewHealthController(opts.DB, opts.Checkers)
	router.GET("/health", healthController.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if opts.Stats != nil && opts.Workflow != nil {
		statsController := NewStatsController(opts.Stats, opts.Workflow)
		ops := router.Group("/ops", RateLimitMiddleware(opts.RateLimit, opts.Burst))
		ops.GET("/stats", statsController.Stats)
		ops.GET("/verify", statsController.Verify)
	}

	return router
}
