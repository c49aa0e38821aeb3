package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/submission-workflow/internal/service"
)

// StatsController 工作流运行状态(只读)
type StatsController struct {
	stats    service.StatisticsService
	workflow service.WorkflowService
}

// NewStatsController 创建运行状态控制器
func NewStatsController(stats service.StatisticsService, workflow service.WorkflowService) *StatsController {
	return &StatsController{stats: stats, workflow: workflow}
}

// Stats 按状态统计在途条目,以及历史审批结果
func (c *StatsController) Stats(ctx *gin.Context) {
	byState, err := c.stats.ItemsByState(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	outcomes, err := c.stats.GetOutcomeStatistics(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, gin.H{
		"items_by_state": byState,
		"outcomes":       outcomes,
	})
}

// orphanView 不一致条目的输出格式
type orphanView struct {
	WorkflowItemID string `json:"workflow_item_id"`
	ItemID         string `json:"item_id"`
	CollectionID   string `json:"collection_id"`
	State          string `json:"state"`
	Reason         string `json:"reason"`
}

// Verify 列出状态与工作流配置不一致的条目
func (c *StatsController) Verify(ctx *gin.Context) {
	orphans, err := c.workflow.VerifyStates(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	views := make([]orphanView, 0, len(orphans))
	for _, o := range orphans {
		views = append(views, orphanView{
			WorkflowItemID: o.Item.ID,
			ItemID:         o.Item.ItemID,
			CollectionID:   o.Item.CollectionID,
			State:          o.Item.State,
			Reason:         o.Reason,
		})
	}
	Success(ctx, views)
}
