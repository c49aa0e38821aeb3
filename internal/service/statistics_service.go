package service

import (
	"context"
	"fmt"

	"github.com/mautops/submission-workflow/internal/repository"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	ItemsByState(ctx context.Context) (map[string]int64, error)
	GetOutcomeStatistics(ctx context.Context) (*OutcomeStatistics, error)
}

// OutcomeStatistics 审批结果统计
type OutcomeStatistics struct {
	Approved         int64
	ApprovedWithEdit int64
	Rejected         int64
	Aborted          int64
	ApprovalRate     float64
}

// statisticsService 统计服务实现
type statisticsService struct {
	items   repository.WorkflowItemRepository
	history repository.StateHistoryRepository
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{
		items:   repository.NewWorkflowItemRepository(db),
		history: repository.NewStateHistoryRepository(db),
	}
}

// ItemsByState 按状态统计在途工作流条目
func (s *statisticsService) ItemsByState(ctx context.Context) (map[string]int64, error) {
	counts, err := s.items.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflow items by state: %w", err)
	}
	return counts, nil
}

// GetOutcomeStatistics 统计历史上的审批结果
func (s *statisticsService) GetOutcomeStatistics(ctx context.Context) (*OutcomeStatistics, error) {
	counts, err := s.history.CountByAction(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflow outcomes: %w", err)
	}

	stats := &OutcomeStatistics{
		Approved:         counts[ActionApprove],
		ApprovedWithEdit: counts[ActionApproveWithEdit],
		Rejected:         counts[ActionReject],
		Aborted:          counts[ActionAbort],
	}
	total := stats.Approved + stats.ApprovedWithEdit + stats.Rejected
	if total > 0 {
		stats.ApprovalRate = float64(stats.Approved+stats.ApprovedWithEdit) / float64(total)
	}
	return stats, nil
}
