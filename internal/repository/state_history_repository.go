package repository

import (
	"context"

	"github.com/mautops/submission-workflow/internal/model"
	"gorm.io/gorm"
)

// StateHistoryRepository 状态历史仓储接口
type StateHistoryRepository interface {
	WithTx(tx *gorm.DB) StateHistoryRepository
	Save(ctx context.Context, history *model.StateHistoryModel) error
	FindByWorkflowItemID(ctx context.Context, workflowItemID string) ([]*model.StateHistoryModel, error)
	FindByItemID(ctx context.Context, itemID string) ([]*model.StateHistoryModel, error)
	CountByAction(ctx context.Context) (map[string]int64, error)
}

// stateHistoryRepository 状态历史仓储实现
type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository 创建状态历史仓储
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *stateHistoryRepository) WithTx(tx *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: tx}
}

// Save 保存状态历史
func (r *stateHistoryRepository) Save(ctx context.Context, history *model.StateHistoryModel) error {
	if err := history.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(history).Error
}

// FindByWorkflowItemID 根据工作流条目 ID 查找状态历史
func (r *stateHistoryRepository) FindByWorkflowItemID(ctx context.Context, workflowItemID string) ([]*model.StateHistoryModel, error) {
	var histories []*model.StateHistoryModel
	err := r.db.WithContext(ctx).Where("workflow_item_id = ?", workflowItemID).Order("created_at ASC").Find(&histories).Error
	return histories, err
}

// FindByItemID 根据内容条目 ID 查找状态历史(跨多次提交)
func (r *stateHistoryRepository) FindByItemID(ctx context.Context, itemID string) ([]*model.StateHistoryModel, error) {
	var histories []*model.StateHistoryModel
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).Order("created_at ASC").Find(&histories).Error
	return histories, err
}

// CountByAction 按动作统计
func (r *stateHistoryRepository) CountByAction(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Action string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.StateHistoryModel{}).
		Select("action, COUNT(*) as count").
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Action] = row.Count
	}
	return counts, nil
}
