package repository

import (
	"context"
	"errors"

	"github.com/mautops/submission-workflow/internal/model"
	"gorm.io/gorm"
)

// TaskListItemRepository 已认领任务仓储接口
type TaskListItemRepository interface {
	WithTx(tx *gorm.DB) TaskListItemRepository
	Create(ctx context.Context, task *model.TaskListItemModel) error
	FindByWorkflowItemID(ctx context.Context, workflowItemID string) (*model.TaskListItemModel, error)
	FindByOwner(ctx context.Context, owner string) ([]*model.TaskListItemModel, error)
	DeleteByWorkflowItemID(ctx context.Context, workflowItemID string) (int64, error)
}

// taskListItemRepository 已认领任务仓储实现
type taskListItemRepository struct {
	db *gorm.DB
}

// NewTaskListItemRepository 创建已认领任务仓储
func NewTaskListItemRepository(db *gorm.DB) TaskListItemRepository {
	return &taskListItemRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *taskListItemRepository) WithTx(tx *gorm.DB) TaskListItemRepository {
	return &taskListItemRepository{db: tx}
}

// Create 创建已认领任务,同一工作流条目重复创建会违反唯一索引
func (r *taskListItemRepository) Create(ctx context.Context, task *model.TaskListItemModel) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByWorkflowItemID 查找条目的已认领任务
func (r *taskListItemRepository) FindByWorkflowItemID(ctx context.Context, workflowItemID string) (*model.TaskListItemModel, error) {
	var task model.TaskListItemModel
	err := r.db.WithContext(ctx).Where("workflow_item_id = ?", workflowItemID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByOwner 查找某人的已认领任务
func (r *taskListItemRepository) FindByOwner(ctx context.Context, owner string) ([]*model.TaskListItemModel, error) {
	var tasks []*model.TaskListItemModel
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// DeleteByWorkflowItemID 删除条目的已认领任务,返回删除行数
func (r *taskListItemRepository) DeleteByWorkflowItemID(ctx context.Context, workflowItemID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("workflow_item_id = ?", workflowItemID).Delete(&model.TaskListItemModel{})
	return result.RowsAffected, result.Error
}
