package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/workflow"
	"gorm.io/gorm"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// WorkflowItemRepository 工作流条目仓储接口
type WorkflowItemRepository interface {
	WithTx(tx *gorm.DB) WorkflowItemRepository
	Create(ctx context.Context, item *model.WorkflowItemModel) error
	FindByID(ctx context.Context, id string) (*model.WorkflowItemModel, error)
	FindAll(ctx context.Context) ([]*model.WorkflowItemModel, error)
	FindPooled(ctx context.Context) ([]*model.WorkflowItemModel, error)
	FindByOwner(ctx context.Context, owner string) ([]*model.WorkflowItemModel, error)
	CompareAndSwap(ctx context.Context, id string, expect StateOwner, next StateOwner) (bool, error)
	Delete(ctx context.Context, id string) error
	CountByState(ctx context.Context) (map[string]int64, error)
}

// StateOwner 状态与认领人,用于比较并交换
type StateOwner struct {
	State string
	Owner string
}

// workflowItemRepository 工作流条目仓储实现
type workflowItemRepository struct {
	db *gorm.DB
}

// NewWorkflowItemRepository 创建工作流条目仓储
func NewWorkflowItemRepository(db *gorm.DB) WorkflowItemRepository {
	return &workflowItemRepository{db: db}
}

// WithTx 返回绑定到事务的仓储
func (r *workflowItemRepository) WithTx(tx *gorm.DB) WorkflowItemRepository {
	return &workflowItemRepository{db: tx}
}

// Create 创建工作流条目
func (r *workflowItemRepository) Create(ctx context.Context, item *model.WorkflowItemModel) error {
	if err := item.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID 根据 ID 查找
func (r *workflowItemRepository) FindByID(ctx context.Context, id string) (*model.WorkflowItemModel, error) {
	var item model.WorkflowItemModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindAll 查找全部工作流条目,按提交顺序
func (r *workflowItemRepository) FindAll(ctx context.Context) ([]*model.WorkflowItemModel, error) {
	var items []*model.WorkflowItemModel
	err := r.db.WithContext(ctx).Order("seq ASC, id ASC").Find(&items).Error
	return items, err
}

// FindPooled 查找处于任务池状态的条目,按提交顺序(先提交先出)
func (r *workflowItemRepository) FindPooled(ctx context.Context) ([]*model.WorkflowItemModel, error) {
	var items []*model.WorkflowItemModel
	err := r.db.WithContext(ctx).
		Where("state LIKE ? AND owner = ?", workflow.PoolPrefix+"%", "").
		Order("seq ASC, id ASC").
		Find(&items).Error
	return items, err
}

// FindByOwner 查找某人认领的条目
func (r *workflowItemRepository) FindByOwner(ctx context.Context, owner string) ([]*model.WorkflowItemModel, error) {
	var items []*model.WorkflowItemModel
	err := r.db.WithContext(ctx).
		Where("owner = ? AND state LIKE ?", owner, workflow.ClaimedPrefix+"%").
		Order("seq ASC, id ASC").
		Find(&items).Error
	return items, err
}

// CompareAndSwap 仅当当前状态与认领人都等于 expect 时更新为 next
// 返回 false 表示条件不满足(被并发修改)
func (r *workflowItemRepository) CompareAndSwap(ctx context.Context, id string, expect StateOwner, next StateOwner) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.WorkflowItemModel{}).
		Where("id = ? AND state = ? AND owner = ?", id, expect.State, expect.Owner).
		Updates(map[string]interface{}{
			"state":      next.State,
			"owner":      next.Owner,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete 删除工作流条目及其已认领任务
func (r *workflowItemRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("workflow_item_id = ?", id).Delete(&model.TaskListItemModel{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ?", id).Delete(&model.WorkflowItemModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByState 按状态统计条目数
func (r *workflowItemRepository) CountByState(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.WorkflowItemModel{}).
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}
