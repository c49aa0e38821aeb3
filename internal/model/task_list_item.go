package model

import (
	"errors"
	"time"
)

// TaskListItemModel 已认领任务
// 每个工作流条目最多一条,唯一索引保证认领的排他性
type TaskListItemModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	WorkflowItemID string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Owner          string    `gorm:"type:varchar(64);not null;index"`
	Step           string    `gorm:"type:varchar(64);not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName 指定表名
func (TaskListItemModel) TableName() string {
	return "task_list_items"
}

// Validate 验证已认领任务模型
func (m *TaskListItemModel) Validate() error {
	if m.WorkflowItemID == "" {
		return errors.New("workflow item ID is required")
	}
	if m.Owner == "" {
		return errors.New("owner is required")
	}
	return nil
}
