package model

import (
	"errors"
	"time"
)

// WorkflowItemModel 工作流条目数据模型
// 条目归档或退回工作区时删除
type WorkflowItemModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)"`
	ItemID          string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	CollectionID    string    `gorm:"type:varchar(64);not null;index"`
	SubmitterID     string    `gorm:"type:varchar(64);not null"`
	WorkflowName    string    `gorm:"type:varchar(64);not null"`
	State           string    `gorm:"type:varchar(128);not null;index"` // pool:<step> / claimed:<step>
	Owner           string    `gorm:"type:varchar(64);not null;default:'';index"`
	MultipleTitles  bool      `gorm:"not null;default:false"`
	PublishedBefore bool      `gorm:"not null;default:false"`
	MultipleFiles   bool      `gorm:"not null;default:false"`
	Seq             int64     `gorm:"not null;index"` // 提交顺序,任务池按此排序
	CreatedAt       time.Time `gorm:"not null;index"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName 指定表名
func (WorkflowItemModel) TableName() string {
	return "workflow_items"
}

// Validate 验证工作流条目模型
func (m *WorkflowItemModel) Validate() error {
	if m.ID == "" {
		return errors.New("workflow item ID is required")
	}
	if m.ItemID == "" {
		return errors.New("item ID is required")
	}
	if m.CollectionID == "" {
		return errors.New("collection ID is required")
	}
	if m.State == "" {
		return errors.New("workflow state is required")
	}
	return nil
}
