package model

import (
	"errors"
	"time"
)

// StateHistoryModel 工作流状态变更历史
// 与状态变更在同一事务中写入,工作流条目删除后仍然保留
type StateHistoryModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	WorkflowItemID string    `gorm:"type:varchar(64);not null;index"`
	ItemID         string    `gorm:"type:varchar(64);not null;index"`
	FromState      string    `gorm:"type:varchar(128)"`
	ToState        string    `gorm:"type:varchar(128);not null"`
	Action         string    `gorm:"type:varchar(32);not null;index"` // start/claim/unclaim/approve/reject/approve_with_edit/abort
	Reason         string    `gorm:"type:text"`
	Operator       string    `gorm:"type:varchar(64);not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (StateHistoryModel) TableName() string {
	return "state_history"
}

// Validate 验证状态历史模型
func (shm *StateHistoryModel) Validate() error {
	if shm.ID == "" {
		return errors.New("history ID is required")
	}
	if shm.WorkflowItemID == "" {
		return errors.New("workflow item ID is required")
	}
	if shm.ToState == "" {
		return errors.New("to state is required")
	}
	if shm.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
