package model

import (
	"errors"
	"time"
)

// AuditLogModel 审计日志数据模型
type AuditLogModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	Actor        string    `gorm:"type:varchar(64);not null;index"`
	Action       string    `gorm:"type:varchar(64);not null;index"` // start/claim/unclaim/advance/abort
	ResourceType string    `gorm:"type:varchar(32);not null"`       // workflow_item/workspace_item
	ResourceID   string    `gorm:"type:varchar(64);not null;index"`
	RequestID    string    `gorm:"type:varchar(64);index"`
	Details      []byte    `gorm:"type:text"` // 操作详情(JSON)
	CreatedAt    time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.ID == "" {
		return errors.New("audit log ID is required")
	}
	if alm.Actor == "" {
		return errors.New("actor is required")
	}
	if alm.Action == "" {
		return errors.New("action is required")
	}
	if alm.ResourceType == "" {
		return errors.New("resource type is required")
	}
	if alm.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	return nil
}
