package model

import (
	"errors"
	"time"
)

// EventModel 通知事件(发件箱)
type EventModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	WorkflowItemID string    `gorm:"type:varchar(64);index"`
	ItemID         string    `gorm:"type:varchar(64);not null;index"`
	Template       string    `gorm:"type:varchar(64);not null;index"`
	RecipientType  string    `gorm:"type:varchar(16);not null"` // group/person
	Recipient      string    `gorm:"type:varchar(128);not null"`
	Data           []byte    `gorm:"type:text;not null"`                                // 序列化后的通知内容
	Status         string    `gorm:"type:varchar(32);not null;default:'pending';index"` // pending/success/failed
	RetryCount     int       `gorm:"type:int;default:0"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// 事件状态
const (
	EventStatusPending = "pending"
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
)

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.ItemID == "" {
		return errors.New("item ID is required")
	}
	if em.Template == "" {
		return errors.New("event template is required")
	}
	if em.Recipient == "" {
		return errors.New("event recipient is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
