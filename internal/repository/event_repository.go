package repository

import (
	"context"

	"github.com/mautops/submission-workflow/internal/model"
	"gorm.io/gorm"
)

// EventRepository 通知事件仓储接口
type EventRepository interface {
	Save(ctx context.Context, event *model.EventModel) error
	FindByID(ctx context.Context, id string) (*model.EventModel, error)
	FindByItemID(ctx context.Context, itemID string) ([]*model.EventModel, error)
	FindPending(ctx context.Context) ([]*model.EventModel, error)
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(ctx context.Context, event *model.EventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(event).Error
}

// FindByID 根据 ID 查找事件
func (r *eventRepository) FindByID(ctx context.Context, id string) (*model.EventModel, error) {
	var event model.EventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// FindByItemID 根据内容条目 ID 查找事件
func (r *eventRepository) FindByItemID(ctx context.Context, itemID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.WithContext(ctx).Where("item_id = ?", itemID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待处理的事件
func (r *eventRepository) FindPending(ctx context.Context) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.WithContext(ctx).Where("status = ?", model.EventStatusPending).Order("created_at ASC").Find(&events).Error
	return events, err
}
