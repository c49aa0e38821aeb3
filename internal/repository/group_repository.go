package repository

import (
	"context"
	"time"

	"github.com/mautops/submission-workflow/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupRepository 用户组仓储接口
type GroupRepository interface {
	Create(ctx context.Context, name string) error
	AddMember(ctx context.Context, group string, person string) error
	RemoveMember(ctx context.Context, group string, person string) error
	AddChild(ctx context.Context, parent string, child string) error
	DirectMembers(ctx context.Context, group string) ([]string, error)
	IsDirectMember(ctx context.Context, group string, person string) (bool, error)
	Children(ctx context.Context, group string) ([]string, error)
}

// groupRepository 用户组仓储实现
type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建用户组仓储
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Create 创建用户组(已存在时忽略)
func (r *groupRepository) Create(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.GroupModel{Name: name, CreatedAt: time.Now()}).Error
}

// AddMember 添加直接成员
func (r *groupRepository) AddMember(ctx context.Context, group string, person string) error {
	if err := r.Create(ctx, group); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.GroupMemberModel{GroupName: group, PersonID: person}).Error
}

// RemoveMember 移除直接成员
func (r *groupRepository) RemoveMember(ctx context.Context, group string, person string) error {
	return r.db.WithContext(ctx).
		Where("group_name = ? AND person_id = ?", group, person).
		Delete(&model.GroupMemberModel{}).Error
}

// AddChild 添加子组
func (r *groupRepository) AddChild(ctx context.Context, parent string, child string) error {
	if err := r.Create(ctx, parent); err != nil {
		return err
	}
	if err := r.Create(ctx, child); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.GroupChildModel{ParentName: parent, ChildName: child}).Error
}

// DirectMembers 组的直接成员
func (r *groupRepository) DirectMembers(ctx context.Context, group string) ([]string, error) {
	var members []string
	err := r.db.WithContext(ctx).
		Model(&model.GroupMemberModel{}).
		Where("group_name = ?", group).
		Order("person_id ASC").
		Pluck("person_id", &members).Error
	return members, err
}

// IsDirectMember 是否为直接成员
func (r *groupRepository) IsDirectMember(ctx context.Context, group string, person string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.GroupMemberModel{}).
		Where("group_name = ? AND person_id = ?", group, person).
		Count(&count).Error
	return count > 0, err
}

// Children 直接子组
func (r *groupRepository) Children(ctx context.Context, group string) ([]string, error) {
	var children []string
	err := r.db.WithContext(ctx).
		Model(&model.GroupChildModel{}).
		Where("parent_name = ?", group).
		Order("child_name ASC").
		Pluck("child_name", &children).Error
	return children, err
}
