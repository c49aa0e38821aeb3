package model

import "time"

// GroupModel 用户组
type GroupModel struct {
	Name      string    `gorm:"primaryKey;type:varchar(128)"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (GroupModel) TableName() string {
	return "groups"
}

// GroupMemberModel 组的直接成员
type GroupMemberModel struct {
	GroupName string `gorm:"primaryKey;type:varchar(128)"`
	PersonID  string `gorm:"primaryKey;type:varchar(64);index"`
}

// TableName 指定表名
func (GroupMemberModel) TableName() string {
	return "group_members"
}

// GroupChildModel 组嵌套关系: Child 的成员同时是 Parent 的成员
type GroupChildModel struct {
	ParentName string `gorm:"primaryKey;type:varchar(128)"`
	ChildName  string `gorm:"primaryKey;type:varchar(128);index"`
}

// TableName 指定表名
func (GroupChildModel) TableName() string {
	return "group_children"
}
