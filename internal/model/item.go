package model

import "time"

// ItemModel 内容条目
type ItemModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	SubmitterID  string    `gorm:"type:varchar(64);not null;index"`
	CollectionID string    `gorm:"type:varchar(64);not null;index"`
	InArchive    bool      `gorm:"not null;default:false"`
	Withdrawn    bool      `gorm:"not null;default:false"`
	Handle       string    `gorm:"type:varchar(128)"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ItemModel) TableName() string {
	return "items"
}

// MetadataValueModel 条目元数据值
type MetadataValueModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ItemID    string    `gorm:"type:varchar(64);not null;index:idx_metadata_item_field"`
	Field     string    `gorm:"type:varchar(128);not null;index:idx_metadata_item_field"` // 如 dc.description.provenance
	Value     string    `gorm:"type:text"`
	Place     int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (MetadataValueModel) TableName() string {
	return "metadata_values"
}

// WorkspaceItemModel 提交人工作区中的提交
type WorkspaceItemModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)"`
	ItemID          string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	CollectionID    string    `gorm:"type:varchar(64);not null"`
	SubmitterID     string    `gorm:"type:varchar(64);not null;index"`
	MultipleTitles  bool      `gorm:"not null;default:false"`
	PublishedBefore bool      `gorm:"not null;default:false"`
	MultipleFiles   bool      `gorm:"not null;default:false"`
	Note            string    `gorm:"type:text"` // 退回原因
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName 指定表名
func (WorkspaceItemModel) TableName() string {
	return "workspace_items"
}
