package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/workflow"
	"gorm.io/gorm"
)

// 元数据字段
const (
	FieldTitle         = "dc.title"
	FieldProvenance    = "dc.description.provenance"
	FieldIdentifierURI = "dc.identifier.uri"
	FieldAccessioned   = "dc.date.accessioned"
)

// ErrItemNotFound 内容条目不存在
var ErrItemNotFound = errors.New("item not found")

// DBContentStore 基于数据库的内容存储
// WithTx 返回的副本与工作流事务共享连接,保证状态转换与归档一起提交或回滚
type DBContentStore struct {
	db           *gorm.DB
	handlePrefix string
}

// NewDBContentStore 创建内容存储
func NewDBContentStore(db *gorm.DB, handlePrefix string) *DBContentStore {
	if handlePrefix == "" {
		handlePrefix = "123456789"
	}
	return &DBContentStore{db: db, handlePrefix: handlePrefix}
}

// WithTx 返回绑定到事务的内容存储
func (s *DBContentStore) WithTx(tx *gorm.DB) workflow.ContentStore {
	return &DBContentStore{db: tx, handlePrefix: s.handlePrefix}
}

// NewSubmission 新建提交的参数
type NewSubmission struct {
	CollectionID    string
	SubmitterID     string
	Title           string
	MultipleTitles  bool
	PublishedBefore bool
	MultipleFiles   bool
}

// CreateWorkspaceItem 创建条目及其工作区提交
func (s *DBContentStore) CreateWorkspaceItem(ctx context.Context, in NewSubmission) (*workflow.Submission, error) {
	if in.CollectionID == "" || in.SubmitterID == "" {
		return nil, errors.New("collection and submitter are required")
	}
	now := time.Now()
	item := &model.ItemModel{
		ID:           uuid.New().String(),
		SubmitterID:  in.SubmitterID,
		CollectionID: in.CollectionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ws := &model.WorkspaceItemModel{
		ID:              uuid.New().String(),
		ItemID:          item.ID,
		CollectionID:    in.CollectionID,
		SubmitterID:     in.SubmitterID,
		MultipleTitles:  in.MultipleTitles,
		PublishedBefore: in.PublishedBefore,
		MultipleFiles:   in.MultipleFiles,
		CreatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}
		if err := tx.Create(ws).Error; err != nil {
			return fmt.Errorf("failed to create workspace item: %w", err)
		}
		if in.Title != "" {
			return addMetadata(tx, item.ID, FieldTitle, in.Title)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toSubmission(ws), nil
}

// GetWorkspaceItem 获取工作区提交
func (s *DBContentStore) GetWorkspaceItem(ctx context.Context, workspaceItemID string) (*workflow.Submission, error) {
	var ws model.WorkspaceItemModel
	err := s.db.WithContext(ctx).Where("id = ?", workspaceItemID).First(&ws).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.Wrap(workflow.ErrWorkspaceItemNotFound, "%s", workspaceItemID)
	}
	if err != nil {
		return nil, err
	}
	return toSubmission(&ws), nil
}

// DeleteWorkspaceItem 删除工作区提交,条目本身保留
func (s *DBContentStore) DeleteWorkspaceItem(ctx context.Context, workspaceItemID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", workspaceItemID).Delete(&model.WorkspaceItemModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return workflow.Wrap(workflow.ErrWorkspaceItemNotFound, "%s", workspaceItemID)
	}
	return nil
}

// CreateArchivedCopy 将条目归档并分配 handle
func (s *DBContentStore) CreateArchivedCopy(ctx context.Context, itemID string) (string, error) {
	db := s.db.WithContext(ctx)
	var item model.ItemModel
	if err := db.Where("id = ?", itemID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return "", err
	}
	if item.InArchive {
		return item.Handle, nil
	}

	now := time.Now().UTC()
	handle := s.handlePrefix + "/" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	err := db.Model(&model.ItemModel{}).
		Where("id = ?", itemID).
		Updates(map[string]interface{}{
			"in_archive": true,
			"withdrawn":  false,
			"handle":     handle,
			"updated_at": now,
		}).Error
	if err != nil {
		return "", err
	}
	if err := addMetadata(db, itemID, FieldAccessioned, now.Format(time.RFC3339)); err != nil {
		return "", err
	}
	if err := addMetadata(db, itemID, FieldIdentifierURI, "hdl:"+handle); err != nil {
		return "", err
	}
	return handle, nil
}

// ReturnToWorkspace 将提交退回提交人工作区,返回新的工作区提交 ID
func (s *DBContentStore) ReturnToWorkspace(ctx context.Context, sub *workflow.Submission, reason string) (string, error) {
	ws := &model.WorkspaceItemModel{
		ID:              uuid.New().String(),
		ItemID:          sub.ItemID,
		CollectionID:    sub.CollectionID,
		SubmitterID:     sub.SubmitterID,
		MultipleTitles:  sub.MultipleTitles,
		PublishedBefore: sub.PublishedBefore,
		MultipleFiles:   sub.MultipleFiles,
		Note:            reason,
		CreatedAt:       time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(ws).Error; err != nil {
		return "", fmt.Errorf("failed to recreate workspace item: %w", err)
	}
	return ws.ID, nil
}

// AppendProvenance 追加一条来源记录
func (s *DBContentStore) AppendProvenance(ctx context.Context, itemID string, text string) error {
	return addMetadata(s.db.WithContext(ctx), itemID, FieldProvenance, text)
}

// UpdateMetadata 应用审批人的元数据修改
func (s *DBContentStore) UpdateMetadata(ctx context.Context, itemID string, edits []workflow.MetadataEdit) error {
	db := s.db.WithContext(ctx)
	for _, edit := range edits {
		if edit.Field == "" {
			return errors.New("metadata field is required")
		}
		if edit.Replace {
			err := db.Where("item_id = ? AND field = ?", itemID, edit.Field).
				Delete(&model.MetadataValueModel{}).Error
			if err != nil {
				return err
			}
		}
		if err := addMetadata(db, itemID, edit.Field, edit.Value); err != nil {
			return err
		}
	}
	return nil
}

// Metadata 返回条目某字段的全部值,按位置排序
func (s *DBContentStore) Metadata(ctx context.Context, itemID string, field string) ([]string, error) {
	var values []string
	err := s.db.WithContext(ctx).
		Model(&model.MetadataValueModel{}).
		Where("item_id = ? AND field = ?", itemID, field).
		Order("place ASC").
		Pluck("value", &values).Error
	return values, err
}

// GetItem 获取内容条目
func (s *DBContentStore) GetItem(ctx context.Context, itemID string) (*model.ItemModel, error) {
	var item model.ItemModel
	err := s.db.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindWorkspaceItemsByItem 条目当前的工作区提交
func (s *DBContentStore) FindWorkspaceItemsByItem(ctx context.Context, itemID string) ([]*model.WorkspaceItemModel, error) {
	var items []*model.WorkspaceItemModel
	err := s.db.WithContext(ctx).Where("item_id = ?", itemID).Find(&items).Error
	return items, err
}

func addMetadata(db *gorm.DB, itemID, field, value string) error {
	var place int
	err := db.Model(&model.MetadataValueModel{}).
		Where("item_id = ? AND field = ?", itemID, field).
		Select("COALESCE(MAX(place), 0)").
		Scan(&place).Error
	if err != nil {
		return err
	}
	return db.Create(&model.MetadataValueModel{
		ItemID:    itemID,
		Field:     field,
		Value:     value,
		Place:     place + 1,
		CreatedAt: time.Now(),
	}).Error
}

func toSubmission(ws *model.WorkspaceItemModel) *workflow.Submission {
	return &workflow.Submission{
		WorkspaceItemID: ws.ID,
		ItemID:          ws.ItemID,
		CollectionID:    ws.CollectionID,
		SubmitterID:     ws.SubmitterID,
		MultipleTitles:  ws.MultipleTitles,
		PublishedBefore: ws.PublishedBefore,
		MultipleFiles:   ws.MultipleFiles,
	}
}
