package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
)

type contextKey string

// requestIDKey 上下文中请求 ID 的键
const requestIDKey contextKey = "request_id"

// WithRequestID 在上下文中附加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom 从上下文获取请求 ID
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, actor string, action string, resourceType string, resourceID string, details interface{}) error
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	actor string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    RequestIDFrom(ctx),
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	}

	return s.auditRepo.Save(ctx, auditLog)
}
