package service_test

import (
	"context"
	"testing"

	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/service"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatisticsService 测试状态分布与审批结果统计
func TestStatisticsService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stats := service.NewStatisticsService(f.db)

	approved := f.submit(t, "C").Item.ID
	rejected := f.submit(t, "M").Item.ID
	f.submit(t, "M")

	_, err := f.svc.Claim(ctx, approved, "alice")
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, service.AdvanceRequest{WorkflowItemID: approved, Person: "alice", Outcome: workflow.OutcomeApprove})
	require.NoError(t, err)

	_, err = f.svc.Claim(ctx, rejected, "bob")
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, service.AdvanceRequest{WorkflowItemID: rejected, Person: "bob", Outcome: workflow.OutcomeReject, Reason: "scope"})
	require.NoError(t, err)

	byState, err := stats.ItemsByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pool:reviewstep": 1}, byState)

	outcomes, err := stats.GetOutcomeStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), outcomes.Approved)
	assert.Equal(t, int64(1), outcomes.Rejected)
	assert.InDelta(t, 0.5, outcomes.ApprovalRate, 0.0001)
}

// TestAuditLogService_RequestID 测试审计日志记录请求 ID
func TestAuditLogService_RequestID(t *testing.T) {
	f := newFixture(t)
	repo := repository.NewAuditLogRepository(f.db)
	audit := service.NewAuditLogService(repo)

	ctx := service.WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", service.RequestIDFrom(ctx))
	assert.Equal(t, "", service.RequestIDFrom(context.Background()))

	require.NoError(t, audit.RecordAction(ctx, "alice", service.ActionClaim, "workflow_item", "wf-1", map[string]string{"step": "reviewstep"}))

	logs, err := repo.FindByResource(ctx, "workflow_item", "wf-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "req-42", logs[0].RequestID)
	assert.JSONEq(t, `{"step":"reviewstep"}`, string(logs[0].Details))
}
