package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mautops/submission-workflow/internal/integration"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, repo repository.EventRepository, itemID string, status string) *model.EventModel {
	var found *model.EventModel
	require.Eventually(t, func() bool {
		events, err := repo.FindByItemID(context.Background(), itemID)
		if err != nil || len(events) == 0 {
			return false
		}
		found = events[0]
		return found.Status == status
	}, 5*time.Second, 20*time.Millisecond)
	return found
}

// TestWebhookNotifier_Deliver 测试通知持久化并推送到 Webhook
func TestWebhookNotifier_Deliver(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var n integration.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err == nil {
			received.Store(n)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	repo := repository.NewEventRepository(setupTestDB(t))
	notifier := integration.NewWebhookNotifier(repo, integration.WebhookOptions{
		Endpoints: []integration.WebhookEndpoint{{URL: server.URL, AuthType: "bearer", Token: "secret"}},
	}, nil)
	defer notifier.Stop()

	err := notifier.NotifyGroup(context.Background(), "COLLECTION_C_REVIEWER", workflow.TemplateTaskPoolReady, workflow.NotificationItem{
		WorkflowItemID: "wf-1", ItemID: "item-1", CollectionID: "C", Step: "reviewstep",
	})
	require.NoError(t, err)

	evt := waitForStatus(t, repo, "item-1", model.EventStatusSuccess)
	assert.Equal(t, integration.RecipientGroup, evt.RecipientType)
	assert.Equal(t, "COLLECTION_C_REVIEWER", evt.Recipient)

	n, ok := received.Load().(integration.Notification)
	require.True(t, ok)
	assert.Equal(t, workflow.TemplateTaskPoolReady, n.Template)
	assert.Equal(t, "reviewstep", n.Item.Step)
}

// TestWebhookNotifier_RetryThenFail 测试推送失败重试后标记为失败
func TestWebhookNotifier_RetryThenFail(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	repo := repository.NewEventRepository(setupTestDB(t))
	notifier := integration.NewWebhookNotifier(repo, integration.WebhookOptions{
		Endpoints:    []integration.WebhookEndpoint{{URL: server.URL}},
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, nil)
	defer notifier.Stop()

	require.NoError(t, notifier.NotifyPerson(context.Background(), "carol", workflow.TemplateSubmissionRejected, workflow.NotificationItem{
		WorkflowItemID: "wf-1", ItemID: "item-2",
	}))

	evt := waitForStatus(t, repo, "item-2", model.EventStatusFailed)
	assert.Equal(t, 3, evt.RetryCount)
	assert.Equal(t, int32(3), calls.Load())
}

// TestWebhookNotifier_NoEndpoints 测试未配置 Webhook 时事件直接完成
func TestWebhookNotifier_NoEndpoints(t *testing.T) {
	repo := repository.NewEventRepository(setupTestDB(t))
	notifier := integration.NewWebhookNotifier(repo, integration.WebhookOptions{}, nil)
	defer notifier.Stop()

	require.NoError(t, notifier.NotifyPerson(context.Background(), "carol", workflow.TemplateSubmissionArchived, workflow.NotificationItem{ItemID: "item-3"}))
	waitForStatus(t, repo, "item-3", model.EventStatusSuccess)
}

// TestWebhookNotifier_StopDrainsQueue Stop 返回前推送完队列中的全部事件
func TestWebhookNotifier_StopDrainsQueue(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := repository.NewEventRepository(setupTestDB(t))
	notifier := integration.NewWebhookNotifier(repo, integration.WebhookOptions{
		Endpoints: []integration.WebhookEndpoint{{URL: server.URL}},
	}, nil)

	const total = 20
	for i := 0; i < total; i++ {
		require.NoError(t, notifier.NotifyPerson(context.Background(), "carol", workflow.TemplateSubmissionArchived, workflow.NotificationItem{
			WorkflowItemID: "wf-drain", ItemID: "item-drain",
		}))
	}
	notifier.Stop()

	assert.Equal(t, int32(total), calls.Load())
	pending, err := repo.FindPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	events, err := repo.FindByItemID(context.Background(), "item-drain")
	require.NoError(t, err)
	require.Len(t, events, total)
	for _, evt := range events {
		assert.Equal(t, model.EventStatusSuccess, evt.Status)
	}
}

// TestWebhookNotifier_StartReplaysPending 启动时重新推送遗留的 pending 事件
func TestWebhookNotifier_StartReplaysPending(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	repo := repository.NewEventRepository(setupTestDB(t))
	now := time.Now()
	require.NoError(t, repo.Save(ctx, &model.EventModel{
		ID:            "evt-left",
		ItemID:        "item-left",
		Template:      workflow.TemplateTaskPoolReady,
		RecipientType: integration.RecipientGroup,
		Recipient:     "Editors",
		Data:          []byte(`{"template":"task_pool_ready"}`),
		Status:        model.EventStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	logger, hook := test.NewNullLogger()
	notifier := integration.NewWebhookNotifier(repo, integration.WebhookOptions{
		Endpoints: []integration.WebhookEndpoint{{URL: server.URL}},
	}, logger)
	require.NoError(t, notifier.Start(ctx))
	notifier.Stop()

	assert.Equal(t, int32(1), calls.Load())
	evt, err := repo.FindByID(ctx, "evt-left")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusSuccess, evt.Status)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 1, hook.LastEntry().Data["replayed"])
}

// TestWebhookNotifier_NotifyAfterStop 停止后的通知保留为 pending 并记录日志
func TestWebhookNotifier_NotifyAfterStop(t *testing.T) {
	logger, hook := test.NewNullLogger()
	repo := repository.NewEventRepository(setupTestDB(t))
	notifier := integration.NewWebhookNotifier(repo, integration.WebhookOptions{}, logger)
	notifier.Stop()
	notifier.Stop()

	require.NoError(t, notifier.NotifyPerson(context.Background(), "carol", workflow.TemplateSubmissionArchived, workflow.NotificationItem{ItemID: "item-late"}))

	pending, err := repo.FindPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "item-late", pending[0].ItemID)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "notifier stopped, event left pending", entry.Message)
}

type failingNotifier struct{}

func (failingNotifier) NotifyGroup(context.Context, string, string, workflow.NotificationItem) error {
	return errors.New("group down")
}

func (failingNotifier) NotifyPerson(context.Context, string, string, workflow.NotificationItem) error {
	return errors.New("person down")
}

// TestMultiNotifier 测试多个通知器全部调用并汇总错误
func TestMultiNotifier(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	multi := integration.MultiNotifier{integration.NewLogNotifier(logger), failingNotifier{}, integration.NopNotifier{}}
	err := multi.NotifyGroup(context.Background(), "Editors", workflow.TemplateTaskPoolReady, workflow.NotificationItem{ItemID: "item-1", Step: "editstep"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group down")

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "Editors", entry.Data["recipient"])
	assert.Equal(t, "editstep", entry.Data["step"])

	assert.NoError(t, integration.MultiNotifier{integration.NopNotifier{}}.NotifyPerson(context.Background(), "carol", "x", workflow.NotificationItem{}))
}
