package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/metrics"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// 通知接收方类型
const (
	RecipientGroup  = "group"
	RecipientPerson = "person"
)

// WebhookEndpoint Webhook 推送目标
type WebhookEndpoint struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	// AuthType bearer / basic / header
	AuthType string `mapstructure:"auth_type"`
	AuthKey  string `mapstructure:"auth_key"`
	Token    string `mapstructure:"token"`
}

// WebhookOptions Webhook 通知器参数
type WebhookOptions struct {
	Endpoints    []WebhookEndpoint
	Workers      int
	QueueSize    int
	RateLimit    float64 // 每秒请求数,0 表示不限速
	Burst        int
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Notification 推送到 Webhook 的通知内容
type Notification struct {
	ID            string                    `json:"id"`
	Template      string                    `json:"template"`
	RecipientType string                    `json:"recipient_type"`
	Recipient     string                    `json:"recipient"`
	Item          workflow.NotificationItem `json:"item"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// WebhookNotifier 先持久化通知事件,再由 worker 异步推送到 Webhook
// 推送失败按指数退避重试,最终失败只记录日志。
// 未能推送的事件保持 pending,下次 Start 时重新入队,投递语义为至少一次。
type WebhookNotifier struct {
	eventRepo  repository.EventRepository
	opts       WebhookOptions
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	queue      chan *model.EventModel
	stop       chan struct{}
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
}

// NewWebhookNotifier 创建 Webhook 通知器并启动 worker
func NewWebhookNotifier(eventRepo repository.EventRepository, opts WebhookOptions, logger *logrus.Logger) *WebhookNotifier {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	n := &WebhookNotifier{
		eventRepo:  eventRepo,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, opts.Burst),
		logger:     logger,
		queue:      make(chan *model.EventModel, opts.QueueSize),
		stop:       make(chan struct{}),
	}

	for i := 0; i < opts.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

// NotifyGroup 通知用户组
func (n *WebhookNotifier) NotifyGroup(ctx context.Context, group string, templateID string, item workflow.NotificationItem) error {
	return n.enqueue(ctx, RecipientGroup, group, templateID, item)
}

// NotifyPerson 通知个人
func (n *WebhookNotifier) NotifyPerson(ctx context.Context, person string, templateID string, item workflow.NotificationItem) error {
	return n.enqueue(ctx, RecipientPerson, person, templateID, item)
}

func (n *WebhookNotifier) enqueue(ctx context.Context, recipientType, recipient, templateID string, item workflow.NotificationItem) error {
	now := time.Now()
	notification := Notification{
		ID:            uuid.New().String(),
		Template:      templateID,
		RecipientType: recipientType,
		Recipient:     recipient,
		Item:          item,
		CreatedAt:     now,
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	evt := &model.EventModel{
		ID:             notification.ID,
		WorkflowItemID: item.WorkflowItemID,
		ItemID:         item.ItemID,
		Template:       templateID,
		RecipientType:  recipientType,
		Recipient:      recipient,
		Data:           data,
		Status:         model.EventStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := n.eventRepo.Save(ctx, evt); err != nil {
		return fmt.Errorf("failed to save notification event: %w", err)
	}

	n.push(evt)
	return nil
}

// push 把事件放入队列;队列已满或已关闭时事件保持 pending
func (n *WebhookNotifier) push(evt *model.EventModel) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	reason := "notification queue full, event left pending"
	if !n.closed {
		select {
		case n.queue <- evt:
			return true
		default:
		}
	} else {
		reason = "notifier stopped, event left pending"
	}
	n.logger.WithFields(logrus.Fields{
		"event_id":  evt.ID,
		"template":  evt.Template,
		"recipient": evt.Recipient,
	}).Warn(reason)
	return false
}

// Start 重新投递之前未完成的 pending 事件
func (n *WebhookNotifier) Start(ctx context.Context) error {
	pending, err := n.eventRepo.FindPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending notification events: %w", err)
	}
	replayed := 0
	for _, evt := range pending {
		if !n.push(evt) {
			break
		}
		replayed++
	}
	if len(pending) > 0 {
		n.logger.WithFields(logrus.Fields{
			"pending":  len(pending),
			"replayed": replayed,
		}).Info("replaying pending notification events")
	}
	return nil
}

// worker 在队列关闭后处理完剩余事件再退出
func (n *WebhookNotifier) worker() {
	defer n.wg.Done()
	for evt := range n.queue {
		n.deliver(evt)
	}
}

// deliver 推送单个事件到全部 Webhook
func (n *WebhookNotifier) deliver(evt *model.EventModel) {
	ctx := context.Background()
	log := n.logger.WithFields(logrus.Fields{
		"event_id":  evt.ID,
		"template":  evt.Template,
		"recipient": evt.Recipient,
	})

	if len(n.opts.Endpoints) == 0 {
		n.finish(ctx, evt, model.EventStatusSuccess)
		return
	}

	backoff := n.opts.RetryBackoff
	for attempt := 0; attempt < n.opts.MaxRetries; attempt++ {
		var failed error
		for _, endpoint := range n.opts.Endpoints {
			if err := n.send(ctx, endpoint, evt.Data); err != nil {
				failed = errors.Join(failed, err)
			}
		}
		if failed == nil {
			n.finish(ctx, evt, model.EventStatusSuccess)
			return
		}

		log.WithError(failed).WithField("attempt", attempt+1).Warn("webhook delivery failed")
		evt.RetryCount++
		evt.UpdatedAt = time.Now()
		if err := n.eventRepo.Save(ctx, evt); err != nil {
			log.WithError(err).Error("failed to update notification event")
		}

		if attempt < n.opts.MaxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-n.stop:
				log.Warn("notifier stopped during retry, event left pending")
				return
			}
			backoff *= 2
		}
	}

	metrics.RecordNotificationFailure(evt.Template)
	n.finish(ctx, evt, model.EventStatusFailed)
}

func (n *WebhookNotifier) finish(ctx context.Context, evt *model.EventModel, status string) {
	evt.Status = status
	evt.UpdatedAt = time.Now()
	if err := n.eventRepo.Save(ctx, evt); err != nil {
		n.logger.WithError(err).WithField("event_id", evt.ID).Error("failed to update notification event")
	}
}

// send 发送 Webhook 请求
func (n *WebhookNotifier) send(ctx context.Context, endpoint WebhookEndpoint, body []byte) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	method := endpoint.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}
	switch endpoint.AuthType {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+endpoint.Token)
	case "basic":
		req.SetBasicAuth(endpoint.AuthKey, endpoint.Token)
	case "header":
		req.Header.Set(endpoint.AuthKey, endpoint.Token)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", endpoint.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status code: %d", endpoint.URL, resp.StatusCode)
	}
	return nil
}

// Stop 停止接收新事件,等待 worker 推送完队列中的全部事件
// 重试等待会被中断,对应事件保持 pending
func (n *WebhookNotifier) Stop() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.stop)
		close(n.queue)
	}
	n.mu.Unlock()
	n.wg.Wait()
}

// LogNotifier 只把通知写入日志
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

// NotifyGroup 通知用户组
func (n *LogNotifier) NotifyGroup(ctx context.Context, group string, templateID string, item workflow.NotificationItem) error {
	n.log(RecipientGroup, group, templateID, item)
	return nil
}

// NotifyPerson 通知个人
func (n *LogNotifier) NotifyPerson(ctx context.Context, person string, templateID string, item workflow.NotificationItem) error {
	n.log(RecipientPerson, person, templateID, item)
	return nil
}

func (n *LogNotifier) log(recipientType, recipient, templateID string, item workflow.NotificationItem) {
	n.logger.WithFields(logrus.Fields{
		"recipient_type":   recipientType,
		"recipient":        recipient,
		"template":         templateID,
		"workflow_item_id": item.WorkflowItemID,
		"item_id":          item.ItemID,
		"step":             item.Step,
	}).Info("notification")
}

// MultiNotifier 依次调用多个通知器,汇总错误
type MultiNotifier []workflow.Notifier

// NotifyGroup 通知用户组
func (m MultiNotifier) NotifyGroup(ctx context.Context, group string, templateID string, item workflow.NotificationItem) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyGroup(ctx, group, templateID, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyPerson 通知个人
func (m MultiNotifier) NotifyPerson(ctx context.Context, person string, templateID string, item workflow.NotificationItem) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyPerson(ctx, person, templateID, item); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopNotifier 不发送任何通知
type NopNotifier struct{}

// NotifyGroup 忽略
func (NopNotifier) NotifyGroup(context.Context, string, string, workflow.NotificationItem) error {
	return nil
}

// NotifyPerson 忽略
func (NopNotifier) NotifyPerson(context.Context, string, string, workflow.NotificationItem) error {
	return nil
}
