package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/integration"
	"github.com/mautops/submission-workflow/internal/metrics"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// 状态历史与审计日志中的动作
const (
	ActionStart           = "start"
	ActionClaim           = "claim"
	ActionUnclaim         = "unclaim"
	ActionApprove         = string(workflow.OutcomeApprove)
	ActionReject          = string(workflow.OutcomeReject)
	ActionApproveWithEdit = string(workflow.OutcomeApproveWithEdit)
	ActionAbort           = "abort"
)

const resourceWorkflowItem = "workflow_item"

// TxContentStore 可加入工作流事务的内容存储
type TxContentStore interface {
	WithTx(tx *gorm.DB) workflow.ContentStore
}

// Options 工作流服务选项
type Options struct {
	// AdminGroup 工作流管理员组,为空时禁止中止
	AdminGroup string
	// NotifyOnClaim 认领后通知认领人
	NotifyOnClaim bool
	// RecordProvenance 审批请求未指定时的默认值
	RecordProvenance bool
}

// StartResult 提交进入工作流的结果
type StartResult struct {
	// Item 为 nil 表示集合没有配置步骤,提交已直接归档
	Item     *model.WorkflowItemModel
	ItemID   string
	Archived bool
	Handle   string
}

// AdvanceRequest 审批请求
type AdvanceRequest struct {
	WorkflowItemID string
	Person         string
	Outcome        workflow.Outcome
	// Edits 仅在 approve_with_edit 时应用
	Edits  []workflow.MetadataEdit
	Reason string
	// RecordProvenance 为 nil 时使用服务默认值
	RecordProvenance *bool
}

// Orphan 状态与工作流配置不一致的条目
type Orphan struct {
	Item   *model.WorkflowItemModel
	Reason string
}

// WorkflowService 工作流服务接口
type WorkflowService interface {
	Start(ctx context.Context, workspaceItemID string) (*StartResult, error)
	Claim(ctx context.Context, workflowItemID string, person string) (*model.WorkflowItemModel, error)
	Unclaim(ctx context.Context, workflowItemID string, person string) (*model.WorkflowItemModel, error)
	Advance(ctx context.Context, req AdvanceRequest) (bool, error)
	Abort(ctx context.Context, workflowItemID string, admin string, reason string) error
	Get(ctx context.Context, workflowItemID string) (*model.WorkflowItemModel, error)
	GetPooledTasks(ctx context.Context, person string) ([]*model.WorkflowItemModel, error)
	GetOwnedTasks(ctx context.Context, person string) ([]*model.WorkflowItemModel, error)
	History(ctx context.Context, itemID string) ([]*model.StateHistoryModel, error)
	VerifyStates(ctx context.Context) ([]Orphan, error)
}

// workflowService 工作流服务实现
type workflowService struct {
	db       *gorm.DB
	defs     *workflow.Definitions
	machine  *workflow.StateMachine
	pool     *integration.TaskPool
	claimed  *integration.ClaimedTaskStore
	items    repository.WorkflowItemRepository
	tasks    repository.TaskListItemRepository
	history  repository.StateHistoryRepository
	content  workflow.ContentStore
	resolver workflow.GroupResolver
	notifier workflow.Notifier
	audit    AuditLogService
	logger   *logrus.Logger
	tracer   trace.Tracer
	opts     Options
	lastSeq  atomic.Int64
}

// NewWorkflowService 创建工作流服务
func NewWorkflowService(
	db *gorm.DB,
	defs *workflow.Definitions,
	content workflow.ContentStore,
	resolver workflow.GroupResolver,
	notifier workflow.Notifier,
	audit AuditLogService,
	logger *logrus.Logger,
	opts Options,
) WorkflowService {
	if notifier == nil {
		notifier = integration.NopNotifier{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &workflowService{
		db:       db,
		defs:     defs,
		machine:  workflow.NewStateMachine(),
		pool:     integration.NewTaskPool(db, defs, resolver),
		claimed:  integration.NewClaimedTaskStore(db, defs),
		items:    repository.NewWorkflowItemRepository(db),
		tasks:    repository.NewTaskListItemRepository(db),
		history:  repository.NewStateHistoryRepository(db),
		content:  content,
		resolver: resolver,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
		tracer:   otel.Tracer("github.com/mautops/submission-workflow/internal/service"),
		opts:     opts,
	}
}

// Start 将提交人完成的提交转为工作流条目
func (s *workflowService) Start(ctx context.Context, workspaceItemID string) (result *StartResult, err error) {
	ctx, span := s.tracer.Start(ctx, "WorkflowService.Start",
		trace.WithAttributes(attribute.String("workspace_item.id", workspaceItemID)))
	defer func() { endSpan(span, err) }()

	sub, err := s.content.GetWorkspaceItem(ctx, workspaceItemID)
	if err != nil {
		return nil, workflow.Persistence("get workspace item", err)
	}
	wf, err := s.defs.WorkflowFor(sub.CollectionID)
	if err != nil {
		return nil, err
	}
	tr := s.machine.Initial(wf)

	group := ""
	if tr.To.IsPool() {
		if group, err = s.defs.GroupForStep(wf, tr.Step, sub.CollectionID, sub.ItemID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	result = &StartResult{ItemID: sub.ItemID}
	workflowItemID := uuid.New().String()

	err = s.transaction(ctx, func(tx *gorm.DB, content workflow.ContentStore) error {
		if err := content.DeleteWorkspaceItem(ctx, sub.WorkspaceItemID); err != nil {
			return workflow.Persistence("delete workspace item", err)
		}
		text := fmt.Sprintf("Submitted by %s on %s", sub.SubmitterID, formatTime(now))
		if err := content.AppendProvenance(ctx, sub.ItemID, text); err != nil {
			return workflow.Persistence("append provenance", err)
		}

		if tr.Disposition == workflow.DispositionArchived {
			handle, err := content.CreateArchivedCopy(ctx, sub.ItemID)
			if err != nil {
				return workflow.Persistence("create archived copy", err)
			}
			result.Archived = true
			result.Handle = handle
		} else {
			item := &model.WorkflowItemModel{
				ID:              workflowItemID,
				ItemID:          sub.ItemID,
				CollectionID:    sub.CollectionID,
				SubmitterID:     sub.SubmitterID,
				WorkflowName:    wf.Name,
				State:           tr.To.String(),
				MultipleTitles:  sub.MultipleTitles,
				PublishedBefore: sub.PublishedBefore,
				MultipleFiles:   sub.MultipleFiles,
				Seq:             s.nextSeq(),
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.items.WithTx(tx).Create(ctx, item); err != nil {
				return workflow.Persistence("create workflow item", err)
			}
			result.Item = item
		}

		return s.recordHistory(ctx, tx, workflowItemID, sub.ItemID, tr, ActionStart, "", sub.SubmitterID)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSubmissionStarted(string(tr.Disposition))
	s.recordAudit(ctx, sub.SubmitterID, ActionStart, workflowItemID, map[string]interface{}{
		"item_id":       sub.ItemID,
		"collection_id": sub.CollectionID,
		"state":         tr.To.String(),
	})

	note := workflow.NotificationItem{
		WorkflowItemID: workflowItemID,
		ItemID:         sub.ItemID,
		CollectionID:   sub.CollectionID,
		SubmitterID:    sub.SubmitterID,
		Step:           tr.Step,
		Handle:         result.Handle,
	}
	if result.Archived {
		s.notifyPerson(ctx, sub.SubmitterID, workflow.TemplateSubmissionArchived, note)
	} else {
		s.notifyPool(ctx, group, note)
	}
	return result, nil
}

// Claim 认领任务
func (s *workflowService) Claim(ctx context.Context, workflowItemID string, person string) (item *model.WorkflowItemModel, err error) {
	ctx, span := s.tracer.Start(ctx, "WorkflowService.Claim", trace.WithAttributes(
		attribute.String("workflow_item.id", workflowItemID),
		attribute.String("person", person),
	))
	defer func() { endSpan(span, err) }()

	item, err = s.Get(ctx, workflowItemID)
	if err != nil {
		return nil, err
	}
	state, err := workflow.ParseState(item.State)
	if err != nil {
		return nil, err
	}
	if !state.IsPool() {
		metrics.RecordClaimConflict()
		return nil, workflow.Wrap(workflow.ErrAlreadyClaimed, "workflow item %s is %s", item.ID, item.State)
	}
	eligible, err := s.pool.IsEligible(ctx, item, person)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, workflow.Wrap(workflow.ErrNotEligible, "%s cannot claim step %q", person, state.Step)
	}

	var tr workflow.Transition
	err = s.transaction(ctx, func(tx *gorm.DB, _ workflow.ContentStore) error {
		var err error
		if tr, err = s.pool.Claim(ctx, tx, item, person); err != nil {
			return err
		}
		return s.recordHistory(ctx, tx, item.ID, item.ItemID, tr, ActionClaim, "", person)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrAlreadyClaimed) {
			metrics.RecordClaimConflict()
		}
		return nil, err
	}

	metrics.RecordOperation(ActionClaim)
	s.recordAudit(ctx, person, ActionClaim, item.ID, map[string]interface{}{"step": tr.Step})
	if s.opts.NotifyOnClaim {
		s.notifyPerson(ctx, person, workflow.TemplateTaskClaimed, notificationFor(item, tr.Step))
	}
	return item, nil
}

// Unclaim 释放任务,条目回到当前步骤的任务池
func (s *workflowService) Unclaim(ctx context.Context, workflowItemID string, person string) (item *model.WorkflowItemModel, err error) {
	ctx, span := s.tracer.Start(ctx, "WorkflowService.Unclaim", trace.WithAttributes(
		attribute.String("workflow_item.id", workflowItemID),
		attribute.String("person", person),
	))
	defer func() { endSpan(span, err) }()

	item, err = s.Get(ctx, workflowItemID)
	if err != nil {
		return nil, err
	}
	group, err := s.pool.GroupFor(item)
	if err != nil {
		return nil, err
	}

	var tr workflow.Transition
	err = s.transaction(ctx, func(tx *gorm.DB, _ workflow.ContentStore) error {
		var err error
		if tr, err = s.claimed.Unclaim(ctx, tx, item, person); err != nil {
			return err
		}
		return s.recordHistory(ctx, tx, item.ID, item.ItemID, tr, ActionUnclaim, "", person)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOperation(ActionUnclaim)
	s.recordAudit(ctx, person, ActionUnclaim, item.ID, map[string]interface{}{"step": tr.Step})
	s.notifyPool(ctx, group, notificationFor(item, tr.Step))
	return item, nil
}

// Advance 对已认领的任务执行审批动作,返回条目是否已归档
//
// 状态转换、来源记录、元数据修改、归档或退回在同一事务中完成,
// 任一步失败时条目保持认领状态不变。
func (s *workflowService) Advance(ctx context.Context, req AdvanceRequest) (archived bool, err error) {
	ctx, span := s.tracer.Start(ctx, "WorkflowService.Advance", trace.WithAttributes(
		attribute.String("workflow_item.id", req.WorkflowItemID),
		attribute.String("person", req.Person),
		attribute.String("outcome", string(req.Outcome)),
	))
	defer func() { endSpan(span, err) }()

	item, err := s.Get(ctx, req.WorkflowItemID)
	if err != nil {
		return false, err
	}
	from, err := workflow.ParseState(item.State)
	if err != nil {
		return false, err
	}
	if item.Owner != req.Person {
		return false, workflow.Wrap(workflow.ErrNotOwner, "%s does not own workflow item %s", req.Person, item.ID)
	}
	wf, err := s.defs.WorkflowFor(item.CollectionID)
	if err != nil {
		return false, err
	}
	tr, err := s.machine.Advance(wf, from, req.Outcome)
	if err != nil {
		return false, err
	}
	if req.Outcome == workflow.OutcomeReject && req.Reason == "" {
		return false, workflow.Wrap(workflow.ErrReasonRequired, "rejecting workflow item %s", item.ID)
	}
	if len(req.Edits) > 0 && req.Outcome != workflow.OutcomeApproveWithEdit {
		return false, workflow.Wrap(workflow.ErrActionNotAllowed, "metadata edits require %s", workflow.OutcomeApproveWithEdit)
	}

	nextGroup := ""
	if tr.To.IsPool() {
		if nextGroup, err = s.defs.GroupForStep(wf, tr.To.Step, item.CollectionID, item.ItemID); err != nil {
			return false, err
		}
	}
	recordProvenance := s.opts.RecordProvenance
	if req.RecordProvenance != nil {
		recordProvenance = *req.RecordProvenance
	}

	now := time.Now()
	handle := ""
	err = s.transaction(ctx, func(tx *gorm.DB, content workflow.ContentStore) error {
		if _, err := s.tasks.WithTx(tx).DeleteByWorkflowItemID(ctx, item.ID); err != nil {
			return workflow.Persistence("delete task list item", err)
		}
		swapped, err := s.items.WithTx(tx).CompareAndSwap(ctx, item.ID,
			repository.StateOwner{State: from.String(), Owner: req.Person},
			repository.StateOwner{State: tr.To.String()},
		)
		if err != nil {
			return workflow.Persistence("advance workflow item", err)
		}
		if !swapped {
			return workflow.Wrap(workflow.ErrStaleState, "workflow item %s", item.ID)
		}

		if req.Outcome == workflow.OutcomeApproveWithEdit && len(req.Edits) > 0 {
			if err := content.UpdateMetadata(ctx, item.ItemID, req.Edits); err != nil {
				return workflow.Persistence("update metadata", err)
			}
		}
		if recordProvenance {
			text := provenanceText(req, tr.Step, now)
			if err := content.AppendProvenance(ctx, item.ItemID, text); err != nil {
				return workflow.Persistence("append provenance", err)
			}
		}

		switch tr.Disposition {
		case workflow.DispositionArchived:
			if handle, err = content.CreateArchivedCopy(ctx, item.ItemID); err != nil {
				return workflow.Persistence("create archived copy", err)
			}
			if err := s.items.WithTx(tx).Delete(ctx, item.ID); err != nil {
				return workflow.Persistence("delete workflow item", err)
			}
		case workflow.DispositionReturned:
			if _, err := content.ReturnToWorkspace(ctx, submissionOf(item), req.Reason); err != nil {
				return workflow.Persistence("return to workspace", err)
			}
			if err := s.items.WithTx(tx).Delete(ctx, item.ID); err != nil {
				return workflow.Persistence("delete workflow item", err)
			}
		}

		return s.recordHistory(ctx, tx, item.ID, item.ItemID, tr, string(req.Outcome), req.Reason, req.Person)
	})
	if err != nil {
		return false, err
	}

	archived = tr.Disposition == workflow.DispositionArchived
	metrics.RecordAdvance(string(req.Outcome), string(tr.Disposition))
	s.recordAudit(ctx, req.Person, string(req.Outcome), item.ID, map[string]interface{}{
		"step":   tr.Step,
		"state":  tr.To.String(),
		"reason": req.Reason,
		"edits":  len(req.Edits),
	})

	note := notificationFor(item, tr.Step)
	switch tr.Disposition {
	case workflow.DispositionArchived:
		note.Handle = handle
		s.notifyPerson(ctx, item.SubmitterID, workflow.TemplateSubmissionArchived, note)
	case workflow.DispositionReturned:
		note.Reason = req.Reason
		s.notifyPerson(ctx, item.SubmitterID, workflow.TemplateSubmissionRejected, note)
	default:
		item.State = tr.To.String()
		item.Owner = ""
		note.Step = tr.To.Step
		s.notifyPool(ctx, nextGroup, note)
	}
	return archived, nil
}

// Abort 管理员中止工作流,无论处于哪一步都将提交退回工作区
func (s *workflowService) Abort(ctx context.Context, workflowItemID string, admin string, reason string) (err error) {
	ctx, span := s.tracer.Start(ctx, "WorkflowService.Abort", trace.WithAttributes(
		attribute.String("workflow_item.id", workflowItemID),
		attribute.String("person", admin),
	))
	defer func() { endSpan(span, err) }()

	if s.opts.AdminGroup == "" {
		return workflow.Wrap(workflow.ErrNotAdministrator, "no administrator group is configured")
	}
	isAdmin, err := s.resolver.IsMemberOfGroup(ctx, admin, s.opts.AdminGroup)
	if err != nil {
		return workflow.Persistence("check group membership", err)
	}
	if !isAdmin {
		return workflow.Wrap(workflow.ErrNotAdministrator, "%s", admin)
	}

	item, err := s.Get(ctx, workflowItemID)
	if err != nil {
		return err
	}
	from, err := workflow.ParseState(item.State)
	if err != nil {
		return err
	}
	tr := workflow.Transition{From: from, To: workflow.Submit(), Disposition: workflow.DispositionReturned, Step: from.Step}

	now := time.Now()
	err = s.transaction(ctx, func(tx *gorm.DB, content workflow.ContentStore) error {
		swapped, err := s.items.WithTx(tx).CompareAndSwap(ctx, item.ID,
			repository.StateOwner{State: item.State, Owner: item.Owner},
			repository.StateOwner{State: tr.To.String()},
		)
		if err != nil {
			return workflow.Persistence("abort workflow item", err)
		}
		if !swapped {
			return workflow.Wrap(workflow.ErrStaleState, "workflow item %s", item.ID)
		}
		text := fmt.Sprintf("Workflow aborted by %s, reason: %s on %s", admin, reason, formatTime(now))
		if err := content.AppendProvenance(ctx, item.ItemID, text); err != nil {
			return workflow.Persistence("append provenance", err)
		}
		if _, err := content.ReturnToWorkspace(ctx, submissionOf(item), reason); err != nil {
			return workflow.Persistence("return to workspace", err)
		}
		if err := s.items.WithTx(tx).Delete(ctx, item.ID); err != nil {
			return workflow.Persistence("delete workflow item", err)
		}
		return s.recordHistory(ctx, tx, item.ID, item.ItemID, tr, ActionAbort, reason, admin)
	})
	if err != nil {
		return err
	}

	metrics.RecordOperation(ActionAbort)
	s.recordAudit(ctx, admin, ActionAbort, item.ID, map[string]interface{}{
		"state":  from.String(),
		"reason": reason,
	})
	note := notificationFor(item, from.Step)
	note.Reason = reason
	s.notifyPerson(ctx, item.SubmitterID, workflow.TemplateSubmissionAborted, note)
	return nil
}

// Get 获取工作流条目
func (s *workflowService) Get(ctx context.Context, workflowItemID string) (*model.WorkflowItemModel, error) {
	item, err := s.items.FindByID(ctx, workflowItemID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, workflow.Wrap(workflow.ErrItemNotFound, "%s", workflowItemID)
	}
	if err != nil {
		return nil, workflow.Persistence("get workflow item", err)
	}
	return item, nil
}

// GetPooledTasks person 可认领的任务
func (s *workflowService) GetPooledTasks(ctx context.Context, person string) ([]*model.WorkflowItemModel, error) {
	ctx, span := s.tracer.Start(ctx, "WorkflowService.GetPooledTasks")
	defer span.End()
	return s.pool.FindPooledTasks(ctx, person)
}

// GetOwnedTasks person 已认领的任务
func (s *workflowService) GetOwnedTasks(ctx context.Context, person string) ([]*model.WorkflowItemModel, error) {
	return s.claimed.FindByOwner(ctx, person)
}

// History 内容条目的状态历史
func (s *workflowService) History(ctx context.Context, itemID string) ([]*model.StateHistoryModel, error) {
	histories, err := s.history.FindByItemID(ctx, itemID)
	if err != nil {
		return nil, workflow.Persistence("find state history", err)
	}
	return histories, nil
}

// VerifyStates 找出状态与所属集合工作流不一致的条目
func (s *workflowService) VerifyStates(ctx context.Context) ([]Orphan, error) {
	items, err := s.items.FindAll(ctx)
	if err != nil {
		return nil, workflow.Persistence("list workflow items", err)
	}

	var orphans []Orphan
	for _, item := range items {
		if reason := s.verify(ctx, item); reason != "" {
			orphans = append(orphans, Orphan{Item: item, Reason: reason})
		}
	}
	return orphans, nil
}

func (s *workflowService) verify(ctx context.Context, item *model.WorkflowItemModel) string {
	state, err := workflow.ParseState(item.State)
	if err != nil {
		return err.Error()
	}
	wf, err := s.defs.WorkflowFor(item.CollectionID)
	if err != nil {
		return err.Error()
	}
	if err := s.machine.Validate(wf, state); err != nil {
		return err.Error()
	}

	task, err := s.tasks.FindByWorkflowItemID(ctx, item.ID)
	switch {
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return err.Error()
	case state.IsClaimed() && task == nil:
		return "claimed without a task list item"
	case state.IsClaimed() && task.Owner != item.Owner:
		return fmt.Sprintf("task list item owned by %s, workflow item by %s", task.Owner, item.Owner)
	case state.IsPool() && task != nil:
		return "pooled with a task list item"
	}
	return ""
}

// transaction 在一个事务中执行 fn,内容存储在支持时加入同一事务
func (s *workflowService) transaction(ctx context.Context, fn func(tx *gorm.DB, content workflow.ContentStore) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		content := s.content
		if txs, ok := s.content.(TxContentStore); ok {
			content = txs.WithTx(tx)
		}
		return fn(tx, content)
	})
	return workflow.Persistence("commit workflow transaction", err)
}

func (s *workflowService) recordHistory(ctx context.Context, tx *gorm.DB, workflowItemID, itemID string, tr workflow.Transition, action, reason, operator string) error {
	history := &model.StateHistoryModel{
		ID:             uuid.New().String(),
		WorkflowItemID: workflowItemID,
		ItemID:         itemID,
		FromState:      tr.From.String(),
		ToState:        tr.To.String(),
		Action:         action,
		Reason:         reason,
		Operator:       operator,
		CreatedAt:      time.Now(),
	}
	if err := s.history.WithTx(tx).Save(ctx, history); err != nil {
		return workflow.Persistence("save state history", err)
	}
	return nil
}

func (s *workflowService) recordAudit(ctx context.Context, actor, action, workflowItemID string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordAction(ctx, actor, action, resourceWorkflowItem, workflowItemID, details); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":           action,
			"workflow_item_id": workflowItemID,
		}).Warn("failed to record audit log")
	}
}

// notifyPool 通知任务池所在组;组内没有成员时跳过
func (s *workflowService) notifyPool(ctx context.Context, group string, item workflow.NotificationItem) {
	if lister, ok := s.resolver.(workflow.GroupLister); ok {
		members, err := lister.ListMembers(ctx, group)
		if err == nil && len(members) == 0 {
			s.logger.WithFields(logrus.Fields{
				"group":            group,
				"workflow_item_id": item.WorkflowItemID,
			}).Debug("pool group is empty, skipping notification")
			return
		}
	}
	if err := s.notifier.NotifyGroup(ctx, group, workflow.TemplateTaskPoolReady, item); err != nil {
		s.notificationFailed(err, workflow.TemplateTaskPoolReady, group, item)
	}
}

func (s *workflowService) notifyPerson(ctx context.Context, person, templateID string, item workflow.NotificationItem) {
	if err := s.notifier.NotifyPerson(ctx, person, templateID, item); err != nil {
		s.notificationFailed(err, templateID, person, item)
	}
}

func (s *workflowService) notificationFailed(err error, templateID, recipient string, item workflow.NotificationItem) {
	metrics.RecordNotificationFailure(templateID)
	s.logger.WithError(err).WithFields(logrus.Fields{
		"template":         templateID,
		"recipient":        recipient,
		"workflow_item_id": item.WorkflowItemID,
	}).Warn("failed to send notification")
}

// nextSeq 单调递增的提交序号,任务池按此排序
func (s *workflowService) nextSeq() int64 {
	for {
		last := s.lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if s.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

func provenanceText(req AdvanceRequest, step string, now time.Time) string {
	if req.Outcome == workflow.OutcomeReject {
		return fmt.Sprintf("Rejected by %s, reason: %s on %s (%s step)", req.Person, req.Reason, formatTime(now), step)
	}
	return fmt.Sprintf("Approved for entry into archive by %s on %s (%s step)", req.Person, formatTime(now), step)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func submissionOf(item *model.WorkflowItemModel) *workflow.Submission {
	return &workflow.Submission{
		ItemID:          item.ItemID,
		CollectionID:    item.CollectionID,
		SubmitterID:     item.SubmitterID,
		MultipleTitles:  item.MultipleTitles,
		PublishedBefore: item.PublishedBefore,
		MultipleFiles:   item.MultipleFiles,
	}
}

func notificationFor(item *model.WorkflowItemModel, step string) workflow.NotificationItem {
	return workflow.NotificationItem{
		WorkflowItemID: item.ID,
		ItemID:         item.ItemID,
		CollectionID:   item.CollectionID,
		SubmitterID:    item.SubmitterID,
		Step:           step,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
