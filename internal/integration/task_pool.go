package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/workflow"
	"gorm.io/gorm"
)

// TaskPool 任务池: 未被认领、按步骤角色组对候选人可见的工作流条目
type TaskPool struct {
	defs     *workflow.Definitions
	machine  *workflow.StateMachine
	items    repository.WorkflowItemRepository
	tasks    repository.TaskListItemRepository
	resolver workflow.GroupResolver
}

// NewTaskPool 创建任务池
func NewTaskPool(db *gorm.DB, defs *workflow.Definitions, resolver workflow.GroupResolver) *TaskPool {
	return &TaskPool{
		defs:     defs,
		machine:  workflow.NewStateMachine(),
		items:    repository.NewWorkflowItemRepository(db),
		tasks:    repository.NewTaskListItemRepository(db),
		resolver: resolver,
	}
}

// GroupFor 条目当前步骤的候选用户组
func (p *TaskPool) GroupFor(item *model.WorkflowItemModel) (string, error) {
	state, err := workflow.ParseState(item.State)
	if err != nil {
		return "", err
	}
	wf, err := p.defs.WorkflowFor(item.CollectionID)
	if err != nil {
		return "", err
	}
	if err := p.machine.Validate(wf, state); err != nil {
		return "", err
	}
	return p.defs.GroupForStep(wf, state.Step, item.CollectionID, item.ItemID)
}

// IsEligible person 是否属于条目当前步骤的角色组
func (p *TaskPool) IsEligible(ctx context.Context, item *model.WorkflowItemModel, person string) (bool, error) {
	group, err := p.GroupFor(item)
	if err != nil {
		return false, err
	}
	ok, err := p.resolver.IsMemberOfGroup(ctx, person, group)
	if err != nil {
		return false, workflow.Persistence("check group membership", err)
	}
	return ok, nil
}

// FindPooledTasks 返回 person 可认领的任务,先提交的在前
func (p *TaskPool) FindPooledTasks(ctx context.Context, person string) ([]*model.WorkflowItemModel, error) {
	items, err := p.items.FindPooled(ctx)
	if err != nil {
		return nil, workflow.Persistence("find pooled tasks", err)
	}

	// 同一组只查询一次成员资格
	membership := make(map[string]bool)
	result := make([]*model.WorkflowItemModel, 0, len(items))
	for _, item := range items {
		group, err := p.GroupFor(item)
		if err != nil {
			return nil, err
		}
		member, checked := membership[group]
		if !checked {
			member, err = p.resolver.IsMemberOfGroup(ctx, person, group)
			if err != nil {
				return nil, workflow.Persistence("check group membership", err)
			}
			membership[group] = member
		}
		if member {
			result = append(result, item)
		}
	}
	return result, nil
}

// Claim 在事务 tx 中认领任务
//
// 通过比较并交换(state 为 pool:S 且 owner 为空)保证同一条目只有一个认领者;
// task_list_items.workflow_item_id 上的唯一索引是第二道保护。
func (p *TaskPool) Claim(ctx context.Context, tx *gorm.DB, item *model.WorkflowItemModel, person string) (workflow.Transition, error) {
	from, err := workflow.ParseState(item.State)
	if err != nil {
		return workflow.Transition{}, err
	}
	wf, err := p.defs.WorkflowFor(item.CollectionID)
	if err != nil {
		return workflow.Transition{}, err
	}
	tr, err := p.machine.Claim(wf, from)
	if err != nil {
		return workflow.Transition{}, err
	}

	swapped, err := p.items.WithTx(tx).CompareAndSwap(ctx, item.ID,
		repository.StateOwner{State: from.String()},
		repository.StateOwner{State: tr.To.String(), Owner: person},
	)
	if err != nil {
		return workflow.Transition{}, workflow.Persistence("claim task", err)
	}
	if !swapped {
		return workflow.Transition{}, workflow.Wrap(workflow.ErrAlreadyClaimed, "workflow item %s", item.ID)
	}

	task := &model.TaskListItemModel{
		ID:             uuid.New().String(),
		WorkflowItemID: item.ID,
		Owner:          person,
		Step:           tr.Step,
		CreatedAt:      time.Now(),
	}
	if err := p.tasks.WithTx(tx).Create(ctx, task); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return workflow.Transition{}, workflow.Wrap(workflow.ErrAlreadyClaimed, "workflow item %s", item.ID)
		}
		return workflow.Transition{}, workflow.Persistence("create task list item", err)
	}

	item.State = tr.To.String()
	item.Owner = person
	return tr, nil
}
