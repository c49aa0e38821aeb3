package integration

import (
	"context"

	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/workflow"
	"gorm.io/gorm"
)

// ClaimedTaskStore 已认领任务: 每个条目同一时刻只有一个认领人
type ClaimedTaskStore struct {
	defs    *workflow.Definitions
	machine *workflow.StateMachine
	items   repository.WorkflowItemRepository
	tasks   repository.TaskListItemRepository
}

// NewClaimedTaskStore 创建已认领任务存储
func NewClaimedTaskStore(db *gorm.DB, defs *workflow.Definitions) *ClaimedTaskStore {
	return &ClaimedTaskStore{
		defs:    defs,
		machine: workflow.NewStateMachine(),
		items:   repository.NewWorkflowItemRepository(db),
		tasks:   repository.NewTaskListItemRepository(db),
	}
}

// FindByOwner 返回 person 当前认领的条目
func (s *ClaimedTaskStore) FindByOwner(ctx context.Context, person string) ([]*model.WorkflowItemModel, error) {
	items, err := s.items.FindByOwner(ctx, person)
	if err != nil {
		return nil, workflow.Persistence("find owned tasks", err)
	}
	return items, nil
}

// Unclaim 在事务 tx 中释放任务,条目回到当前步骤的任务池
func (s *ClaimedTaskStore) Unclaim(ctx context.Context, tx *gorm.DB, item *model.WorkflowItemModel, person string) (workflow.Transition, error) {
	from, err := workflow.ParseState(item.State)
	if err != nil {
		return workflow.Transition{}, err
	}
	// 先校验归属,只有认领人对非认领状态操作时才是非法转换
	if item.Owner != person {
		return workflow.Transition{}, workflow.Wrap(workflow.ErrNotOwner, "%s does not own workflow item %s", person, item.ID)
	}
	wf, err := s.defs.WorkflowFor(item.CollectionID)
	if err != nil {
		return workflow.Transition{}, err
	}
	tr, err := s.machine.Unclaim(wf, from)
	if err != nil {
		return workflow.Transition{}, err
	}

	if _, err := s.tasks.WithTx(tx).DeleteByWorkflowItemID(ctx, item.ID); err != nil {
		return workflow.Transition{}, workflow.Persistence("delete task list item", err)
	}
	swapped, err := s.items.WithTx(tx).CompareAndSwap(ctx, item.ID,
		repository.StateOwner{State: from.String(), Owner: person},
		repository.StateOwner{State: tr.To.String()},
	)
	if err != nil {
		return workflow.Transition{}, workflow.Persistence("unclaim task", err)
	}
	if !swapped {
		return workflow.Transition{}, workflow.Wrap(workflow.ErrStaleState, "workflow item %s", item.ID)
	}

	item.State = tr.To.String()
	item.Owner = ""
	return tr, nil
}
