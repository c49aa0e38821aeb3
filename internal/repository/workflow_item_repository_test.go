package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/database"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB 创建内存数据库并迁移全部模型
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newWorkflowItem(id string, seq int64, state string) *model.WorkflowItemModel {
	now := time.Now()
	return &model.WorkflowItemModel{
		ID:           id,
		ItemID:       "item-" + id,
		CollectionID: "C",
		SubmitterID:  "submitter",
		WorkflowName: "default",
		State:        state,
		Seq:          seq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TestWorkflowItemRepository_CreateAndFind 测试创建与查找
func TestWorkflowItemRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWorkflowItemRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, newWorkflowItem("wf-1", 1, "pool:reviewstep")))

	found, err := repo.FindByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "pool:reviewstep", found.State)
	assert.Equal(t, "", found.Owner)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	err = repo.Create(ctx, &model.WorkflowItemModel{ID: "bad"})
	assert.Error(t, err)
}

// TestWorkflowItemRepository_OneWorkflowItemPerItem 测试同一内容条目只能有一个工作流条目
func TestWorkflowItemRepository_OneWorkflowItemPerItem(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWorkflowItemRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, newWorkflowItem("wf-1", 1, "pool:reviewstep")))
	dup := newWorkflowItem("wf-2", 2, "pool:reviewstep")
	dup.ItemID = "item-wf-1"
	err := repo.Create(ctx, dup)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

// TestWorkflowItemRepository_FindPooledOrder 测试任务池按提交顺序返回
func TestWorkflowItemRepository_FindPooledOrder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWorkflowItemRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, newWorkflowItem("wf-c", 3, "pool:editstep")))
	require.NoError(t, repo.Create(ctx, newWorkflowItem("wf-a", 1, "pool:reviewstep")))
	claimed := newWorkflowItem("wf-b", 2, "claimed:reviewstep")
	claimed.Owner = "alice"
	require.NoError(t, repo.Create(ctx, claimed))

	pooled, err := repo.FindPooled(ctx)
	require.NoError(t, err)
	require.Len(t, pooled, 2)
	assert.Equal(t, "wf-a", pooled[0].ID)
	assert.Equal(t, "wf-c", pooled[1].ID)

	owned, err := repo.FindByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "wf-b", owned[0].ID)
}

// TestWorkflowItemRepository_CompareAndSwap 测试比较并交换只成功一次
func TestWorkflowItemRepository_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWorkflowItemRepository(setupTestDB(t))
	require.NoError(t, repo.Create(ctx, newWorkflowItem("wf-1", 1, "pool:reviewstep")))

	pooled := repository.StateOwner{State: "pool:reviewstep"}
	ok, err := repo.CompareAndSwap(ctx, "wf-1", pooled, repository.StateOwner{State: "claimed:reviewstep", Owner: "alice"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwap(ctx, "wf-1", pooled, repository.StateOwner{State: "claimed:reviewstep", Owner: "bob"})
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Owner)
	assert.Equal(t, "claimed:reviewstep", found.State)
}

// TestWorkflowItemRepository_DeleteRemovesTask 测试删除条目时一并删除已认领任务
func TestWorkflowItemRepository_DeleteRemovesTask(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.NewWorkflowItemRepository(db)
	tasks := repository.NewTaskListItemRepository(db)

	item := newWorkflowItem("wf-1", 1, "claimed:reviewstep")
	item.Owner = "alice"
	require.NoError(t, repo.Create(ctx, item))
	require.NoError(t, tasks.Create(ctx, &model.TaskListItemModel{
		ID: "task-1", WorkflowItemID: "wf-1", Owner: "alice", Step: "reviewstep", CreatedAt: time.Now(),
	}))

	require.NoError(t, repo.Delete(ctx, "wf-1"))
	_, err := tasks.FindByWorkflowItemID(ctx, "wf-1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	assert.True(t, errors.Is(repo.Delete(ctx, "wf-1"), repository.ErrNotFound))
}

// TestWorkflowItemRepository_CountByState 测试按状态统计
func TestWorkflowItemRepository_CountByState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewWorkflowItemRepository(setupTestDB(t))

	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.Create(ctx, newWorkflowItem(fmt.Sprintf("wf-%d", i), int64(i), "pool:reviewstep")))
	}
	require.NoError(t, repo.Create(ctx, newWorkflowItem("wf-9", 9, "pool:editstep")))

	counts, err := repo.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts["pool:reviewstep"])
	assert.Equal(t, int64(1), counts["pool:editstep"])
}

// TestWorkflowItemRepository_WithTxRollback 测试事务回滚后不落库
func TestWorkflowItemRepository_WithTxRollback(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := repository.NewWorkflowItemRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.WithTx(tx).Create(ctx, newWorkflowItem("wf-1", 1, "pool:reviewstep")); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	_, err = repo.FindByID(ctx, "wf-1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
