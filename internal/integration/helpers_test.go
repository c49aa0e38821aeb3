package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/database"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testDefinitions = `
roles:
  reviewer:
    scope: collection
    group: COLLECTION_${collection}_REVIEWER
  editor:
    scope: repository
    group: Editors
workflows:
  default:
    steps:
      - name: reviewstep
        role: reviewer
      - name: editstep
        role: editor
collections:
  "C": default
`

// staticResolver 固定的组成员表
type staticResolver map[string][]string

func (r staticResolver) IsMemberOfGroup(_ context.Context, person string, group string) (bool, error) {
	for _, m := range r[group] {
		if m == person {
			return true, nil
		}
	}
	return false, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func loadDefinitions(t *testing.T) *workflow.Definitions {
	defs, err := workflow.ParseDefinitions([]byte(testDefinitions))
	require.NoError(t, err)
	return defs
}

// seedPooled 创建一个处于任务池中的工作流条目
func seedPooled(t *testing.T, db *gorm.DB, id string, seq int64, step string) *model.WorkflowItemModel {
	now := time.Now()
	item := &model.WorkflowItemModel{
		ID:           id,
		ItemID:       "item-" + id,
		CollectionID: "C",
		SubmitterID:  "carol",
		WorkflowName: "default",
		State:        workflow.Pool(step).String(),
		Seq:          seq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repository.NewWorkflowItemRepository(db).Create(context.Background(), item))
	return item
}
