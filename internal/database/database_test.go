package database_test

import (
	"context"
	"testing"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/database"
	"github.com/mautops/submission-workflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildDSN 测试 PostgreSQL DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "wf", Password: "pw", DBName: "workflow", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=wf password=pw dbname=workflow sslmode=disable", dsn)
}

// TestGetPoolConfig 测试连接池默认值
func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{MaxOpenConns: 20})
	assert.Equal(t, 20, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)
	assert.Equal(t, 600, pool.ConnMaxIdleTime)
}

// TestMigrate 测试迁移创建全部表且可重复执行
func TestMigrate(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer database.Close(db)

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Migrate(db))

	for _, m := range []interface{}{
		&model.WorkflowItemModel{}, &model.TaskListItemModel{}, &model.StateHistoryModel{},
		&model.ItemModel{}, &model.WorkspaceItemModel{}, &model.GroupMemberModel{},
	} {
		assert.True(t, db.Migrator().HasTable(m))
	}
	assert.True(t, db.Migrator().HasIndex(&model.WorkflowItemModel{}, "idx_workflow_items_state_seq"))
	assert.True(t, database.CheckHealth(context.Background(), db))
}

// TestConnect_UnsupportedDriver 测试不支持的驱动
func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
	assert.False(t, database.CheckHealth(context.Background(), nil))
	assert.NoError(t, database.Close(nil))
}
