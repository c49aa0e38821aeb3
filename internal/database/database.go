package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置,未设置的值使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 3600 // 1 小时
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = 600 // 10 分钟
	}
	return pool
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// 唯一约束冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.Path))
	case "postgres", "":
		dialector = postgres.Open(BuildDSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite 只允许一个写连接;内存库在连接关闭时丢失,连接不能过期
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
		return db, nil
	}

	pool := GetPoolConfig(cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_busy_timeout=5000"
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.ItemModel{},
		&model.MetadataValueModel{},
		&model.WorkspaceItemModel{},
		&model.WorkflowItemModel{},
		&model.TaskListItemModel{},
		&model.StateHistoryModel{},
		&model.EventModel{},
		&model.AuditLogModel{},
		&model.GroupModel{},
		&model.GroupMemberModel{},
		&model.GroupChildModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// CreateIndexes 创建模型标签之外的组合索引
func CreateIndexes(db *gorm.DB) error {
	indexes := []struct {
		name string
		sql  string
	}{
		// 任务池按状态过滤后按提交顺序排序
		{"idx_workflow_items_state_seq", "CREATE INDEX IF NOT EXISTS idx_workflow_items_state_seq ON workflow_items(state, seq)"},
		{"idx_workflow_items_owner_state", "CREATE INDEX IF NOT EXISTS idx_workflow_items_owner_state ON workflow_items(owner, state)"},
		{"idx_history_item_created", "CREATE INDEX IF NOT EXISTS idx_history_item_created ON state_history(item_id, created_at)"},
		{"idx_events_status_created", "CREATE INDEX IF NOT EXISTS idx_events_status_created ON events(status, created_at)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
		{"idx_group_members_person", "CREATE INDEX IF NOT EXISTS idx_group_members_person ON group_members(person_id)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}
	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(ctx context.Context, db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
