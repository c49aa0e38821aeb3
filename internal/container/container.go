package container

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/submission-workflow/internal/auth"
	"github.com/mautops/submission-workflow/internal/config"
	"github.com/mautops/submission-workflow/internal/database"
	"github.com/mautops/submission-workflow/internal/integration"
	"github.com/mautops/submission-workflow/internal/logging"
	"github.com/mautops/submission-workflow/internal/repository"
	"github.com/mautops/submission-workflow/internal/service"
	"github.com/mautops/submission-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 工作流定义在这里加载一次,之后以只读引用传给各组件
type Container struct {
	cfg         *config.Config
	logger      *logrus.Logger
	db          *gorm.DB
	defs        *workflow.Definitions
	fgaClient   *auth.OpenFGAClient
	groups      GroupAdmin
	resolver    workflow.GroupResolver
	content     *integration.DBContentStore
	notifier    workflow.Notifier
	webhook     *integration.WebhookNotifier
	events      repository.EventRepository
	auditSvc    service.AuditLogService
	statsSvc    service.StatisticsService
	workflowSvc service.WorkflowService
}

// GroupAdmin 用户组维护
type GroupAdmin interface {
	AddMember(ctx context.Context, group string, person string) error
	RemoveMember(ctx context.Context, group string, person string) error
	AddChild(ctx context.Context, parent string, child string) error
}

// resettingGroupAdmin 维护用户组后清空成员缓存
type resettingGroupAdmin struct {
	GroupAdmin
	cache *auth.CachedGroupResolver
}

func (g *resettingGroupAdmin) AddMember(ctx context.Context, group string, person string) error {
	defer g.cache.Reset()
	return g.GroupAdmin.AddMember(ctx, group, person)
}

func (g *resettingGroupAdmin) RemoveMember(ctx context.Context, group string, person string) error {
	defer g.cache.Reset()
	return g.GroupAdmin.RemoveMember(ctx, group, person)
}

func (g *resettingGroupAdmin) AddChild(ctx context.Context, parent string, child string) error {
	defer g.cache.Reset()
	return g.GroupAdmin.AddChild(ctx, parent, child)
}

// NewContainer 创建依赖注入容器
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logging.NewLogger()
	}

	// 1. 加载工作流定义,配置错误在启动时暴露
	defs, err := workflow.LoadDefinitions(cfg.Workflow.Definitions)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow definitions: %w", err)
	}

	// 2. 初始化数据库(带重试机制)
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Container{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		defs:    defs,
		content: integration.NewDBContentStore(db, cfg.Workflow.HandlePrefix),
		events:  repository.NewEventRepository(db),
	}

	// 3. 用户组解析
	switch cfg.Workflow.GroupResolver {
	case "openfga":
		fgaClient, err := auth.NewOpenFGAClientWithRetry(cfg.OpenFGA.APIURL, cfg.OpenFGA.StoreID, cfg.OpenFGA.ModelID, 3, time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenFGA client: %w", err)
		}
		cached := auth.NewCachedGroupResolver(fgaClient, auth.NewMembershipCache(cfg.OpenFGA.CacheTTL))
		c.fgaClient = fgaClient
		c.groups = &resettingGroupAdmin{GroupAdmin: fgaClient, cache: cached}
		c.resolver = cached
	default:
		groups := repository.NewGroupRepository(db)
		c.groups = groups
		c.resolver = auth.NewDBGroupResolver(groups)
	}

	// 4. 通知
	var notifiers integration.MultiNotifier
	if cfg.Notify.Log {
		notifiers = append(notifiers, integration.NewLogNotifier(logger))
	}
	if len(cfg.Notify.Webhooks) > 0 {
		c.webhook = integration.NewWebhookNotifier(c.events, webhookOptions(cfg.Notify), logger)
		// 上次退出时未推送的事件重新入队
		if err := c.webhook.Start(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to replay pending notifications")
		}
		notifiers = append(notifiers, c.webhook)
	}
	if len(notifiers) == 0 {
		c.notifier = integration.NopNotifier{}
	} else {
		c.notifier = notifiers
	}

	// 5. 服务
	c.auditSvc = service.NewAuditLogService(repository.NewAuditLogRepository(db))
	c.statsSvc = service.NewStatisticsService(db)
	c.workflowSvc = service.NewWorkflowService(db, defs, c.content, c.resolver, c.notifier, c.auditSvc, logger, service.Options{
		AdminGroup:       cfg.Workflow.AdminGroup,
		NotifyOnClaim:    cfg.Workflow.NotifyOnClaim,
		RecordProvenance: cfg.Workflow.RecordProvenance,
	})

	return c, nil
}

func webhookOptions(cfg config.NotifyConfig) integration.WebhookOptions {
	endpoints := make([]integration.WebhookEndpoint, 0, len(cfg.Webhooks))
	for _, w := range cfg.Webhooks {
		endpoints = append(endpoints, integration.WebhookEndpoint{
			URL:      w.URL,
			Method:   w.Method,
			Headers:  w.Headers,
			AuthType: w.AuthType,
			AuthKey:  w.AuthKey,
			Token:    w.Token,
		})
	}
	return integration.WebhookOptions{
		Endpoints:    endpoints,
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		RateLimit:    cfg.RateLimit,
		Burst:        cfg.Burst,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Timeout:      cfg.Timeout,
	}
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Definitions 获取工作流定义
func (c *Container) Definitions() *workflow.Definitions {
	return c.defs
}

// OpenFGAClient 获取 OpenFGA 客户端,未启用时为 nil
func (c *Container) OpenFGAClient() *auth.OpenFGAClient {
	return c.fgaClient
}

// Groups 获取用户组维护接口
func (c *Container) Groups() GroupAdmin {
	return c.groups
}

// GroupResolver 获取用户组解析器
func (c *Container) GroupResolver() workflow.GroupResolver {
	return c.resolver
}

// ContentStore 获取内容存储
func (c *Container) ContentStore() *integration.DBContentStore {
	return c.content
}

// Events 获取通知事件仓储
func (c *Container) Events() repository.EventRepository {
	return c.events
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statsSvc
}

// WorkflowService 获取工作流服务
func (c *Container) WorkflowService() service.WorkflowService {
	return c.workflowSvc
}

// Close 关闭容器,等待在途通知后关闭数据库
func (c *Container) Close() error {
	if c.webhook != nil {
		c.webhook.Stop()
	}
	return database.Close(c.db)
}
