package container

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/checklist-gin/internal/auth"
	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/cache"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/config"
	"github.com/mautops/checklist-gin/internal/database"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/metrics"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// metricsInterval 任务状态指标的采集间隔
const metricsInterval = 30 * time.Second

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、缓存、服务、客户端等
type Container struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *gorm.DB

	cache      cache.Service
	redisCache *cache.RedisCache
	roleCache  *authority.RoleCache
	resolver   *authority.Resolver
	taskMgr    integration.TaskManager
	notifier   integration.Notifier
	dispatcher *service.Dispatcher
	collector  *metrics.Collector
	validator  *auth.KeycloakTokenValidator

	taskService    service.TaskService
	queryService   service.QueryService
	controlService service.ControlService
	roleService    service.RoleService
}

// NewContainer 创建依赖注入容器
// 数据库连接带退避重试,连接成功后执行迁移
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	db, err := database.ConnectWithRetry(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return NewContainerWithDB(ctx, cfg, db, logger), nil
}

// NewContainerWithDB 基于已打开的数据库创建容器
func NewContainerWithDB(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *logrus.Logger) *Container {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Container{cfg: cfg, logger: logger, db: db}

	// 1. 缓存: Redis 不可用时退回进程内缓存
	c.cache = cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		client, err := cache.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, using in-memory cache")
		} else {
			c.redisCache = cache.NewRedisCache(client, cfg.Redis.KeyPrefix)
			c.cache = c.redisCache
		}
	}

	// 2. 角色解析
	roles := repository.NewRoleRepository(db)
	c.roleCache = authority.NewRoleCache(roles, cfg.Cache.RoleTTL)
	c.resolver = authority.NewResolver(c.roleCache, cfg.Authority.AdminRole, logger)

	// 3. 任务状态机和搭档同步
	c.taskMgr = integration.NewTaskManager(db, checklist.NewMachine(), integration.NewMachineSelector(db))
	buddy := integration.NewBuddyPropagator(c.taskMgr, logger)

	// 4. 通知发件箱,补发上次未送达的事件
	c.notifier = integration.NewNotifier(db, integration.NotifierOptions{
		WebhookURL: cfg.Notification.WebhookURL,
		Workers:    cfg.Notification.Workers,
		QueueSize:  cfg.Notification.QueueSize,
		MaxRetries: cfg.Notification.MaxRetries,
		Timeout:    cfg.Notification.Timeout,
	}, logger)
	if n, err := c.notifier.Replay(ctx); err != nil {
		logger.WithError(err).Warn("failed to replay pending events")
	} else if n > 0 {
		logger.WithField("count", n).Info("replaying pending events")
	}

	// 5. 服务
	c.dispatcher = service.NewDispatcher(logger, 5*time.Second)
	users := repository.NewUserRepository(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	c.taskService = service.NewTaskService(service.TaskServiceDeps{
		TaskMgr:    c.taskMgr,
		Users:      users,
		Resolver:   c.resolver,
		Cache:      c.cache,
		Notifier:   c.notifier,
		AuditLog:   audit,
		Dispatcher: c.dispatcher,
		Logger:     logger,
	})
	c.queryService = service.NewQueryService(db, c.taskMgr, c.resolver, logger)
	c.controlService = service.NewControlService(service.ControlServiceDeps{
		TaskMgr:    c.taskMgr,
		Buddy:      buddy,
		Users:      users,
		Resolver:   c.resolver,
		Cache:      c.cache,
		Notifier:   c.notifier,
		AuditLog:   audit,
		Dispatcher: c.dispatcher,
		ListTTL:    cfg.Cache.ControlListTTL,
		Logger:     logger,
	})
	c.roleService = service.NewRoleService(service.RoleServiceDeps{
		Roles:      roles,
		RoleCache:  c.roleCache,
		Users:      users,
		Resolver:   c.resolver,
		Cache:      c.cache,
		AuditLog:   audit,
		Dispatcher: c.dispatcher,
		Logger:     logger,
	})

	// 6. 认证
	if cfg.Auth.Mode == auth.ModeKeycloak {
		c.validator = auth.NewKeycloakTokenValidator(cfg.Auth.Keycloak.Issuer, cfg.Auth.Keycloak.JWKSURL)
	}

	// 7. 指标采集
	c.collector = metrics.NewCollector(db, repository.NewTaskRepository(db), metricsInterval)
	c.collector.Start()

	return c
}

// Config 获取配置
func (c *Container) Config() *config.Config { return c.cfg }

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger { return c.logger }

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB { return c.db }

// Cache 获取缓存服务
func (c *Container) Cache() cache.Service { return c.cache }

// RedisCache 获取 Redis 缓存,未启用或不可用时为 nil
func (c *Container) RedisCache() *cache.RedisCache { return c.redisCache }

// RoleCache 获取角色缓存
func (c *Container) RoleCache() *authority.RoleCache { return c.roleCache }

// TaskManager 获取任务管理器
func (c *Container) TaskManager() integration.TaskManager { return c.taskMgr }

// KeycloakValidator 获取 Keycloak Token 验证器,header 模式下为 nil
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator { return c.validator }

// TaskService 获取任务服务
func (c *Container) TaskService() service.TaskService { return c.taskService }

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService { return c.queryService }

// ControlService 获取复核服务
func (c *Container) ControlService() service.ControlService { return c.controlService }

// RoleService 获取角色服务
func (c *Container) RoleService() service.RoleService { return c.roleService }

// Close 关闭容器,等待异步副作用结束后再释放连接
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.dispatcher != nil {
		c.dispatcher.Wait()
	}
	if c.notifier != nil {
		c.notifier.Stop()
	}
	if c.redisCache != nil {
		if err := c.redisCache.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close redis")
		}
	}
	if c.db != nil {
		return database.Close(c.db)
	}
	return nil
}
