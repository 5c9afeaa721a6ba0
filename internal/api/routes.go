package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/auth"
	"github.com/mautops/checklist-gin/internal/config"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config         *config.Config
	Logger         *logrus.Logger
	DB             *gorm.DB
	Cache          Pinger // 可选,Redis 启用时用于健康检查
	Validator      *auth.KeycloakTokenValidator
	Tracing        *Tracing
	TaskService    service.TaskService
	QueryService   service.QueryService
	ControlService service.ControlService
	RoleService    service.RoleService
}

// SetupRoutesWithConfig 配置路由
func SetupRoutesWithConfig(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	if deps.Tracing != nil {
		router.Use(deps.Tracing.Middleware())
	}
	router.Use(RequestLogMiddleware(deps.Logger))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))

	// 健康检查和指标不需要认证
	health := NewHealthController(deps.DB, deps.Cache)
	router.GET("/health", health.Check)
	router.GET("/metrics", MetricsHandler())

	v1 := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	v1.Use(auth.Middleware(cfg.Auth.Mode, deps.Validator))
	v1.Use(ErrorHandlerMiddleware(deps.Logger))

	taskController := NewTaskController(deps.TaskService, deps.QueryService)
	controlController := NewControlController(deps.ControlService)
	roleController := NewRoleController(deps.RoleService, deps.ControlService)

	tasks := v1.Group("/tasks")
	{
		tasks.POST("", taskController.Assign)
		tasks.GET("", taskController.ListMine)
		tasks.GET("/:id", taskController.Get)
		tasks.GET("/:id/history", taskController.History)
		tasks.POST("/:id/start", taskController.Start)
		tasks.POST("/:id/complete", taskController.Complete)
		tasks.POST("/:id/cancel", taskController.Cancel)
		tasks.POST("/:id/score", controlController.Score)
		tasks.POST("/:id/approve", controlController.Approve)
		tasks.POST("/:id/reject", controlController.Reject)
	}

	v1.GET("/controls/tasks", controlController.ListControllable)
	v1.DELETE("/templates/:id/tasks", taskController.CancelTemplate)

	roles := v1.Group("/roles")
	{
		roles.GET("/resolve", roleController.Resolve)
		roles.PUT("/:id/authorities", roleController.ReplaceAuthorities)
	}

	return router
}
