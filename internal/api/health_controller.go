package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/database"
	"gorm.io/gorm"
)

// Pinger 可探活的外部依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController 健康检查控制器
type HealthController struct {
	db    *gorm.DB
	cache Pinger
}

// NewHealthController 创建健康检查控制器,cache 为 nil 表示未启用 Redis
func NewHealthController(db *gorm.DB, cache Pinger) *HealthController {
	return &HealthController{
		db:    db,
		cache: cache,
	}
}

// Check 健康检查
func (c *HealthController) Check(ctx *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	if c.db != nil {
		if err := database.CheckHealth(reqCtx, c.db); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	// 缓存不可用时请求仍能降级处理,只标记为 degraded
	if c.cache != nil {
		if err := c.cache.Ping(reqCtx); err != nil {
			if status == "healthy" {
				status = "degraded"
			}
			checks["cache"] = "unhealthy: " + err.Error()
		} else {
			checks["cache"] = "healthy"
		}
	} else {
		checks["cache"] = "in-memory"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	ctx.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}
