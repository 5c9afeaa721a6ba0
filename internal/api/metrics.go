package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/metrics"
)

// MetricsHandler Prometheus 指标处理器
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(metrics.Handler())
}
