package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/auth"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/service"
)

// ControlController 复核控制器
type ControlController struct {
	controlService service.ControlService
}

// NewControlController 创建复核控制器
func NewControlController(controlService service.ControlService) *ControlController {
	return &ControlController{controlService: controlService}
}

// ScoreRequest 打分请求
type ScoreRequest struct {
	Scores []checklist.ControlScore `json:"scores"`
	Note   string                   `json:"note"`
}

// DecisionRequest 审批/驳回请求
type DecisionRequest struct {
	Note string `json:"note"`
}

// ListControllable 待复核任务,按设备分组
// GET /api/v1/controls/tasks
func (c *ControlController) ListControllable(ctx *gin.Context) {
	groups, err := c.controlService.ListControllable(ctx.Request.Context(), auth.UserID(ctx))
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, groups)
}

// Score 复核打分
// POST /api/v1/tasks/:id/score
func (c *ControlController) Score(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req ScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	note, ok := cleanNote(ctx, req.Note)
	if !ok {
		return
	}

	result, err := c.controlService.Score(ctx.Request.Context(), auth.UserID(ctx), id, req.Scores, note)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// Approve 复核通过
// POST /api/v1/tasks/:id/approve
func (c *ControlController) Approve(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req DecisionRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}

	note, ok := cleanNote(ctx, req.Note)
	if !ok {
		return
	}

	result, err := c.controlService.Approve(ctx.Request.Context(), auth.UserID(ctx), id, note)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// Reject 复核驳回
// POST /api/v1/tasks/:id/reject
func (c *ControlController) Reject(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req DecisionRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}

	note, ok := cleanNote(ctx, req.Note)
	if !ok {
		return
	}

	result, err := c.controlService.Reject(ctx.Request.Context(), auth.UserID(ctx), id, note)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// bindOptionalJSON 请求体可以为空
func bindOptionalJSON(ctx *gin.Context, obj interface{}) bool {
	if ctx.Request.ContentLength == 0 {
		return true
	}
	if err := ctx.ShouldBindJSON(obj); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return false
	}
	return true
}
