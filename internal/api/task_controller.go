package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/auth"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/mautops/checklist-gin/internal/utils"
)

// TaskController 任务控制器: 分配、执行、取消和查询
type TaskController struct {
	taskService  service.TaskService
	queryService service.QueryService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService, queryService service.QueryService) *TaskController {
	return &TaskController{
		taskService:  taskService,
		queryService: queryService,
	}
}

// StartTaskRequest 开始任务请求
type StartTaskRequest struct {
	MachineID string `json:"machine_id"`
}

// CancelTaskRequest 取消任务请求
type CancelTaskRequest struct {
	Reason string `json:"reason"`
}

// Assign 分配任务
// POST /api/v1/tasks
func (c *TaskController) Assign(ctx *gin.Context) {
	var req service.AssignTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	task, err := c.taskService.Assign(ctx.Request.Context(), auth.UserID(ctx), &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, task)
}

// Get 获取任务详情
// GET /api/v1/tasks/:id
func (c *TaskController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	task, err := c.taskService.Get(ctx.Request.Context(), auth.UserID(ctx), id)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, task)
}

// Start 开始任务
// POST /api/v1/tasks/:id/start
func (c *TaskController) Start(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req StartTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.taskService.Start(ctx.Request.Context(), auth.UserID(ctx), id, req.MachineID)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// Complete 提交回答并完成任务
// POST /api/v1/tasks/:id/complete
func (c *TaskController) Complete(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req service.CompleteTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	result, err := c.taskService.Complete(ctx.Request.Context(), auth.UserID(ctx), id, &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// Cancel 取消任务
// POST /api/v1/tasks/:id/cancel
func (c *TaskController) Cancel(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	var req CancelTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	reason, ok := cleanNote(ctx, req.Reason)
	if !ok {
		return
	}

	result, err := c.taskService.Cancel(ctx.Request.Context(), auth.UserID(ctx), id, reason)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// CancelTemplate 取消模板下全部未完成的任务
// DELETE /api/v1/templates/:id/tasks?reason=
func (c *TaskController) CancelTemplate(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	reason, ok := cleanNote(ctx, ctx.Query("reason"))
	if !ok {
		return
	}

	tasks, err := c.taskService.CancelTemplate(ctx.Request.Context(), auth.UserID(ctx), id, reason)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, gin.H{"cancelled": len(tasks), "tasks": tasks})
}

// ListMine 列出当前用户的任务
// GET /api/v1/tasks?status=&page=&page_size=
func (c *TaskController) ListMine(ctx *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		Page     int    `form:"page"`
		PageSize int    `form:"page_size"`
	}
	if err := ctx.ShouldBindQuery(&query); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid query parameters", err.Error())
		return
	}

	filter := &service.ListTasksFilter{Page: query.Page, PageSize: query.PageSize}
	if query.Status != "" {
		status := checklist.Status(query.Status)
		filter.Status = &status
	}

	tasks, total, err := c.queryService.ListMine(ctx.Request.Context(), auth.UserID(ctx), filter)
	if err != nil {
		_ = ctx.Error(err)
		return
	}

	totalPage := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	Paginated(ctx, tasks, PaginationInfo{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// History 获取任务状态历史
// GET /api/v1/tasks/:id/history
func (c *TaskController) History(ctx *gin.Context) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}

	history, err := c.queryService.GetHistory(ctx.Request.Context(), auth.UserID(ctx), id)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, history)
}

// pathID 读取并校验路径中的 :id
func pathID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid id", err.Error())
		return "", false
	}
	return id, true
}

// cleanNote 清理备注或原因文本
func cleanNote(ctx *gin.Context, note string) (string, bool) {
	cleaned, err := utils.CleanNote(note)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid note", err.Error())
		return "", false
	}
	return cleaned, true
}
