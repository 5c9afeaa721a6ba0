package service

import (
	"context"
	"fmt"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/cache"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// TaskService 检查任务服务接口: 执行人操作和管理操作
type TaskService interface {
	Assign(ctx context.Context, callerID string, req *AssignTaskRequest) (*checklist.Task, error)
	Get(ctx context.Context, callerID string, id string) (*checklist.Task, error)
	Start(ctx context.Context, callerID string, id string, machineID string) (*Result, error)
	Complete(ctx context.Context, callerID string, id string, req *CompleteTaskRequest) (*Result, error)
	Cancel(ctx context.Context, callerID string, id string, reason string) (*Result, error)
	CancelTemplate(ctx context.Context, callerID string, templateID string, reason string) ([]*checklist.Task, error)
}

// AssignTaskRequest 分配任务请求
type AssignTaskRequest struct {
	TemplateID string `json:"template_id" binding:"required"` // 模板 ID
	OwnerID    string `json:"owner_id" binding:"required"`    // 执行人
	Kind       string `json:"kind"`                           // task/worktask,默认 task
	BuddyID    string `json:"buddy_id"`                       // 搭档,仅作业任务
	MachineID  string `json:"machine_id"`                     // 预设设备
}

// CompleteTaskRequest 完成任务请求
type CompleteTaskRequest struct {
	MachineID string               `json:"machine_id"`
	Responses []checklist.Response `json:"responses"`
}

// TaskServiceDeps 任务服务依赖
type TaskServiceDeps struct {
	TaskMgr    integration.TaskManager
	Users      repository.UserRepository
	Resolver   *authority.Resolver
	Cache      cache.Service
	Notifier   integration.Notifier
	AuditLog   AuditLogService
	Dispatcher *Dispatcher
	Logger     *logrus.Logger
}

// taskService 任务服务实现
type taskService struct {
	TaskServiceDeps
	access *accessChecker
}

// NewTaskService 创建任务服务
func NewTaskService(deps TaskServiceDeps) TaskService {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = NewDispatcher(deps.Logger, 0)
	}
	return &taskService{
		TaskServiceDeps: deps,
		access:          &accessChecker{users: deps.Users, resolver: deps.Resolver, logger: deps.Logger},
	}
}

// Assign 分配任务,需要 checklists 模块编辑权限
func (s *taskService) Assign(ctx context.Context, callerID string, req *AssignTaskRequest) (*checklist.Task, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireModule(ctx, caller, ModuleChecklists, true); err != nil {
		return nil, err
	}

	kind := checklist.TaskKind(req.Kind)
	if kind == "" {
		kind = checklist.KindTask
	}

	task, err := s.TaskMgr.Assign(ctx, &integration.AssignRequest{
		TemplateID: req.TemplateID,
		OwnerID:    req.OwnerID,
		Kind:       kind,
		BuddyID:    req.BuddyID,
		MachineID:  req.MachineID,
		Actor:      caller.ID,
	})
	if err != nil {
		return nil, err
	}

	s.after(ctx, task, integration.EventTaskAssigned, caller.ID, integration.OperationAssign,
		map[string]interface{}{"template_id": req.TemplateID, "owner_id": req.OwnerID, "kind": string(kind)})
	return task, nil
}

// Get 获取任务: 所有者、有查看权限的复核人或管理员
func (s *taskService) Get(ctx context.Context, callerID string, id string) (*checklist.Task, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	task, err := s.TaskMgr.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.OwnerID == caller.ID || task.BuddyID == caller.ID {
		return task, nil
	}
	if err := s.access.authorizeOwner(ctx, caller, task.OwnerID, authority.KindView); err != nil {
		return nil, err
	}
	return task, nil
}

// Start 执行人开始任务
func (s *taskService) Start(ctx context.Context, callerID string, id string, machineID string) (*Result, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}

	task, err := s.TaskMgr.Start(ctx, id, caller.ID, machineID)
	if err != nil {
		return nil, err
	}

	s.after(ctx, task, integration.EventTaskStarted, caller.ID, integration.OperationStart,
		map[string]interface{}{"machine_id": machineID})
	return &Result{Task: task, Message: "task started"}, nil
}

// Complete 执行人提交回答
func (s *taskService) Complete(ctx context.Context, callerID string, id string, req *CompleteTaskRequest) (*Result, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}

	task, err := s.TaskMgr.Complete(ctx, id, caller.ID, req.Responses, req.MachineID)
	if err != nil {
		return nil, err
	}

	s.after(ctx, task, integration.EventTaskCompleted, caller.ID, integration.OperationComplete,
		map[string]interface{}{"machine_id": req.MachineID, "total_score": task.TotalScore})
	return &Result{
		Task:    task,
		Message: fmt.Sprintf("task completed, total score %.2f", task.TotalScore),
	}, nil
}

// Cancel 管理操作取消任务
func (s *taskService) Cancel(ctx context.Context, callerID string, id string, reason string) (*Result, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireModule(ctx, caller, ModuleChecklists, true); err != nil {
		return nil, err
	}

	task, err := s.TaskMgr.Cancel(ctx, id, caller.ID, reason)
	if err != nil {
		return nil, err
	}

	s.after(ctx, task, integration.EventTaskCancelled, caller.ID, integration.OperationCancel,
		map[string]interface{}{"reason": reason})
	return &Result{Task: task, Message: "task cancelled"}, nil
}

// CancelTemplate 模板下线时取消其全部未完成任务
func (s *taskService) CancelTemplate(ctx context.Context, callerID string, templateID string, reason string) ([]*checklist.Task, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireModule(ctx, caller, ModuleChecklists, true); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "template removed"
	}

	cancelled, err := s.TaskMgr.CancelByTemplate(ctx, templateID, caller.ID, reason)
	for _, task := range cancelled {
		s.after(ctx, task, integration.EventTaskCancelled, caller.ID, integration.OperationCancel,
			map[string]interface{}{"reason": reason, "template_id": templateID})
	}
	if err != nil {
		return cancelled, err
	}
	return cancelled, nil
}

func (s *taskService) after(ctx context.Context, task *checklist.Task, eventType integration.EventType, actor string, action string, details map[string]interface{}) {
	afterTransition(ctx, s.Dispatcher, s.Cache, s.Notifier, s.AuditLog, task, eventType, actor, action, details)
}
