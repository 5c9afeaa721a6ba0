package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/cache"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// controllableKeyPrefix 待复核列表缓存键前缀
const controllableKeyPrefix = "controllable:"

// MachineGroup 按设备分组的待复核任务
type MachineGroup struct {
	MachineID string            `json:"machine_id"`
	Tasks     []*checklist.Task `json:"tasks"`
}

// Result 状态转换结果
type Result struct {
	Task    *checklist.Task `json:"task"`
	Message string          `json:"message"`
}

// ResolvedRoles 角色解析结果
type ResolvedRoles struct {
	Kind  authority.Kind `json:"kind"`
	All   bool           `json:"all"`
	Roles []string       `json:"roles"`
}

// ControlService 复核服务,所有复核操作先经过权限判断
type ControlService interface {
	ListControllable(ctx context.Context, callerID string) ([]MachineGroup, error)
	Score(ctx context.Context, callerID string, taskID string, scores []checklist.ControlScore, note string) (*Result, error)
	Approve(ctx context.Context, callerID string, taskID string, note string) (*Result, error)
	Reject(ctx context.Context, callerID string, taskID string, note string) (*Result, error)
	ResolveRoles(ctx context.Context, callerID string, kind authority.Kind) (*ResolvedRoles, error)
}

// ControlServiceDeps 复核服务依赖
type ControlServiceDeps struct {
	TaskMgr    integration.TaskManager
	Buddy      *integration.BuddyPropagator
	Users      repository.UserRepository
	Resolver   *authority.Resolver
	Cache      cache.Service
	Notifier   integration.Notifier
	AuditLog   AuditLogService
	Dispatcher *Dispatcher
	ListTTL    time.Duration
	Logger     *logrus.Logger
}

// controlService 复核服务实现
type controlService struct {
	ControlServiceDeps
	access *accessChecker
}

// NewControlService 创建复核服务
func NewControlService(deps ControlServiceDeps) ControlService {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = NewDispatcher(deps.Logger, 0)
	}
	return &controlService{
		ControlServiceDeps: deps,
		access:             &accessChecker{users: deps.Users, resolver: deps.Resolver, logger: deps.Logger},
	}
}

// ListControllable 列出调用者可以查看的待复核任务,按设备分组
func (s *controlService) ListControllable(ctx context.Context, callerID string) ([]MachineGroup, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}

	key := controllableKeyPrefix + caller.ID
	if groups, ok := s.cachedGroups(ctx, key); ok {
		return groups, nil
	}

	set, err := s.Resolver.Resolve(ctx, caller.RoleIDs, authority.KindView)
	if err != nil {
		return nil, err
	}
	groups := []MachineGroup{}
	if set.IsEmpty() {
		return groups, nil
	}

	tasks, err := s.TaskMgr.Query(ctx, &repository.TaskFilter{
		Statuses: []checklist.Status{checklist.StatusCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query completed tasks: %w", err)
	}

	if !set.IsAll() {
		tasks, err = s.filterByOwnerRoles(ctx, tasks, set)
		if err != nil {
			return nil, err
		}
	}

	groups = groupByMachine(tasks)
	if s.Cache != nil {
		if data, err := json.Marshal(groups); err == nil {
			if err := s.Cache.Set(ctx, key, data, s.ListTTL); err != nil {
				s.Logger.WithError(err).WithField("key", key).Warn("failed to cache controllable list")
			}
		}
	}
	return groups, nil
}

func (s *controlService) cachedGroups(ctx context.Context, key string) ([]MachineGroup, bool) {
	if s.Cache == nil {
		return nil, false
	}
	data, err := s.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.Logger.WithError(err).WithField("key", key).Warn("failed to read controllable list cache")
		}
		return nil, false
	}
	var groups []MachineGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, false
	}
	return groups, true
}

func (s *controlService) filterByOwnerRoles(ctx context.Context, tasks []*checklist.Task, set authority.RoleSet) ([]*checklist.Task, error) {
	ownerIDs := make([]string, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.OwnerID]; !ok {
			seen[t.OwnerID] = struct{}{}
			ownerIDs = append(ownerIDs, t.OwnerID)
		}
	}
	owners, err := s.Users.FindByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load task owners: %w", err)
	}
	allowed := make(map[string]bool, len(owners))
	for _, o := range owners {
		allowed[o.ID] = set.ContainsAny(o.RoleIDs)
	}

	out := make([]*checklist.Task, 0, len(tasks))
	for _, t := range tasks {
		if allowed[t.OwnerID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func groupByMachine(tasks []*checklist.Task) []MachineGroup {
	index := make(map[string]int)
	groups := []MachineGroup{}
	for _, t := range tasks {
		i, ok := index[t.MachineID]
		if !ok {
			i = len(groups)
			index[t.MachineID] = i
			groups = append(groups, MachineGroup{MachineID: t.MachineID})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].MachineID < groups[b].MachineID })
	return groups
}

// Score 复核打分,作业任务成功后同步到搭档
func (s *controlService) Score(ctx context.Context, callerID string, taskID string, scores []checklist.ControlScore, note string) (*Result, error) {
	caller, task, err := s.authorize(ctx, callerID, taskID, authority.KindScore)
	if err != nil {
		return nil, err
	}

	scored, err := s.TaskMgr.Score(ctx, task.ID, caller, scores, note)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Task:    scored,
		Message: fmt.Sprintf("task scored, control total %.2f", scored.ControlTotalScore),
	}
	if s.Buddy != nil {
		outcome, mirrored := s.Buddy.Propagate(ctx, scored)
		if outcome == integration.BuddyMirrored {
			result.Message += "; buddy task updated"
			s.afterTransition(ctx, mirrored, integration.EventTaskBuddyMirrored, caller, integration.OperationBuddyMirror,
				map[string]interface{}{"primary_task_id": scored.ID})
		}
	}

	s.afterTransition(ctx, scored, integration.EventTaskScored, caller, integration.OperationScore,
		map[string]interface{}{"control_total_score": scored.ControlTotalScore, "note": note})
	return result, nil
}

// Approve 复核通过
func (s *controlService) Approve(ctx context.Context, callerID string, taskID string, note string) (*Result, error) {
	caller, task, err := s.authorize(ctx, callerID, taskID, authority.KindApprove)
	if err != nil {
		return nil, err
	}

	approved, err := s.TaskMgr.Approve(ctx, task.ID, caller, note)
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, approved, integration.EventTaskApproved, caller, integration.OperationApprove,
		map[string]interface{}{"note": note})
	return &Result{Task: approved, Message: "task approved"}, nil
}

// Reject 复核驳回
func (s *controlService) Reject(ctx context.Context, callerID string, taskID string, note string) (*Result, error) {
	caller, task, err := s.authorize(ctx, callerID, taskID, authority.KindApprove)
	if err != nil {
		return nil, err
	}

	rejected, err := s.TaskMgr.Reject(ctx, task.ID, caller, note)
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, rejected, integration.EventTaskRejected, caller, integration.OperationReject,
		map[string]interface{}{"note": note})
	return &Result{Task: rejected, Message: "task rejected"}, nil
}

// ResolveRoles 返回调用者在指定权限下可复核的角色
func (s *controlService) ResolveRoles(ctx context.Context, callerID string, kind authority.Kind) (*ResolvedRoles, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	set, err := s.Resolver.Resolve(ctx, caller.RoleIDs, kind)
	if err != nil {
		return nil, err
	}
	return &ResolvedRoles{Kind: kind, All: set.IsAll(), Roles: set.IDs()}, nil
}

// authorize 加载调用者和任务,判断调用者对任务所有者是否有 kind 权限
func (s *controlService) authorize(ctx context.Context, callerID string, taskID string, kind authority.Kind) (string, *checklist.Task, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return "", nil, err
	}
	task, err := s.TaskMgr.Get(ctx, taskID)
	if err != nil {
		return "", nil, err
	}
	if err := s.access.authorizeOwner(ctx, caller, task.OwnerID, kind); err != nil {
		return "", nil, err
	}
	return caller.ID, task, nil
}

// afterTransition 缓存失效、通知和审计,全部异步执行
func (s *controlService) afterTransition(ctx context.Context, task *checklist.Task, eventType integration.EventType, actor string, action string, details map[string]interface{}) {
	afterTransition(ctx, s.Dispatcher, s.Cache, s.Notifier, s.AuditLog, task, eventType, actor, action, details)
}

func afterTransition(
	ctx context.Context,
	d *Dispatcher,
	c cache.Service,
	notifier integration.Notifier,
	audit AuditLogService,
	task *checklist.Task,
	eventType integration.EventType,
	actor string,
	action string,
	details map[string]interface{},
) {
	if c != nil {
		d.Go(ctx, "invalidate_controllable", func(ctx context.Context) error {
			return c.InvalidateByPattern(ctx, controllableKeyPrefix+"*")
		})
	}
	if notifier != nil {
		evt := integration.NewTaskEvent(eventType, task, actor)
		d.Go(ctx, "notify", func(ctx context.Context) error {
			return notifier.Notify(ctx, evt)
		})
	}
	if audit != nil {
		d.Go(ctx, "audit", func(ctx context.Context) error {
			return audit.RecordAction(ctx, actor, action, ResourceTask, task.ID, details)
		})
	}
}
