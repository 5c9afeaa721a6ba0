package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/metrics"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"gorm.io/gorm"
)

// 生命周期操作名,同时用于状态历史和指标
const (
	OperationAssign      = "assign"
	OperationStart       = "start"
	OperationComplete    = "complete"
	OperationScore       = "score"
	OperationApprove     = "approve"
	OperationReject      = "reject"
	OperationCancel      = "cancel"
	OperationBuddyMirror = "buddy_mirror"
)

// TaskManager 检查任务管理器
// 读取一条记录,交给 checklist.Machine 计算新状态,再按原状态做条件写入
type TaskManager interface {
	Assign(ctx context.Context, req *AssignRequest) (*checklist.Task, error)
	Get(ctx context.Context, id string) (*checklist.Task, error)
	Start(ctx context.Context, id string, actor string, machineID string) (*checklist.Task, error)
	Complete(ctx context.Context, id string, actor string, responses []checklist.Response, machineID string) (*checklist.Task, error)
	Score(ctx context.Context, id string, actor string, scores []checklist.ControlScore, note string) (*checklist.Task, error)
	Approve(ctx context.Context, id string, actor string, note string) (*checklist.Task, error)
	Reject(ctx context.Context, id string, actor string, note string) (*checklist.Task, error)
	Cancel(ctx context.Context, id string, actor string, reason string) (*checklist.Task, error)
	CancelByTemplate(ctx context.Context, templateID string, actor string, reason string) ([]*checklist.Task, error)
	Query(ctx context.Context, filter *repository.TaskFilter) ([]*checklist.Task, error)
	History(ctx context.Context, id string) ([]*model.StateHistoryModel, error)
	FindBuddyMatch(ctx context.Context, ownerID, templateID, excludeID string) (*checklist.Task, error)
	// Override 管理覆盖写入,不经过生命周期状态机
	Override(ctx context.Context, before, after *checklist.Task, operation string, actor string, reason string) error
}

// AssignRequest 任务分配参数
type AssignRequest struct {
	TemplateID string
	OwnerID    string
	Kind       checklist.TaskKind
	BuddyID    string
	MachineID  string
	Actor      string
}

// dbTaskManager 基于数据库的任务管理器
type dbTaskManager struct {
	db       *gorm.DB
	machine  *checklist.Machine
	selector MachineSelector
	taskRepo repository.TaskRepository
	tplRepo  repository.TemplateRepository
	userRepo repository.UserRepository
}

// NewTaskManager 创建任务管理器
func NewTaskManager(db *gorm.DB, machine *checklist.Machine, selector MachineSelector) TaskManager {
	// 如果没有提供状态机,创建默认实例
	if machine == nil {
		machine = checklist.NewMachine()
	}
	if selector == nil {
		selector = NewMachineSelector(db)
	}

	return &dbTaskManager{
		db:       db,
		machine:  machine,
		selector: selector,
		taskRepo: repository.NewTaskRepository(db),
		tplRepo:  repository.NewTemplateRepository(db),
		userRepo: repository.NewUserRepository(db),
	}
}

// Assign 按模板为用户分配任务
func (m *dbTaskManager) Assign(ctx context.Context, req *AssignRequest) (*checklist.Task, error) {
	owner, err := m.userRepo.FindByID(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsActive() {
		return nil, checklist.InvalidValue("owner %q is inactive", req.OwnerID)
	}
	if req.BuddyID != "" {
		if _, err := m.userRepo.FindByID(ctx, req.BuddyID); err != nil {
			return nil, err
		}
	}

	tpl, err := m.tplRepo.FindByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	task, err := m.machine.Assign(tpl.ToDomain(), req.OwnerID, req.Kind, req.BuddyID, req.MachineID)
	if err != nil {
		recordResult(OperationAssign, err)
		return nil, err
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewTaskRepository(tx).Create(ctx, model.NewChecklistTaskModel(task)); err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		return saveHistory(ctx, tx, task.ID, "", task.Status, OperationAssign, "", req.Actor, false)
	})
	if err != nil {
		return nil, err
	}

	recordResult(OperationAssign, nil)
	metrics.RecordTaskAssigned(string(task.Kind))
	return task, nil
}

// Get 获取任务
func (m *dbTaskManager) Get(ctx context.Context, id string) (*checklist.Task, error) {
	tm, err := m.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return tm.ToDomain(), nil
}

// Start 开始任务
func (m *dbTaskManager) Start(ctx context.Context, id string, actor string, machineID string) (*checklist.Task, error) {
	return m.transition(ctx, id, actor, OperationStart, "", func(t *checklist.Task) (*checklist.Task, error) {
		var active []string
		if actor == t.OwnerID && machineID != "" {
			var err error
			if active, err = m.selector.ActiveMachines(ctx, actor); err != nil {
				return nil, fmt.Errorf("failed to load active machines: %w", err)
			}
		}
		return m.machine.Start(t, actor, machineID, active)
	})
}

// Complete 完成任务
func (m *dbTaskManager) Complete(ctx context.Context, id string, actor string, responses []checklist.Response, machineID string) (*checklist.Task, error) {
	return m.transition(ctx, id, actor, OperationComplete, "", func(t *checklist.Task) (*checklist.Task, error) {
		return m.machine.Complete(t, actor, responses, machineID)
	})
}

// Score 复核打分
func (m *dbTaskManager) Score(ctx context.Context, id string, actor string, scores []checklist.ControlScore, note string) (*checklist.Task, error) {
	return m.transition(ctx, id, actor, OperationScore, note, func(t *checklist.Task) (*checklist.Task, error) {
		return m.machine.Score(t, actor, scores, note)
	})
}

// Approve 复核通过
func (m *dbTaskManager) Approve(ctx context.Context, id string, actor string, note string) (*checklist.Task, error) {
	return m.transition(ctx, id, actor, OperationApprove, note, func(t *checklist.Task) (*checklist.Task, error) {
		return m.machine.Approve(t, actor, note)
	})
}

// Reject 复核驳回
func (m *dbTaskManager) Reject(ctx context.Context, id string, actor string, note string) (*checklist.Task, error) {
	return m.transition(ctx, id, actor, OperationReject, note, func(t *checklist.Task) (*checklist.Task, error) {
		return m.machine.Reject(t, actor, note)
	})
}

// Cancel 取消任务
func (m *dbTaskManager) Cancel(ctx context.Context, id string, actor string, reason string) (*checklist.Task, error) {
	return m.transition(ctx, id, actor, OperationCancel, reason, func(t *checklist.Task) (*checklist.Task, error) {
		return m.machine.Cancel(t, actor, reason)
	})
}

// CancelByTemplate 取消模板下所有未完成的任务
// 单个任务被并发推进时跳过,不影响其他任务
func (m *dbTaskManager) CancelByTemplate(ctx context.Context, templateID string, actor string, reason string) ([]*checklist.Task, error) {
	open, err := m.taskRepo.FindByFilter(ctx, &repository.TaskFilter{
		Statuses:   []checklist.Status{checklist.StatusAssigned, checklist.StatusStarted},
		TemplateID: &templateID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find open tasks: %w", err)
	}

	cancelled := make([]*checklist.Task, 0, len(open))
	for _, tm := range open {
		task, err := m.Cancel(ctx, tm.ID, actor, reason)
		if err != nil {
			if errors.Is(err, checklist.ErrInvalidTransition) {
				continue
			}
			return cancelled, err
		}
		cancelled = append(cancelled, task)
	}
	return cancelled, nil
}

// Query 查询任务
func (m *dbTaskManager) Query(ctx context.Context, filter *repository.TaskFilter) ([]*checklist.Task, error) {
	models, err := m.taskRepo.FindByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}
	tasks := make([]*checklist.Task, len(models))
	for i, tm := range models {
		tasks[i] = tm.ToDomain()
	}
	return tasks, nil
}

// History 获取任务状态历史
func (m *dbTaskManager) History(ctx context.Context, id string) ([]*model.StateHistoryModel, error) {
	return repository.NewStateHistoryRepository(m.db).FindByTaskID(ctx, id)
}

// FindBuddyMatch 查找搭档的同模板任务
func (m *dbTaskManager) FindBuddyMatch(ctx context.Context, ownerID, templateID, excludeID string) (*checklist.Task, error) {
	tm, err := m.taskRepo.FindBuddyMatch(ctx, ownerID, templateID, excludeID)
	if err != nil {
		return nil, err
	}
	return tm.ToDomain(), nil
}

// Override 管理覆盖写入
// 写入条件是记录仍处于 before 的状态,历史记录标记为 override
func (m *dbTaskManager) Override(ctx context.Context, before, after *checklist.Task, operation string, actor string, reason string) error {
	err := m.persist(ctx, before.Status, after, operation, actor, reason, true)
	recordResult(operation, err)
	return err
}

// transition 读取 -> 状态机 -> 条件写入
func (m *dbTaskManager) transition(ctx context.Context, id string, actor string, operation string, reason string, apply func(*checklist.Task) (*checklist.Task, error)) (*checklist.Task, error) {
	current, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := apply(current)
	if err != nil {
		recordResult(operation, err)
		return nil, err
	}

	if err := m.persist(ctx, current.Status, next, operation, actor, reason, false); err != nil {
		recordResult(operation, err)
		return nil, err
	}

	recordResult(operation, nil)
	return next, nil
}

// persist 条件写入任务并追加状态历史,两者在同一事务中
func (m *dbTaskManager) persist(ctx context.Context, from checklist.Status, next *checklist.Task, operation string, actor string, reason string, override bool) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewTaskRepository(tx).UpdateIfStatus(ctx, model.NewChecklistTaskModel(next), from); err != nil {
			return err
		}
		return saveHistory(ctx, tx, next.ID, from, next.Status, operation, reason, actor, override)
	})
}

func saveHistory(ctx context.Context, tx *gorm.DB, taskID string, from, to checklist.Status, operation, reason, actor string, override bool) error {
	if actor == "" {
		actor = "system"
	}
	history := &model.StateHistoryModel{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Operation:  operation,
		Reason:     reason,
		Operator:   actor,
		Override:   override,
		CreatedAt:  time.Now(),
	}
	if err := repository.NewStateHistoryRepository(tx).Save(ctx, history); err != nil {
		return fmt.Errorf("failed to save state history: %w", err)
	}
	return nil
}

func recordResult(operation string, err error) {
	if err == nil {
		metrics.RecordTransition(operation, "ok")
		return
	}
	if kind, ok := checklist.KindOf(err); ok {
		metrics.RecordTransition(operation, string(kind))
		return
	}
	metrics.RecordTransition(operation, "error")
}
