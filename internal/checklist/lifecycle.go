package checklist

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Machine 检查任务生命周期状态机
// 每个方法都在副本上执行转换并返回新任务,校验失败时输入任务保持不变
type Machine struct {
	sm    *StateMachine
	now   func() time.Time
	newID func() string
}

// MachineOption 状态机选项
type MachineOption func(*Machine)

// WithClock 指定时钟(用于测试)
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator 指定任务 ID 生成器
func WithIDGenerator(gen func() string) MachineOption {
	return func(m *Machine) { m.newID = gen }
}

// NewMachine 创建生命周期状态机
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		sm:    NewStateMachine(),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Assign 按模板展开一个新任务
func (m *Machine) Assign(tpl *Template, ownerID string, kind TaskKind, buddyID string, machineID string) (*Task, error) {
	if tpl == nil {
		return nil, NotFound("template is required")
	}
	if ownerID == "" {
		return nil, MissingRequiredField("owner is required")
	}
	if !kind.Valid() {
		return nil, InvalidValue("unknown task kind %q", kind)
	}
	if buddyID != "" {
		if kind != KindWorkTask {
			return nil, InvalidValue("only work tasks can have a buddy")
		}
		if buddyID == ownerID {
			return nil, InvalidValue("buddy must differ from owner")
		}
	}
	if len(tpl.Items) == 0 {
		return nil, MissingRequiredField("template %q has no items", tpl.ID)
	}

	items := make([]Item, len(tpl.Items))
	for i, ti := range tpl.Items {
		if ti.MaxPoints < 0 {
			return nil, InvalidValue("template item %d has negative max points", i)
		}
		items[i] = Item{Question: ti.Question, MaxPoints: ti.MaxPoints}
	}

	now := m.now()
	return &Task{
		ID:         m.newID(),
		Kind:       kind,
		OwnerID:    ownerID,
		TemplateID: tpl.ID,
		MachineID:  machineID,
		BuddyID:    buddyID,
		Items:      items,
		Status:     StatusAssigned,
		AssignedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Start 执行人开始任务
func (m *Machine) Start(t *Task, actor string, machineID string, activeMachines []string) (*Task, error) {
	if actor != t.OwnerID {
		return nil, PermissionDenied("only the owner can start task %q", t.ID)
	}
	if t.Status != StatusAssigned {
		return nil, InvalidTransition("task %q is %s, start requires assigned", t.ID, t.Status)
	}
	if machineID == "" {
		return nil, MissingRequiredField("machine is required to start a task")
	}
	if !contains(activeMachines, machineID) {
		return nil, PermissionDenied("machine %q is not in the owner's active selection", machineID)
	}

	next := t.Clone()
	now := m.now()
	next.Status = StatusStarted
	next.MachineID = machineID
	next.StartedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Complete 执行人提交回答并完成任务,start 可以跳过
func (m *Machine) Complete(t *Task, actor string, responses []Response, machineID string) (*Task, error) {
	if actor != t.OwnerID {
		return nil, PermissionDenied("only the owner can complete task %q", t.ID)
	}
	if err := m.sm.Check(t.Status, StatusCompleted); err != nil {
		return nil, err
	}
	if machineID == "" {
		return nil, MissingRequiredField("machine is required to complete a task")
	}
	if len(responses) != len(t.Items) {
		return nil, MissingRequiredField("expected %d responses, got %d", len(t.Items), len(responses))
	}

	next := t.Clone()
	for i := range next.Items {
		next.Items[i].Answered = responses[i].Answered
		if responses[i].Answered {
			next.Items[i].AwardedPoints = next.Items[i].MaxPoints
		} else {
			next.Items[i].AwardedPoints = 0
		}
	}
	now := m.now()
	next.TotalScore = AwardedTotal(next.Items)
	next.MachineID = machineID
	next.Status = StatusCompleted
	next.CompletedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Score 复核人逐项打分,打分即通过,没有单独的审批步骤
func (m *Machine) Score(t *Task, actor string, scores []ControlScore, note string) (*Task, error) {
	if actor == "" {
		return nil, PermissionDenied("scorer is required")
	}
	if err := m.sm.Check(t.Status, StatusApproved); err != nil {
		return nil, err
	}
	if len(scores) != len(t.Items) {
		return nil, MissingRequiredField("expected %d control scores, got %d", len(t.Items), len(scores))
	}
	for i, s := range scores {
		if s.Points < 0 {
			return nil, InvalidValue("control points for item %d must not be negative", i)
		}
		if limit := t.Items[i].controlLimit(); s.Points > limit {
			return nil, InvalidValue("control points for item %d exceed max %.2f", i, limit)
		}
	}

	next := t.Clone()
	for i := range next.Items {
		next.Items[i].ControlPoints = scores[i].Points
		next.Items[i].ControlComment = scores[i].Comment
		next.Items[i].ControlSource = ControlSourceController
	}
	now := m.now()
	next.ControlTotalScore = Sum(scores, func(s ControlScore) float64 { return s.Points })
	next.ControlNote = note
	next.Status = StatusApproved
	next.ScorerID = actor
	next.ScoredAt = &now
	next.DeciderID = actor
	next.DecidedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Approve 审批通过,总分保持完成时的计算结果
func (m *Machine) Approve(t *Task, actor string, note string) (*Task, error) {
	return m.decide(t, actor, StatusApproved, note)
}

// Reject 审批驳回,必须填写驳回意见
func (m *Machine) Reject(t *Task, actor string, note string) (*Task, error) {
	return m.decide(t, actor, StatusRejected, note)
}

func (m *Machine) decide(t *Task, actor string, to Status, note string) (*Task, error) {
	if actor == "" {
		return nil, PermissionDenied("approver is required")
	}
	if err := m.sm.Check(t.Status, to); err != nil {
		return nil, err
	}
	if to == StatusRejected && strings.TrimSpace(note) == "" {
		return nil, MissingRequiredField("a note is required to reject task %q", t.ID)
	}

	next := t.Clone()
	now := m.now()
	next.Status = to
	next.ControlNote = note
	next.DeciderID = actor
	next.DecidedAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Cancel 管理操作取消任务(例如模板被删除)
func (m *Machine) Cancel(t *Task, actor string, reason string) (*Task, error) {
	if actor == "" {
		return nil, PermissionDenied("cancel requires an operator")
	}
	if err := m.sm.Check(t.Status, StatusCancelled); err != nil {
		return nil, err
	}

	next := t.Clone()
	now := m.now()
	next.Status = StatusCancelled
	next.ControlNote = reason
	next.DeciderID = actor
	next.DecidedAt = &now
	next.UpdatedAt = now
	return next, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
