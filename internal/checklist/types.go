package checklist

import "time"

// Status 检查任务状态
type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// IsTerminal 判断是否为终态
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusCancelled
}

// TaskKind 任务类别
type TaskKind string

const (
	// KindTask 普通检查任务,复核走 approve/reject
	KindTask TaskKind = "task"
	// KindWorkTask 作业任务,可以有搭档,复核走 score
	KindWorkTask TaskKind = "worktask"
)

// Valid 判断任务类别是否合法
func (k TaskKind) Valid() bool {
	return k == KindTask || k == KindWorkTask
}

// TemplateCategory 模板类别
type TemplateCategory string

const (
	CategoryRoutine TemplateCategory = "routine"
	CategoryEvent   TemplateCategory = "event"
)

// ControlSource 复核分来源
const (
	ControlSourceController = "controller"
	ControlSourceBuddy      = "buddy"
)

// TemplateItem 模板检查项
type TemplateItem struct {
	Question  string  `json:"question" yaml:"question"`
	MaxPoints float64 `json:"max_points" yaml:"max_points"`
}

// Template 检查单模板
type Template struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    TemplateCategory `json:"category"`
	Periodicity string           `json:"periodicity,omitempty"`
	Items       []TemplateItem   `json:"items"`
}

// Item 任务中的检查项快照
type Item struct {
	Question       string  `json:"question"`
	Answered       bool    `json:"answered"`
	AwardedPoints  float64 `json:"awarded_points"`
	MaxPoints      float64 `json:"max_points"`
	ControlPoints  float64 `json:"control_points"`
	ControlComment string  `json:"control_comment,omitempty"`
	ControlSource  string  `json:"control_source,omitempty"`
}

// controlLimit 复核分上限,未作答的项只能给 0 分
func (it Item) controlLimit() float64 {
	if !it.Answered {
		return 0
	}
	return it.MaxPoints
}

// Task 一次检查单执行
type Task struct {
	ID                string     `json:"id"`
	Kind              TaskKind   `json:"kind"`
	OwnerID           string     `json:"owner_id"`
	TemplateID        string     `json:"template_id"`
	MachineID         string     `json:"machine_id,omitempty"`
	BuddyID           string     `json:"buddy_id,omitempty"`
	Items             []Item     `json:"items"`
	Status            Status     `json:"status"`
	TotalScore        float64    `json:"total_score"`
	ControlTotalScore float64    `json:"control_total_score"`
	ControlNote       string     `json:"control_note,omitempty"`
	AssignedAt        time.Time  `json:"assigned_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ScoredAt          *time.Time `json:"scored_at,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	ScorerID          string     `json:"scorer_id,omitempty"`
	DeciderID         string     `json:"decider_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HasBuddy 判断是否为带搭档的作业任务
func (t *Task) HasBuddy() bool {
	return t.Kind == KindWorkTask && t.BuddyID != ""
}

// Clone 深拷贝任务
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Items = make([]Item, len(t.Items))
	copy(c.Items, t.Items)
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.ScoredAt = cloneTime(t.ScoredAt)
	c.DecidedAt = cloneTime(t.DecidedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Response 执行人对单个检查项的回答
type Response struct {
	Answered bool `json:"answered"`
}

// ControlScore 复核人对单个检查项的打分
type ControlScore struct {
	Points  float64 `json:"points"`
	Comment string  `json:"comment"`
}
