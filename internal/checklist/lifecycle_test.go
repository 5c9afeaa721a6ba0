package checklist_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func newTestMachine() *checklist.Machine {
	n := 0
	return checklist.NewMachine(
		checklist.WithClock(func() time.Time { return fixedNow }),
		checklist.WithIDGenerator(func() string {
			n++
			return "task-" + string(rune('0'+n))
		}),
	)
}

func moldChangeTemplate() *checklist.Template {
	return &checklist.Template{
		ID:       "tpl-mold-change",
		Name:     "MoldChange",
		Category: checklist.CategoryEvent,
		Items: []checklist.TemplateItem{
			{Question: "模具已锁紧", MaxPoints: 10},
			{Question: "冷却水已连接", MaxPoints: 10},
			{Question: "试模件已检查", MaxPoints: 10},
		},
	}
}

func assignedTask(t *testing.T, m *checklist.Machine) *checklist.Task {
	task, err := m.Assign(moldChangeTemplate(), "u1", checklist.KindWorkTask, "u2", "")
	require.NoError(t, err)
	return task
}

// TestMachine_Assign 测试按模板展开任务
func TestMachine_Assign(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	assert.Equal(t, checklist.StatusAssigned, task.Status)
	assert.Equal(t, "u1", task.OwnerID)
	assert.Equal(t, "u2", task.BuddyID)
	assert.Len(t, task.Items, 3)
	assert.Equal(t, 10.0, task.Items[0].MaxPoints)
	assert.Equal(t, fixedNow, task.AssignedAt)
}

// TestMachine_AssignRejectsBuddyOnPlainTask 测试普通任务不能有搭档
func TestMachine_AssignRejectsBuddyOnPlainTask(t *testing.T) {
	m := newTestMachine()
	_, err := m.Assign(moldChangeTemplate(), "u1", checklist.KindTask, "u2", "")
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)

	_, err = m.Assign(moldChangeTemplate(), "u1", checklist.KindWorkTask, "u1", "")
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)
}

// TestMachine_Start 测试开始任务
func TestMachine_Start(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	started, err := m.Start(task, "u1", "press-7", []string{"press-7", "press-8"})
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusStarted, started.Status)
	assert.Equal(t, "press-7", started.MachineID)
	require.NotNil(t, started.StartedAt)

	// 原任务不变
	assert.Equal(t, checklist.StatusAssigned, task.Status)
	assert.Nil(t, task.StartedAt)
}

// TestMachine_StartGuards 测试开始任务的各项校验
func TestMachine_StartGuards(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	_, err := m.Start(task, "u9", "press-7", []string{"press-7"})
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)

	_, err = m.Start(task, "u1", "", []string{"press-7"})
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	_, err = m.Start(task, "u1", "press-9", []string{"press-7"})
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)

	started, err := m.Start(task, "u1", "press-7", []string{"press-7"})
	require.NoError(t, err)
	_, err = m.Start(started, "u1", "press-7", []string{"press-7"})
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)
}

// TestMachine_CompleteFromAssigned 测试跳过 start 直接完成并计算总分
func TestMachine_CompleteFromAssigned(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	done, err := m.Complete(task, "u1", []checklist.Response{
		{Answered: true}, {Answered: false}, {Answered: true},
	}, "press-7")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusCompleted, done.Status)
	assert.Equal(t, 20.0, done.TotalScore)
	assert.Equal(t, 0.0, done.Items[1].AwardedPoints)
	assert.Equal(t, checklist.AwardedTotal(done.Items), done.TotalScore)
	assert.Equal(t, "press-7", done.MachineID)
}

// TestMachine_CompleteTwice 测试重复完成返回 InvalidTransition
func TestMachine_CompleteTwice(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)
	responses := []checklist.Response{{Answered: true}, {Answered: true}, {Answered: true}}

	done, err := m.Complete(task, "u1", responses, "press-7")
	require.NoError(t, err)

	_, err = m.Complete(done, "u1", responses, "press-7")
	require.Error(t, err)
	kind, ok := checklist.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, checklist.KindInvalidTransition, kind)
}

// TestMachine_CompleteGuards 测试完成任务的必填校验
func TestMachine_CompleteGuards(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	_, err := m.Complete(task, "u1", []checklist.Response{{}, {}, {}}, "")
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	_, err = m.Complete(task, "u1", []checklist.Response{{}}, "press-7")
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	_, err = m.Complete(task, "u2", []checklist.Response{{}, {}, {}}, "press-7")
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)
}

func completedTask(t *testing.T, m *checklist.Machine) *checklist.Task {
	task := assignedTask(t, m)
	done, err := m.Complete(task, "u1", []checklist.Response{
		{Answered: true}, {Answered: true}, {Answered: true},
	}, "press-7")
	require.NoError(t, err)
	return done
}

// TestMachine_Score 测试打分并直接通过
func TestMachine_Score(t *testing.T) {
	m := newTestMachine()
	done := completedTask(t, m)

	scored, err := m.Score(done, "sup-1", []checklist.ControlScore{
		{Points: 10}, {Points: 8, Comment: "水管接头渗漏"}, {Points: 10},
	}, "ok")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusApproved, scored.Status)
	assert.Equal(t, 28.0, scored.ControlTotalScore)
	assert.Equal(t, checklist.ControlTotal(scored.Items), scored.ControlTotalScore)
	assert.Equal(t, "水管接头渗漏", scored.Items[1].ControlComment)
	assert.Equal(t, checklist.ControlSourceController, scored.Items[1].ControlSource)
	assert.Equal(t, "sup-1", scored.ScorerID)
	require.NotNil(t, scored.DecidedAt)
	// 打分不改变执行总分
	assert.Equal(t, 30.0, scored.TotalScore)
}

// TestMachine_ScoreUnansweredItem 未作答的项只能给 0 分
func TestMachine_ScoreUnansweredItem(t *testing.T) {
	m := newTestMachine()
	done, err := m.Complete(assignedTask(t, m), "u1", []checklist.Response{
		{Answered: true}, {Answered: false}, {Answered: true},
	}, "press-7")
	require.NoError(t, err)

	_, err = m.Score(done, "sup-1", []checklist.ControlScore{{Points: 10}, {Points: 5}, {Points: 10}}, "")
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)

	scored, err := m.Score(done, "sup-1", []checklist.ControlScore{{Points: 10}, {Points: 0}, {Points: 10}}, "")
	require.NoError(t, err)
	assert.Equal(t, 20.0, scored.ControlTotalScore)
	assert.LessOrEqual(t, scored.ControlTotalScore, done.TotalScore)
}

// TestMachine_ScoreGuards 测试打分校验
func TestMachine_ScoreGuards(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	_, err := m.Score(task, "sup-1", []checklist.ControlScore{{}, {}, {}}, "")
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)

	done := completedTask(t, m)
	_, err = m.Score(done, "sup-1", []checklist.ControlScore{{Points: 1}}, "")
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	_, err = m.Score(done, "sup-1", []checklist.ControlScore{{Points: -1}, {}, {}}, "")
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)

	_, err = m.Score(done, "sup-1", []checklist.ControlScore{{Points: 11}, {}, {}}, "")
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)

	// 校验失败不修改原任务
	assert.Equal(t, checklist.StatusCompleted, done.Status)
	assert.Equal(t, 0.0, done.ControlTotalScore)
}

// TestMachine_ApproveReject 测试审批通过与驳回
func TestMachine_ApproveReject(t *testing.T) {
	m := newTestMachine()
	done := completedTask(t, m)

	approved, err := m.Approve(done, "mgr-1", "")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusApproved, approved.Status)
	assert.Equal(t, done.TotalScore, approved.TotalScore)
	assert.Equal(t, "mgr-1", approved.DeciderID)

	_, err = m.Reject(done, "mgr-1", "   ")
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	rejected, err := m.Reject(done, "mgr-1", "照片缺失")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusRejected, rejected.Status)
	assert.Equal(t, "照片缺失", rejected.ControlNote)

	_, err = m.Approve(rejected, "mgr-1", "")
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)
}

// TestMachine_Cancel 测试管理取消
func TestMachine_Cancel(t *testing.T) {
	m := newTestMachine()
	task := assignedTask(t, m)

	cancelled, err := m.Cancel(task, "admin", "template removed")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusCancelled, cancelled.Status)
	assert.True(t, cancelled.Status.IsTerminal())

	done := completedTask(t, m)
	_, err = m.Cancel(done, "admin", "template removed")
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)
}

// TestError_Is 测试错误类型匹配
func TestError_Is(t *testing.T) {
	err := checklist.NotFound("task %q not found", "t-1")
	assert.True(t, errors.Is(err, checklist.ErrNotFound))
	assert.False(t, errors.Is(err, checklist.ErrPermissionDenied))
	assert.Contains(t, err.Error(), "t-1")
}
