package checklist_test

import (
	"testing"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredPrimary(t *testing.T, m *checklist.Machine) *checklist.Task {
	done := completedTask(t, m)
	scored, err := m.Score(done, "sup-1", []checklist.ControlScore{
		{Points: 10}, {Points: 8, Comment: "渗漏"}, {Points: 10},
	}, "")
	require.NoError(t, err)
	return scored
}

// TestMirrorControlScores 测试搭档任务同步复核分
func TestMirrorControlScores(t *testing.T) {
	m := newTestMachine()
	primary := scoredPrimary(t, m)

	buddyTask, err := m.Assign(moldChangeTemplate(), "u2", checklist.KindWorkTask, "", "")
	require.NoError(t, err)
	buddyDone, err := m.Complete(buddyTask, "u2", []checklist.Response{{Answered: true}, {}, {}}, "press-7")
	require.NoError(t, err)

	mirrored, err := checklist.MirrorControlScores(primary, buddyDone, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusApproved, mirrored.Status)
	assert.Equal(t, 28.0, mirrored.ControlTotalScore)
	assert.Equal(t, 28.0, mirrored.TotalScore)
	assert.Equal(t, 8.0, mirrored.Items[1].ControlPoints)
	assert.Equal(t, "渗漏", mirrored.Items[1].ControlComment)
	for _, it := range mirrored.Items {
		assert.Equal(t, checklist.ControlSourceBuddy, it.ControlSource)
	}
	assert.Equal(t, checklist.StatusCompleted, buddyDone.Status)
}

// TestMirrorControlScores_ItemCountMismatch 测试搭档检查项多于主任务时平均分配
func TestMirrorControlScores_ItemCountMismatch(t *testing.T) {
	m := newTestMachine()
	primary := scoredPrimary(t, m)

	buddy := &checklist.Task{
		ID:         "buddy-1",
		Kind:       checklist.KindWorkTask,
		TemplateID: primary.TemplateID,
		OwnerID:    "u2",
		Status:     checklist.StatusCompleted,
		Items:      make([]checklist.Item, 4),
	}
	mirrored, err := checklist.MirrorControlScores(primary, buddy, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 10.0, mirrored.Items[0].ControlPoints)
	assert.Equal(t, 7.0, mirrored.Items[3].ControlPoints)
	assert.Equal(t, 28.0, mirrored.ControlTotalScore)
}

// TestMirrorControlScores_Guards 测试同步前置条件
func TestMirrorControlScores_Guards(t *testing.T) {
	m := newTestMachine()
	primary := scoredPrimary(t, m)

	other := &checklist.Task{ID: "b", TemplateID: "tpl-other", Status: checklist.StatusCompleted}
	_, err := checklist.MirrorControlScores(primary, other, fixedNow)
	assert.ErrorIs(t, err, checklist.ErrDataIntegrity)

	plain := &checklist.Task{ID: "b", Kind: checklist.KindTask, TemplateID: primary.TemplateID, Status: checklist.StatusCompleted}
	_, err = checklist.MirrorControlScores(primary, plain, fixedNow)
	assert.ErrorIs(t, err, checklist.ErrDataIntegrity)

	rejected := &checklist.Task{ID: "b", Kind: checklist.KindWorkTask, TemplateID: primary.TemplateID, Status: checklist.StatusRejected}
	_, err = checklist.MirrorControlScores(primary, rejected, fixedNow)
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)

	_, err = checklist.MirrorControlScores(primary, primary, fixedNow)
	assert.ErrorIs(t, err, checklist.ErrDataIntegrity)
}

// TestSum 测试通用求和
func TestSum(t *testing.T) {
	assert.Equal(t, 0.0, checklist.Sum([]int{}, func(int) float64 { return 1 }))
	assert.Equal(t, 6.0, checklist.Sum([]int{1, 2, 3}, func(v int) float64 { return float64(v) }))

	items := []checklist.Item{
		{Answered: true, AwardedPoints: 5},
		{Answered: false, AwardedPoints: 5},
	}
	assert.Equal(t, 5.0, checklist.AwardedTotal(items))
}
