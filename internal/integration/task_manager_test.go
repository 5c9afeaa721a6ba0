package integration_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTaskManager_Lifecycle 测试分配-开始-完成-打分
func TestTaskManager_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	seedPlant(t, db)
	mgr := newManager(db)
	ctx := context.Background()

	task, err := mgr.Assign(ctx, &integration.AssignRequest{
		TemplateID: "mold-change",
		OwnerID:    "u1",
		Kind:       checklist.KindTask,
		Actor:      "scheduler",
	})
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusAssigned, task.Status)
	assert.Len(t, task.Items, 3)

	task, err = mgr.Start(ctx, task.ID, "u1", "press-1")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusStarted, task.Status)

	task, err = mgr.Complete(ctx, task.ID, "u1", answers(true, false, true), "press-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, task.TotalScore)

	task, err = mgr.Score(ctx, task.ID, "sup", []checklist.ControlScore{
		{Points: 10}, {Points: 0, Comment: "hose loose"}, {Points: 8},
	}, "ok")
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusApproved, task.Status)
	assert.Equal(t, 18.0, task.ControlTotalScore)

	stored, err := mgr.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusApproved, stored.Status)
	assert.Equal(t, "hose loose", stored.Items[1].ControlComment)
	assert.Equal(t, "sup", stored.ScorerID)

	history, err := mgr.History(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	ops := make([]string, len(history))
	for i, h := range history {
		ops[i] = h.Operation
	}
	assert.Equal(t, []string{"assign", "start", "complete", "score"}, ops)
}

// TestTaskManager_StartRequiresActiveMachine 测试设备选择校验
func TestTaskManager_StartRequiresActiveMachine(t *testing.T) {
	db := setupTestDB(t)
	seedPlant(t, db)
	mgr := newManager(db)
	ctx := context.Background()

	task, err := mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "mold-change", OwnerID: "u1", Kind: checklist.KindTask})
	require.NoError(t, err)

	_, err = mgr.Start(ctx, task.ID, "u1", "press-9")
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)

	_, err = mgr.Start(ctx, task.ID, "u1", "")
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	_, err = mgr.Start(ctx, task.ID, "u2", "press-1")
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)

	stored, err := mgr.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusAssigned, stored.Status)
}

// TestTaskManager_AssignValidation 测试分配校验
func TestTaskManager_AssignValidation(t *testing.T) {
	db := setupTestDB(t)
	seedPlant(t, db)
	mgr := newManager(db)
	ctx := context.Background()

	_, err := mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "mold-change", OwnerID: "ghost", Kind: checklist.KindTask})
	assert.ErrorIs(t, err, checklist.ErrNotFound)

	_, err = mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "mold-change", OwnerID: "gone", Kind: checklist.KindTask})
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)

	_, err = mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "nope", OwnerID: "u1", Kind: checklist.KindTask})
	assert.ErrorIs(t, err, checklist.ErrNotFound)

	_, err = mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "mold-change", OwnerID: "u1", Kind: checklist.KindTask, BuddyID: "u2"})
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)
}

// TestTaskManager_ConcurrentDecision 测试并发复核只有一个成功
func TestTaskManager_ConcurrentDecision(t *testing.T) {
	db := setupTestDB(t)
	seedPlant(t, db)
	mgr := newManager(db)
	ctx := context.Background()

	task := completedWorkTask(t, mgr, "u1", "")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = mgr.Approve(ctx, task.ID, "sup", "fine")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = mgr.Reject(ctx, task.ID, "sup", "redo")
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, checklist.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
}

// TestTaskManager_TerminalIsImmutable 测试终态不可再转换
func TestTaskManager_TerminalIsImmutable(t *testing.T) {
	db := setupTestDB(t)
	seedPlant(t, db)
	mgr := newManager(db)
	ctx := context.Background()

	task := completedWorkTask(t, mgr, "u1", "")
	_, err := mgr.Reject(ctx, task.ID, "sup", "")
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	_, err = mgr.Reject(ctx, task.ID, "sup", "redo the water check")
	require.NoError(t, err)

	_, err = mgr.Approve(ctx, task.ID, "sup", "")
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)
	_, err = mgr.Cancel(ctx, task.ID, "admin", "cleanup")
	assert.ErrorIs(t, err, checklist.ErrInvalidTransition)
}

// TestTaskManager_CancelByTemplate 测试模板删除时取消未完成任务
func TestTaskManager_CancelByTemplate(t *testing.T) {
	db := setupTestDB(t)
	seedPlant(t, db)
	mgr := newManager(db)
	ctx := context.Background()

	open1, err := mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "mold-change", OwnerID: "u1", Kind: checklist.KindTask})
	require.NoError(t, err)
	open2, err := mgr.Assign(ctx, &integration.AssignRequest{TemplateID: "mold-change", OwnerID: "u2", Kind: checklist.KindTask})
	require.NoError(t, err)
	_, err = mgr.Start(ctx, open2.ID, "u2", "press-1")
	require.NoError(t, err)
	done := completedWorkTask(t, mgr, "u1", "")

	cancelled, err := mgr.CancelByTemplate(ctx, "mold-change", "admin", "template removed")
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)

	for _, id := range []string{open1.ID, open2.ID} {
		task, err := mgr.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, checklist.StatusCancelled, task.Status)
	}
	task, err := mgr.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, checklist.StatusCompleted, task.Status)

	completed, err := mgr.Query(ctx, &repository.TaskFilter{Statuses: []checklist.Status{checklist.StatusCompleted}})
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}
