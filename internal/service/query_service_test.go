package service_test

import (
	"context"
	"testing"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQueryService_ListMine 测试我的任务列表和分页
func TestQueryService_ListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.tasks.Assign(ctx, "plan", &service.AssignTaskRequest{TemplateID: "mold-change", OwnerID: "u1"})
		require.NoError(t, err)
	}
	f.completedTask(t, "u1", "press-1", checklist.KindTask, "")
	f.completedTask(t, "u2", "press-2", checklist.KindTask, "")

	tasks, total, err := f.queries.ListMine(ctx, "u1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, tasks, 4)
	for _, task := range tasks {
		assert.Equal(t, "u1", task.OwnerID)
	}

	completed := checklist.StatusCompleted
	tasks, total, err = f.queries.ListMine(ctx, "u1", &service.ListTasksFilter{Status: &completed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, checklist.StatusCompleted, tasks[0].Status)

	tasks, total, err = f.queries.ListMine(ctx, "u1", &service.ListTasksFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, tasks, 1)

	_, _, err = f.queries.ListMine(ctx, "ghost", nil)
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)
}

// TestQueryService_GetHistory 测试历史查询权限
func TestQueryService_GetHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.completedTask(t, "u1", "press-1", checklist.KindTask, "")

	hist, err := f.queries.GetHistory(ctx, "aud", task.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "assign", hist[0].Operation)
	assert.Equal(t, "complete", hist[1].Operation)
	assert.Equal(t, "u1", hist[1].Operator)

	_, err = f.queries.GetHistory(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)
}
