package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/database"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// seedPlant 写入用户、设备和模板
func seedPlant(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	for _, u := range []*model.UserModel{
		{ID: "u1", Name: "Ana", RoleIDs: []string{"operator"}},
		{ID: "u2", Name: "Ben", RoleIDs: []string{"operator"}},
		{ID: "sup", Name: "Sam", RoleIDs: []string{"supervisor"}},
		{ID: "gone", Name: "Old", Status: model.UserStatusInactive},
	} {
		require.NoError(t, users.Save(ctx, u))
	}

	machines := repository.NewMachineRepository(db)
	require.NoError(t, machines.SetActive(ctx, "u1", "press-1", true))
	require.NoError(t, machines.SetActive(ctx, "u2", "press-1", true))

	require.NoError(t, repository.NewTemplateRepository(db).Save(ctx, &model.ChecklistTemplateModel{
		ID:       "mold-change",
		Name:     "Mold change",
		Category: string(checklist.CategoryEvent),
		Items: []checklist.TemplateItem{
			{Question: "mold clamped", MaxPoints: 10},
			{Question: "water connected", MaxPoints: 10},
			{Question: "first part checked", MaxPoints: 10},
		},
	}))
}

func answers(vals ...bool) []checklist.Response {
	out := make([]checklist.Response, len(vals))
	for i, v := range vals {
		out[i] = checklist.Response{Answered: v}
	}
	return out
}

func newManager(db *gorm.DB) integration.TaskManager {
	return integration.NewTaskManager(db, checklist.NewMachine(), nil)
}

// completedWorkTask 分配并完成一个作业任务
func completedWorkTask(t *testing.T, mgr integration.TaskManager, owner, buddy string) *checklist.Task {
	t.Helper()
	ctx := context.Background()
	task, err := mgr.Assign(ctx, &integration.AssignRequest{
		TemplateID: "mold-change",
		OwnerID:    owner,
		Kind:       checklist.KindWorkTask,
		BuddyID:    buddy,
		Actor:      "scheduler",
	})
	require.NoError(t, err)
	task, err = mgr.Complete(ctx, task.ID, owner, answers(true, true, false), "press-1")
	require.NoError(t, err)
	// 保证 updated_at 有先后
	time.Sleep(5 * time.Millisecond)
	return task
}
