package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/cache"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/database"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fixture 服务层测试环境
type fixture struct {
	db         *gorm.DB
	cache      *cache.MemoryCache
	roleCache  *authority.RoleCache
	dispatcher *service.Dispatcher
	taskMgr    integration.TaskManager
	hook       *test.Hook
	tasks      service.TaskService
	control    service.ControlService
	queries    service.QueryService
	roles      service.RoleService
	notifier   integration.Notifier
}

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

// seedPlant 写入角色、用户、设备和模板
// supervisor 可以查看、打分、审批 operator; auditor 只能查看 operator; planner 可以编辑任务
func seedPlant(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()

	roles := repository.NewRoleRepository(db)
	for _, r := range []*model.RoleModel{
		{ID: "operator", Name: "Operator"},
		{ID: "supervisor", Name: "Supervisor", Authorities: []model.ChecklistAuthorityModel{
			{TargetRoleID: "operator", CanView: true, CanScore: true, CanApprove: true},
		}},
		{ID: "auditor", Name: "Auditor", Authorities: []model.ChecklistAuthorityModel{
			{TargetRoleID: "operator", CanView: true},
		}},
		{ID: "planner", Name: "Planner", Modules: []model.RoleModulePermissionModel{
			{Module: service.ModuleChecklists, CanView: true, CanEdit: true},
		}},
		{ID: "admin", Name: "Admin"},
	} {
		require.NoError(t, roles.Save(ctx, r))
	}

	users := repository.NewUserRepository(db)
	for _, u := range []*model.UserModel{
		{ID: "u1", Name: "Ana", RoleIDs: []string{"operator"}},
		{ID: "u2", Name: "Ben", RoleIDs: []string{"operator"}},
		{ID: "sup", Name: "Sam", RoleIDs: []string{"supervisor"}},
		{ID: "aud", Name: "Ada", RoleIDs: []string{"auditor"}},
		{ID: "plan", Name: "Pia", RoleIDs: []string{"planner"}},
		{ID: "root", Name: "Rey", RoleIDs: []string{"admin"}},
		{ID: "gone", Name: "Old", RoleIDs: []string{"supervisor"}, Status: model.UserStatusInactive},
	} {
		require.NoError(t, users.Save(ctx, u))
	}

	machines := repository.NewMachineRepository(db)
	require.NoError(t, machines.SetActive(ctx, "u1", "press-1", true))
	require.NoError(t, machines.SetActive(ctx, "u2", "press-2", true))

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

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	seedPlant(t, db)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &fixture{
		db:         db,
		cache:      cache.NewMemoryCache(),
		roleCache:  authority.NewRoleCache(repository.NewRoleRepository(db), time.Minute),
		dispatcher: service.NewDispatcher(log, time.Second),
		taskMgr:    integration.NewTaskManager(db, checklist.NewMachine(), nil),
		hook:       hook,
		notifier:   integration.NewNotifier(db, integration.NotifierOptions{Workers: 1}, log),
	}
	t.Cleanup(f.notifier.Stop)
	t.Cleanup(f.dispatcher.Wait)

	resolver := authority.NewResolver(f.roleCache, "Admin", log)
	users := repository.NewUserRepository(db)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	f.tasks = service.NewTaskService(service.TaskServiceDeps{
		TaskMgr:    f.taskMgr,
		Users:      users,
		Resolver:   resolver,
		Cache:      f.cache,
		Notifier:   f.notifier,
		AuditLog:   audit,
		Dispatcher: f.dispatcher,
		Logger:     log,
	})
	f.control = service.NewControlService(service.ControlServiceDeps{
		TaskMgr:    f.taskMgr,
		Buddy:      integration.NewBuddyPropagator(f.taskMgr, log),
		Users:      users,
		Resolver:   resolver,
		Cache:      f.cache,
		Notifier:   f.notifier,
		AuditLog:   audit,
		Dispatcher: f.dispatcher,
		ListTTL:    time.Minute,
		Logger:     log,
	})
	f.queries = service.NewQueryService(db, f.taskMgr, resolver, log)
	f.roles = service.NewRoleService(service.RoleServiceDeps{
		Roles:      repository.NewRoleRepository(db),
		RoleCache:  f.roleCache,
		Users:      users,
		Resolver:   resolver,
		Cache:      f.cache,
		AuditLog:   audit,
		Dispatcher: f.dispatcher,
		Logger:     log,
	})
	return f
}

func answers(vals ...bool) []checklist.Response {
	out := make([]checklist.Response, len(vals))
	for i, v := range vals {
		out[i] = checklist.Response{Answered: v}
	}
	return out
}

func scores(points ...float64) []checklist.ControlScore {
	out := make([]checklist.ControlScore, len(points))
	for i, p := range points {
		out[i] = checklist.ControlScore{Points: p}
	}
	return out
}

// completedTask 由 plan 分配并由执行人在 machine 上完成
func (f *fixture) completedTask(t *testing.T, owner, machine string, kind checklist.TaskKind, buddy string) *checklist.Task {
	t.Helper()
	ctx := context.Background()
	task, err := f.tasks.Assign(ctx, "plan", &service.AssignTaskRequest{
		TemplateID: "mold-change",
		OwnerID:    owner,
		Kind:       string(kind),
		BuddyID:    buddy,
	})
	require.NoError(t, err)
	res, err := f.tasks.Complete(ctx, owner, task.ID, &service.CompleteTaskRequest{
		MachineID: machine,
		Responses: answers(true, true, false),
	})
	require.NoError(t, err)
	f.dispatcher.Wait()
	// 保证 updated_at 有先后
	time.Sleep(5 * time.Millisecond)
	return res.Task
}
