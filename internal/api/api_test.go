package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/checklist-gin/internal/api"
	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/cache"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/config"
	"github.com/mautops/checklist-gin/internal/database"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testServer 完整路由和依赖
type testServer struct {
	router     *gin.Engine
	dispatcher *service.Dispatcher
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

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	roles := repository.NewRoleRepository(db)
	for _, r := range []*model.RoleModel{
		{ID: "operator", Name: "Operator"},
		{ID: "supervisor", Name: "Supervisor", Authorities: []model.ChecklistAuthorityModel{
			{TargetRoleID: "operator", CanView: true, CanScore: true, CanApprove: true},
		}},
		{ID: "auditor", Name: "Auditor", LegacyControllableRoles: []string{"operator"}},
		{ID: "admin", Name: "Admin"},
	} {
		require.NoError(t, roles.Save(ctx, r))
	}
	users := repository.NewUserRepository(db)
	for _, u := range []*model.UserModel{
		{ID: "u1", Name: "Ana", RoleIDs: []string{"operator"}},
		{ID: "sup", Name: "Sam", RoleIDs: []string{"supervisor"}},
		{ID: "aud", Name: "Ada", RoleIDs: []string{"auditor"}},
		{ID: "root", Name: "Rey", RoleIDs: []string{"admin"}},
	} {
		require.NoError(t, users.Save(ctx, u))
	}
	require.NoError(t, repository.NewMachineRepository(db).SetActive(ctx, "u1", "press-1", true))
	require.NoError(t, repository.NewTemplateRepository(db).Save(ctx, &model.ChecklistTemplateModel{
		ID:       "mold-change",
		Name:     "Mold change",
		Category: string(checklist.CategoryEvent),
		Items: []checklist.TemplateItem{
			{Question: "mold clamped", MaxPoints: 10},
			{Question: "water connected", MaxPoints: 10},
		},
	}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	seed(t, db)

	log, _ := test.NewNullLogger()
	cfg := config.Default()
	cfg.Auth.Mode = "header"
	cfg.RateLimit.Enabled = false

	memCache := cache.NewMemoryCache()
	roleCache := authority.NewRoleCache(repository.NewRoleRepository(db), time.Minute)
	resolver := authority.NewResolver(roleCache, cfg.Authority.AdminRole, log)
	users := repository.NewUserRepository(db)
	taskMgr := integration.NewTaskManager(db, checklist.NewMachine(), nil)
	dispatcher := service.NewDispatcher(log, time.Second)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	t.Cleanup(dispatcher.Wait)

	router := api.SetupRoutesWithConfig(api.RouterDeps{
		Config: cfg,
		Logger: log,
		DB:     db,
		TaskService: service.NewTaskService(service.TaskServiceDeps{
			TaskMgr: taskMgr, Users: users, Resolver: resolver, Cache: memCache,
			AuditLog: audit, Dispatcher: dispatcher, Logger: log,
		}),
		QueryService: service.NewQueryService(db, taskMgr, resolver, log),
		ControlService: service.NewControlService(service.ControlServiceDeps{
			TaskMgr: taskMgr, Buddy: integration.NewBuddyPropagator(taskMgr, log), Users: users,
			Resolver: resolver, Cache: memCache, AuditLog: audit, Dispatcher: dispatcher,
			ListTTL: time.Minute, Logger: log,
		}),
		RoleService: service.NewRoleService(service.RoleServiceDeps{
			Roles: repository.NewRoleRepository(db), RoleCache: roleCache, Users: users,
			Resolver: resolver, Cache: memCache, AuditLog: audit, Dispatcher: dispatcher, Logger: log,
		}),
	})
	return &testServer{router: router, dispatcher: dispatcher}
}

// do 以 user 身份发送请求
func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// decodeData 解析统一响应中的 data
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Message
}
