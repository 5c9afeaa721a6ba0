package service_test

import (
	"context"
	"testing"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoleService_ReplaceAuthorities 测试替换权限边后解析立即生效
func TestRoleService_ReplaceAuthorities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.completedTask(t, "u1", "press-1", checklist.KindTask, "")

	groups, err := f.control.ListControllable(ctx, "aud")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// 把 auditor 的查看权限改到 supervisor
	err = f.roles.ReplaceAuthorities(ctx, "root", "auditor", []authority.Authority{
		{TargetRoleID: "supervisor", CanView: true},
	})
	require.NoError(t, err)
	f.dispatcher.Wait()

	groups, err = f.control.ListControllable(ctx, "aud")
	require.NoError(t, err)
	assert.Empty(t, groups)

	res, err := f.control.ResolveRoles(ctx, "aud", authority.KindView)
	require.NoError(t, err)
	assert.Equal(t, []string{"supervisor"}, res.Roles)

	logs, err := repository.NewAuditLogRepository(f.db).FindByResource(ctx, "role", "auditor")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "update_authorities", logs[0].Action)
}

// TestRoleService_ReplaceAuthoritiesGuards 测试权限和参数校验
func TestRoleService_ReplaceAuthoritiesGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.roles.ReplaceAuthorities(ctx, "sup", "auditor", nil)
	assert.ErrorIs(t, err, checklist.ErrPermissionDenied)

	err = f.roles.ReplaceAuthorities(ctx, "root", "auditor", []authority.Authority{{CanView: true}})
	assert.ErrorIs(t, err, checklist.ErrMissingRequiredField)

	err = f.roles.ReplaceAuthorities(ctx, "root", "auditor", []authority.Authority{
		{TargetRoleID: "operator", CanView: true},
		{TargetRoleID: "operator", CanScore: true},
	})
	assert.ErrorIs(t, err, checklist.ErrInvalidValue)

	err = f.roles.ReplaceAuthorities(ctx, "root", "ghost", nil)
	assert.ErrorIs(t, err, checklist.ErrNotFound)

	// roles 模块编辑权限也可以修改
	require.NoError(t, repository.NewRoleRepository(f.db).Save(ctx, &model.RoleModel{
		ID:      "hr",
		Name:    "HR",
		Modules: []model.RoleModulePermissionModel{{Module: "roles", CanView: true, CanEdit: true}},
	}))
	require.NoError(t, repository.NewUserRepository(f.db).Save(ctx, &model.UserModel{ID: "hr1", Name: "Hal", RoleIDs: []string{"hr"}}))
	require.NoError(t, f.roles.ReplaceAuthorities(ctx, "hr1", "auditor", nil))
}
