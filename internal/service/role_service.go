package service

import (
	"context"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/cache"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// RoleService 角色服务接口
// 角色编写不在本服务范围内,这里只提供复核权限边的替换入口,用于触发缓存失效
type RoleService interface {
	ReplaceAuthorities(ctx context.Context, callerID string, roleID string, edges []authority.Authority) error
}

// RoleServiceDeps 角色服务依赖
type RoleServiceDeps struct {
	Roles      repository.RoleRepository
	RoleCache  *authority.RoleCache
	Users      repository.UserRepository
	Resolver   *authority.Resolver
	Cache      cache.Service
	AuditLog   AuditLogService
	Dispatcher *Dispatcher
	Logger     *logrus.Logger
}

// roleService 角色服务实现
type roleService struct {
	RoleServiceDeps
	access *accessChecker
}

// NewRoleService 创建角色服务
func NewRoleService(deps RoleServiceDeps) RoleService {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = NewDispatcher(deps.Logger, 0)
	}
	return &roleService{
		RoleServiceDeps: deps,
		access:          &accessChecker{users: deps.Users, resolver: deps.Resolver, logger: deps.Logger},
	}
}

// ReplaceAuthorities 替换角色的复核权限边,需要 roles 模块编辑权限
func (s *roleService) ReplaceAuthorities(ctx context.Context, callerID string, roleID string, edges []authority.Authority) error {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return err
	}
	if err := s.access.requireModule(ctx, caller, ModuleRoles, true); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if e.TargetRoleID == "" {
			return checklist.MissingRequiredField("target role is required")
		}
		if _, dup := seen[e.TargetRoleID]; dup {
			return checklist.InvalidValue("duplicate authority for target role %q", e.TargetRoleID)
		}
		seen[e.TargetRoleID] = struct{}{}
	}

	if err := s.Roles.ReplaceAuthorities(ctx, roleID, edges); err != nil {
		return err
	}

	// 角色缓存同步失效,之后的解析立即看到新边
	if s.RoleCache != nil {
		s.RoleCache.Invalidate(roleID)
	}
	if s.Cache != nil {
		c := s.Cache
		s.Dispatcher.Go(ctx, "invalidate_controllable", func(ctx context.Context) error {
			return c.InvalidateByPattern(ctx, controllableKeyPrefix+"*")
		})
	}
	if s.AuditLog != nil {
		audit := s.AuditLog
		s.Dispatcher.Go(ctx, "audit", func(ctx context.Context) error {
			return audit.RecordAction(ctx, caller.ID, "update_authorities", ResourceRole, roleID, map[string]interface{}{"authorities": edges})
		})
	}
	return nil
}
