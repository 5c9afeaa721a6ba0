package service

import (
	"context"
	"errors"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/sirupsen/logrus"
)

// 模块权限名
const (
	ModuleChecklists = "checklists"
	ModuleRoles      = "roles"
)

// accessChecker 调用者校验与复核权限判断
type accessChecker struct {
	users    repository.UserRepository
	resolver *authority.Resolver
	logger   *logrus.Logger
}

// caller 加载调用者,必须存在且在职
func (a *accessChecker) caller(ctx context.Context, userID string) (*model.UserModel, error) {
	if userID == "" {
		return nil, checklist.PermissionDenied("caller is required")
	}
	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			return nil, checklist.PermissionDenied("unknown caller %q", userID)
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, checklist.PermissionDenied("caller %q is inactive", userID)
	}
	return user, nil
}

// authorizeOwner 判断调用者是否对任务所有者拥有 kind 权限
// 所有者任一角色落在可复核集合内即可
func (a *accessChecker) authorizeOwner(ctx context.Context, caller *model.UserModel, ownerID string, kind authority.Kind) error {
	set, err := a.resolver.Resolve(ctx, caller.RoleIDs, kind)
	if err != nil {
		return err
	}
	if set.IsAll() {
		return nil
	}
	if set.IsEmpty() {
		return checklist.PermissionDenied("caller %q has no %s authority", caller.ID, kind)
	}

	owner, err := a.users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			a.logger.WithFields(logrus.Fields{
				"error_kind": string(checklist.KindDataIntegrity),
				"owner_id":   ownerID,
			}).Warn("task owner does not exist")
			return checklist.PermissionDenied("task owner %q is unknown", ownerID)
		}
		return err
	}
	if !set.ContainsAny(owner.RoleIDs) {
		return checklist.PermissionDenied("caller %q may not %s tasks of %q", caller.ID, kind, ownerID)
	}
	return nil
}

// requireModule 管理员或拥有模块权限
func (a *accessChecker) requireModule(ctx context.Context, caller *model.UserModel, module string, edit bool) error {
	roles, err := a.resolver.LoadRoles(ctx, caller.RoleIDs)
	if err != nil {
		return err
	}
	admin, err := a.resolver.IsAdmin(ctx, caller.RoleIDs)
	if err != nil {
		return err
	}
	if admin || authority.HasModuleAccess(roles, module, edit) {
		return nil
	}
	return checklist.PermissionDenied("caller %q lacks access to module %q", caller.ID, module)
}
