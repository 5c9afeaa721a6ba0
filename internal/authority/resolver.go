package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// DefaultAdminRole 默认管理员角色
const DefaultAdminRole = "Admin"

// RoleSource 角色读取接口
// 角色不存在时返回 checklist.ErrNotFound 类型的错误
type RoleSource interface {
	GetRole(ctx context.Context, id string) (*Role, error)
}

// Resolver 复核权限解析器
type Resolver struct {
	roles     RoleSource
	adminRole string
	logger    *logrus.Logger
}

// NewResolver 创建复核权限解析器
func NewResolver(roles RoleSource, adminRole string, logger *logrus.Logger) *Resolver {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{roles: roles, adminRole: adminRole, logger: logger}
}

// AdminRole 返回管理员角色标识
func (r *Resolver) AdminRole() string {
	return r.adminRole
}

// Resolve 解析调用者的可复核角色集合
//
// 多个角色的结果取并集;没有任何边时返回空集;管理员直接返回全集。
// 悬空边(目标角色不存在)跳过并记录 DataIntegrity 告警,不会中断解析。
func (r *Resolver) Resolve(ctx context.Context, callerRoleIDs []string, kind Kind) (RoleSet, error) {
	roles, err := r.LoadRoles(ctx, callerRoleIDs)
	if err != nil {
		return RoleSet{}, err
	}
	if r.isAdmin(callerRoleIDs, roles) {
		return AllRoles(), nil
	}

	set := NewRoleSet()
	for _, role := range roles {
		for _, edge := range role.Authorities {
			if edge.TargetRoleID == "" || !edge.Grants(kind) {
				continue
			}
			if set.Contains(edge.TargetRoleID) {
				continue
			}
			if _, err := r.roles.GetRole(ctx, edge.TargetRoleID); err != nil {
				if errors.Is(err, checklist.ErrNotFound) {
					r.warnDangling(role.ID, edge.TargetRoleID)
					continue
				}
				return RoleSet{}, fmt.Errorf("failed to resolve target role %q: %w", edge.TargetRoleID, err)
			}
			set.add(edge.TargetRoleID)
		}
	}
	return set, nil
}

// IsAdmin 判断角色列表中是否包含管理员角色
func (r *Resolver) IsAdmin(ctx context.Context, roleIDs []string) (bool, error) {
	roles, err := r.LoadRoles(ctx, roleIDs)
	if err != nil {
		return false, err
	}
	return r.isAdmin(roleIDs, roles), nil
}

// LoadRoles 批量加载角色,不存在的角色跳过并告警
func (r *Resolver) LoadRoles(ctx context.Context, roleIDs []string) ([]*Role, error) {
	roles := make([]*Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		role, err := r.roles.GetRole(ctx, id)
		if err != nil {
			if errors.Is(err, checklist.ErrNotFound) {
				r.logger.WithFields(logrus.Fields{
					"error_kind": string(checklist.KindDataIntegrity),
					"role_id":    id,
				}).Warn("user references unknown role, skipped")
				continue
			}
			return nil, fmt.Errorf("failed to load role %q: %w", id, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (r *Resolver) isAdmin(ids []string, roles []*Role) bool {
	for _, id := range ids {
		if id == r.adminRole {
			return true
		}
	}
	for _, role := range roles {
		if role.ID == r.adminRole || role.Name == r.adminRole {
			return true
		}
	}
	return false
}

func (r *Resolver) warnDangling(source, target string) {
	metrics.RecordDanglingEdge()
	r.logger.WithFields(logrus.Fields{
		"error_kind":     string(checklist.KindDataIntegrity),
		"source_role_id": source,
		"target_role_id": target,
	}).Warn("checklist authority edge references unknown role, skipped")
}
