package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"gorm.io/gorm"
)

// RoleRepository 角色仓储接口
// GetRole 返回归一化后的角色,实现 authority.RoleSource
type RoleRepository interface {
	authority.RoleSource
	Save(ctx context.Context, role *model.RoleModel) error
	FindAll(ctx context.Context) ([]*model.RoleModel, error)
	ReplaceAuthorities(ctx context.Context, roleID string, edges []authority.Authority) error
}

// roleRepository 角色仓储实现
type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository 创建角色仓储
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// GetRole 加载角色及其模块权限和复核权限边
// 旧版可复核角色列表在这里合并为复核权限边
func (r *roleRepository) GetRole(ctx context.Context, id string) (*authority.Role, error) {
	var rm model.RoleModel
	err := r.db.WithContext(ctx).
		Preload("Modules").
		Preload("Authorities").
		Where("id = ?", id).
		First(&rm).Error
	if err != nil {
		return nil, notFound(err, "role %q not found", id)
	}
	return toDomainRole(&rm), nil
}

// Save 保存角色(含模块权限和复核权限边)
func (r *roleRepository) Save(ctx context.Context, role *model.RoleModel) error {
	if err := role.Validate(); err != nil {
		return checklist.InvalidValue("%v", err)
	}
	now := time.Now()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now
	for i := range role.Modules {
		role.Modules[i].RoleID = role.ID
	}
	for i := range role.Authorities {
		edge := &role.Authorities[i]
		edge.SourceRoleID = role.ID
		if edge.ID == "" {
			edge.ID = uuid.New().String()
		}
		if edge.CreatedAt.IsZero() {
			edge.CreatedAt = now
		}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.RoleModel{}).Where("id = ?", role.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return tx.Create(role).Error
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(role).Error
	})
}

// FindAll 查找所有角色
func (r *roleRepository) FindAll(ctx context.Context) ([]*model.RoleModel, error) {
	var roles []*model.RoleModel
	err := r.db.WithContext(ctx).
		Preload("Modules").
		Preload("Authorities").
		Order("name ASC").
		Find(&roles).Error
	return roles, err
}

// ReplaceAuthorities 在一个事务中替换角色的全部复核权限边
// 替换后旧版列表已被新边覆盖,一并清空
func (r *roleRepository) ReplaceAuthorities(ctx context.Context, roleID string, edges []authority.Authority) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rm model.RoleModel
		if err := tx.Where("id = ?", roleID).First(&rm).Error; err != nil {
			return notFound(err, "role %q not found", roleID)
		}

		if err := tx.Where("source_role_id = ?", roleID).Delete(&model.ChecklistAuthorityModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete authorities: %w", err)
		}

		now := time.Now()
		if len(edges) > 0 {
			rows := make([]model.ChecklistAuthorityModel, 0, len(edges))
			for _, e := range edges {
				rows = append(rows, model.ChecklistAuthorityModel{
					ID:           uuid.New().String(),
					SourceRoleID: roleID,
					TargetRoleID: e.TargetRoleID,
					CanView:      e.CanView,
					CanScore:     e.CanScore,
					CanApprove:   e.CanApprove,
					CreatedAt:    now,
				})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("failed to create authorities: %w", err)
			}
		}

		return tx.Model(&model.RoleModel{}).
			Where("id = ?", roleID).
			Updates(map[string]interface{}{
				"legacy_controllable_roles": nil,
				"updated_at":                now,
			}).Error
	})
}

func toDomainRole(rm *model.RoleModel) *authority.Role {
	modules := make([]authority.ModulePermission, 0, len(rm.Modules))
	for _, m := range rm.Modules {
		modules = append(modules, authority.ModulePermission{
			Module:  m.Module,
			CanView: m.CanView,
			CanEdit: m.CanEdit,
		})
	}
	edges := make([]authority.Authority, 0, len(rm.Authorities))
	for _, a := range rm.Authorities {
		edges = append(edges, authority.Authority{
			TargetRoleID: a.TargetRoleID,
			CanView:      a.CanView,
			CanScore:     a.CanScore,
			CanApprove:   a.CanApprove,
		})
	}
	return &authority.Role{
		ID:          rm.ID,
		Name:        rm.Name,
		Modules:     modules,
		Authorities: authority.Normalize(edges, rm.LegacyControllableRoles),
	}
}
