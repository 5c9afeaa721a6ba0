package model

import (
	"errors"
	"time"
)

// RoleModel 角色数据模型
type RoleModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	// 旧版可复核角色列表,加载时归一化为复核权限边
	LegacyControllableRoles []string `gorm:"type:text;serializer:json"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Modules     []RoleModulePermissionModel `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE"`
	Authorities []ChecklistAuthorityModel   `gorm:"foreignKey:SourceRoleID;constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (RoleModel) TableName() string {
	return "roles"
}

// Validate 验证角色模型
func (rm *RoleModel) Validate() error {
	if rm.ID == "" {
		return errors.New("role ID is required")
	}
	if rm.Name == "" {
		return errors.New("role name is required")
	}
	return nil
}

// RoleModulePermissionModel 角色模块权限
type RoleModulePermissionModel struct {
	RoleID  string `gorm:"primaryKey;type:varchar(64)"`
	Module  string `gorm:"primaryKey;type:varchar(64)"`
	CanView bool   `gorm:"not null;default:false"`
	CanEdit bool   `gorm:"not null;default:false"`
}

// TableName 指定表名
func (RoleModulePermissionModel) TableName() string {
	return "role_module_permissions"
}

// ChecklistAuthorityModel 复核权限边: SourceRoleID 可以复核 TargetRoleID 成员的任务
type ChecklistAuthorityModel struct {
	ID           string `gorm:"primaryKey;type:varchar(64)"`
	SourceRoleID string `gorm:"type:varchar(64);not null;index"`
	TargetRoleID string `gorm:"type:varchar(64);index"`
	CanView      bool   `gorm:"not null;default:false"`
	CanScore     bool   `gorm:"not null;default:false"`
	CanApprove   bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (ChecklistAuthorityModel) TableName() string {
	return "checklist_authorities"
}

// Validate 验证复核权限边
func (am *ChecklistAuthorityModel) Validate() error {
	if am.ID == "" {
		return errors.New("authority ID is required")
	}
	if am.SourceRoleID == "" {
		return errors.New("source role ID is required")
	}
	return nil
}
