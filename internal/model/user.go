package model

import (
	"errors"
	"time"
)

// 用户状态
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// UserModel 用户数据模型
type UserModel struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	Name          string    `gorm:"type:varchar(255);not null"`
	Status        string    `gorm:"type:varchar(16);not null;default:'active';index"`
	RoleIDs       []string  `gorm:"type:text;serializer:json"`
	DepartmentIDs []string  `gorm:"type:text;serializer:json"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// IsActive 是否为在职用户
func (um *UserModel) IsActive() bool {
	return um.Status == UserStatusActive
}

// Validate 验证用户模型
func (um *UserModel) Validate() error {
	if um.ID == "" {
		return errors.New("user ID is required")
	}
	if um.Status != UserStatusActive && um.Status != UserStatusInactive {
		return errors.New("user status must be active or inactive")
	}
	return nil
}

// UserMachineModel 用户当前可操作的设备
type UserMachineModel struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)"`
	MachineID string    `gorm:"primaryKey;type:varchar(64)"`
	Active    bool      `gorm:"not null;default:true;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (UserMachineModel) TableName() string {
	return "user_machines"
}
