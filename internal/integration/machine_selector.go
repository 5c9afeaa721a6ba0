package integration

import (
	"context"

	"github.com/mautops/checklist-gin/internal/repository"
	"gorm.io/gorm"
)

// MachineSelector 设备选择服务,返回用户当前可操作的设备
type MachineSelector interface {
	ActiveMachines(ctx context.Context, userID string) ([]string, error)
}

// NewMachineSelector 创建基于 user_machines 表的设备选择服务
func NewMachineSelector(db *gorm.DB) MachineSelector {
	return repository.NewMachineRepository(db)
}
