package repository

import (
	"context"
	"time"

	"github.com/mautops/checklist-gin/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MachineRepository 用户设备选择仓储接口
type MachineRepository interface {
	ActiveMachines(ctx context.Context, userID string) ([]string, error)
	SetActive(ctx context.Context, userID string, machineID string, active bool) error
}

// machineRepository 用户设备选择仓储实现
type machineRepository struct {
	db *gorm.DB
}

// NewMachineRepository 创建设备选择仓储
func NewMachineRepository(db *gorm.DB) MachineRepository {
	return &machineRepository{db: db}
}

// ActiveMachines 返回用户当前选中的设备
func (r *machineRepository) ActiveMachines(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.UserMachineModel{}).
		Where("user_id = ? AND active = ?", userID, true).
		Order("machine_id ASC").
		Pluck("machine_id", &ids).Error
	return ids, err
}

// SetActive 设置用户对某台设备的选择状态
func (r *machineRepository) SetActive(ctx context.Context, userID string, machineID string, active bool) error {
	row := &model.UserMachineModel{
		UserID:    userID,
		MachineID: machineID,
		Active:    active,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "machine_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active", "updated_at"}),
		}).
		Create(row).Error
}
