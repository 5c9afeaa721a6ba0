package repository

import (
	"context"
	"time"

	"github.com/mautops/checklist-gin/internal/model"
	"gorm.io/gorm"
)

// EventRepository 通知事件仓储接口
type EventRepository interface {
	Save(ctx context.Context, event *model.EventModel) error
	FindByID(ctx context.Context, id string) (*model.EventModel, error)
	FindByTaskID(ctx context.Context, taskID string) ([]*model.EventModel, error)
	FindPending(ctx context.Context, limit int) ([]*model.EventModel, error)
	MarkResult(ctx context.Context, id string, status string, retries int, lastError string) error
	// Claim 把 pending 事件改为 delivering,返回是否认领成功
	Claim(ctx context.Context, id string) (bool, error)
	// Release 把 delivering 事件退回 pending
	Release(ctx context.Context, id string) error
	// ReleaseStale 把 before 之前认领但未完成的事件退回 pending
	ReleaseStale(ctx context.Context, before time.Time) (int64, error)
}

// eventRepository 事件仓储实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(ctx context.Context, event *model.EventModel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(event).Error
}

// FindByID 根据 ID 查找事件
func (r *eventRepository) FindByID(ctx context.Context, id string) (*model.EventModel, error) {
	var event model.EventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err, "event %q not found", id)
	}
	return &event, nil
}

// FindByTaskID 根据任务 ID 查找事件
func (r *eventRepository) FindByTaskID(ctx context.Context, taskID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待投递的事件
func (r *eventRepository) FindPending(ctx context.Context, limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.WithContext(ctx).Where("status = ?", model.EventStatusPending).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// MarkResult 记录投递结果
func (r *eventRepository) MarkResult(ctx context.Context, id string, status string, retries int, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.EventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retries,
			"last_error":  lastError,
			"updated_at":  time.Now(),
		}).Error
}

// Claim 认领待投递事件
func (r *eventRepository) Claim(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.EventModel{}).
		Where("id = ? AND status = ?", id, model.EventStatusPending).
		Updates(map[string]interface{}{
			"status":     model.EventStatusDelivering,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release 退回认领
func (r *eventRepository) Release(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.EventModel{}).
		Where("id = ? AND status = ?", id, model.EventStatusDelivering).
		Updates(map[string]interface{}{
			"status":     model.EventStatusPending,
			"updated_at": time.Now(),
		}).Error
}

// ReleaseStale 退回超时的认领
func (r *eventRepository) ReleaseStale(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.EventModel{}).
		Where("status = ? AND updated_at < ?", model.EventStatusDelivering, before).
		Updates(map[string]interface{}{
			"status":     model.EventStatusPending,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
