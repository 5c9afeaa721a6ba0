package model

import (
	"errors"
	"time"
)

// 事件投递状态
const (
	EventStatusPending    = "pending"
	EventStatusDelivering = "delivering"
	EventStatusSuccess    = "success"
	EventStatusFailed     = "failed"
)

// EventModel 通知事件(发件箱)
type EventModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	TaskID     string    `gorm:"type:varchar(64);not null;index"`
	Type       string    `gorm:"type:varchar(32);not null;index"` // task.scored/task.approved/task.rejected/...
	Data       []byte    `gorm:"type:text;not null"`              // 序列化后的事件数据
	Status     string    `gorm:"type:varchar(16);not null;default:'pending';index"`
	RetryCount int       `gorm:"type:int;default:0"`
	LastError  string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.TaskID == "" {
		return errors.New("task ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
