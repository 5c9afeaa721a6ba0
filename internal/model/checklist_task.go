package model

import (
	"errors"
	"time"

	"github.com/mautops/checklist-gin/internal/checklist"
)

// ChecklistTaskModel 检查任务数据模型
// 普通任务和作业任务共用一张表,通过 Kind 区分
type ChecklistTaskModel struct {
	ID                string           `gorm:"primaryKey;type:varchar(64)"`
	Kind              string           `gorm:"type:varchar(16);not null;index"`
	OwnerID           string           `gorm:"type:varchar(64);not null;index:idx_task_owner_template"`
	TemplateID        string           `gorm:"type:varchar(64);not null;index:idx_task_owner_template"`
	MachineID         string           `gorm:"type:varchar(64);index"`
	BuddyID           string           `gorm:"type:varchar(64);index"`
	Status            string           `gorm:"type:varchar(16);not null;index"`
	Items             []checklist.Item `gorm:"type:text;serializer:json;not null"`
	TotalScore        float64          `gorm:"not null;default:0"`
	ControlTotalScore float64          `gorm:"not null;default:0"`
	ControlNote       string           `gorm:"type:text"`
	AssignedAt        time.Time        `gorm:"not null"`
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ScoredAt          *time.Time
	DecidedAt         *time.Time
	ScorerID          string    `gorm:"type:varchar(64)"`
	DeciderID         string    `gorm:"type:varchar(64)"`
	CreatedAt         time.Time `gorm:"not null;index"`
	UpdatedAt         time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (ChecklistTaskModel) TableName() string {
	return "checklist_tasks"
}

// Validate 验证任务模型
func (tm *ChecklistTaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.OwnerID == "" {
		return errors.New("task owner is required")
	}
	if tm.TemplateID == "" {
		return errors.New("template ID is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	if tm.TotalScore < 0 || tm.ControlTotalScore < 0 {
		return errors.New("task scores must not be negative")
	}
	return nil
}

// NewChecklistTaskModel 从领域任务构建数据模型
func NewChecklistTaskModel(t *checklist.Task) *ChecklistTaskModel {
	return &ChecklistTaskModel{
		ID:                t.ID,
		Kind:              string(t.Kind),
		OwnerID:           t.OwnerID,
		TemplateID:        t.TemplateID,
		MachineID:         t.MachineID,
		BuddyID:           t.BuddyID,
		Status:            string(t.Status),
		Items:             t.Items,
		TotalScore:        t.TotalScore,
		ControlTotalScore: t.ControlTotalScore,
		ControlNote:       t.ControlNote,
		AssignedAt:        t.AssignedAt,
		StartedAt:         t.StartedAt,
		CompletedAt:       t.CompletedAt,
		ScoredAt:          t.ScoredAt,
		DecidedAt:         t.DecidedAt,
		ScorerID:          t.ScorerID,
		DeciderID:         t.DeciderID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// ToDomain 转换为领域任务
func (tm *ChecklistTaskModel) ToDomain() *checklist.Task {
	t := &checklist.Task{
		ID:                tm.ID,
		Kind:              checklist.TaskKind(tm.Kind),
		OwnerID:           tm.OwnerID,
		TemplateID:        tm.TemplateID,
		MachineID:         tm.MachineID,
		BuddyID:           tm.BuddyID,
		Items:             tm.Items,
		Status:            checklist.Status(tm.Status),
		TotalScore:        tm.TotalScore,
		ControlTotalScore: tm.ControlTotalScore,
		ControlNote:       tm.ControlNote,
		AssignedAt:        tm.AssignedAt,
		StartedAt:         tm.StartedAt,
		CompletedAt:       tm.CompletedAt,
		ScoredAt:          tm.ScoredAt,
		DecidedAt:         tm.DecidedAt,
		ScorerID:          tm.ScorerID,
		DeciderID:         tm.DeciderID,
		CreatedAt:         tm.CreatedAt,
		UpdatedAt:         tm.UpdatedAt,
	}
	return t.Clone()
}
