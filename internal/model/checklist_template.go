package model

import (
	"errors"
	"time"

	"github.com/mautops/checklist-gin/internal/checklist"
)

// ChecklistTemplateModel 检查单模板数据模型
type ChecklistTemplateModel struct {
	ID          string                   `gorm:"primaryKey;type:varchar(64)"`
	Name        string                   `gorm:"type:varchar(255);not null"`
	Category    string                   `gorm:"type:varchar(16);not null"` // routine/event
	Periodicity string                   `gorm:"type:varchar(32)"`          // 仅 routine 模板
	Items       []checklist.TemplateItem `gorm:"type:text;serializer:json;not null"`
	CreatedAt   time.Time                `gorm:"not null"`
	UpdatedAt   time.Time                `gorm:"not null"`
}

// TableName 指定表名
func (ChecklistTemplateModel) TableName() string {
	return "checklist_templates"
}

// Validate 验证模板模型
func (tm *ChecklistTemplateModel) Validate() error {
	if tm.ID == "" {
		return errors.New("template ID is required")
	}
	if tm.Name == "" {
		return errors.New("template name is required")
	}
	if tm.Category != string(checklist.CategoryRoutine) && tm.Category != string(checklist.CategoryEvent) {
		return errors.New("template category must be routine or event")
	}
	if len(tm.Items) == 0 {
		return errors.New("template items are required")
	}
	return nil
}

// ToDomain 转换为领域模板
func (tm *ChecklistTemplateModel) ToDomain() *checklist.Template {
	items := make([]checklist.TemplateItem, len(tm.Items))
	copy(items, tm.Items)
	return &checklist.Template{
		ID:          tm.ID,
		Name:        tm.Name,
		Category:    checklist.TemplateCategory(tm.Category),
		Periodicity: tm.Periodicity,
		Items:       items,
	}
}
