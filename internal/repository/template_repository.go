package repository

import (
	"context"
	"time"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"gorm.io/gorm"
)

// TemplateRepository 检查单模板仓储接口
type TemplateRepository interface {
	Save(ctx context.Context, tpl *model.ChecklistTemplateModel) error
	FindByID(ctx context.Context, id string) (*model.ChecklistTemplateModel, error)
	Delete(ctx context.Context, id string) error
}

// templateRepository 模板仓储实现
type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建模板仓储
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// Save 保存模板
func (r *templateRepository) Save(ctx context.Context, tpl *model.ChecklistTemplateModel) error {
	if err := tpl.Validate(); err != nil {
		return checklist.InvalidValue("%v", err)
	}
	now := time.Now()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now
	return r.db.WithContext(ctx).Save(tpl).Error
}

// FindByID 根据 ID 查找模板
func (r *templateRepository) FindByID(ctx context.Context, id string) (*model.ChecklistTemplateModel, error) {
	var tpl model.ChecklistTemplateModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tpl).Error; err != nil {
		return nil, notFound(err, "template %q not found", id)
	}
	return &tpl, nil
}

// Delete 删除模板
func (r *templateRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ChecklistTemplateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return checklist.NotFound("template %q not found", id)
	}
	return nil
}
