package repository

import (
	"context"
	"fmt"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 检查任务仓储接口
type TaskRepository interface {
	Create(ctx context.Context, task *model.ChecklistTaskModel) error
	FindByID(ctx context.Context, id string) (*model.ChecklistTaskModel, error)
	// UpdateIfStatus 仅当任务当前状态属于 expected 时写入,否则返回 InvalidTransition
	UpdateIfStatus(ctx context.Context, task *model.ChecklistTaskModel, expected ...checklist.Status) error
	FindBuddyMatch(ctx context.Context, ownerID, templateID, excludeID string) (*model.ChecklistTaskModel, error)
	FindByFilter(ctx context.Context, filter *TaskFilter) ([]*model.ChecklistTaskModel, error)
	CountByFilter(ctx context.Context, filter *TaskFilter) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	Statuses   []checklist.Status
	TemplateID *string
	OwnerIDs   []string
	Kind       *checklist.TaskKind
	Offset     int
	Limit      int
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 创建任务
func (r *taskRepository) Create(ctx context.Context, task *model.ChecklistTaskModel) error {
	if err := task.Validate(); err != nil {
		return checklist.InvalidValue("%v", err)
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(ctx context.Context, id string) (*model.ChecklistTaskModel, error) {
	var task model.ChecklistTaskModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, notFound(err, "task %q not found", id)
	}
	return &task, nil
}

// UpdateIfStatus 条件更新: UPDATE ... WHERE id = ? AND status IN (?)
// 影响行数为 0 说明并发请求已先一步改变了状态
func (r *taskRepository) UpdateIfStatus(ctx context.Context, task *model.ChecklistTaskModel, expected ...checklist.Status) error {
	if len(expected) == 0 {
		return fmt.Errorf("expected status is required")
	}
	statuses := make([]string, len(expected))
	for i, s := range expected {
		statuses[i] = string(s)
	}

	result := r.db.WithContext(ctx).
		Model(&model.ChecklistTaskModel{}).
		Where("id = ? AND status IN ?", task.ID, statuses).
		Select("*").
		Omit("id", "created_at").
		Updates(task)
	if result.Error != nil {
		return fmt.Errorf("failed to update task %q: %w", task.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return checklist.InvalidTransition("task %q was modified concurrently", task.ID)
	}
	return nil
}

// FindBuddyMatch 查找搭档在同一模板下可同步的工作任务,最近更新的优先
func (r *taskRepository) FindBuddyMatch(ctx context.Context, ownerID, templateID, excludeID string) (*model.ChecklistTaskModel, error) {
	var task model.ChecklistTaskModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND template_id = ? AND id <> ?", ownerID, templateID, excludeID).
		Where("kind = ?", string(checklist.KindWorkTask)).
		Where("status IN ?", []string{string(checklist.StatusCompleted), string(checklist.StatusApproved)}).
		Order("updated_at DESC").
		First(&task).Error
	if err != nil {
		return nil, notFound(err, "no buddy task for owner %q and template %q", ownerID, templateID)
	}
	return &task, nil
}

// FindByFilter 根据过滤器查找任务
func (r *taskRepository) FindByFilter(ctx context.Context, filter *TaskFilter) ([]*model.ChecklistTaskModel, error) {
	var tasks []*model.ChecklistTaskModel
	if filter != nil && filter.OwnerIDs != nil && len(filter.OwnerIDs) == 0 {
		return tasks, nil
	}

	query := applyTaskFilter(r.db.WithContext(ctx).Model(&model.ChecklistTaskModel{}), filter)
	if filter != nil {
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
	}

	err := query.Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// CountByFilter 统计满足过滤器的任务数量,忽略分页
func (r *taskRepository) CountByFilter(ctx context.Context, filter *TaskFilter) (int64, error) {
	var total int64
	if filter != nil && filter.OwnerIDs != nil && len(filter.OwnerIDs) == 0 {
		return 0, nil
	}
	err := applyTaskFilter(r.db.WithContext(ctx).Model(&model.ChecklistTaskModel{}), filter).Count(&total).Error
	return total, err
}

func applyTaskFilter(query *gorm.DB, filter *TaskFilter) *gorm.DB {
	if filter == nil {
		return query
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.TemplateID != nil {
		query = query.Where("template_id = ?", *filter.TemplateID)
	}
	if len(filter.OwnerIDs) > 0 {
		query = query.Where("owner_id IN ?", filter.OwnerIDs)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", string(*filter.Kind))
	}
	return query
}

// CountByStatus 按状态统计任务数量
func (r *taskRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.ChecklistTaskModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
