package service

import (
	"context"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/integration"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// QueryService 查询服务接口
type QueryService interface {
	ListMine(ctx context.Context, callerID string, filter *ListTasksFilter) ([]*checklist.Task, int64, error)
	GetHistory(ctx context.Context, callerID string, taskID string) ([]*StateHistory, error)
}

// ListTasksFilter 任务列表查询过滤器
type ListTasksFilter struct {
	Status   *checklist.Status
	Page     int
	PageSize int
}

// StateHistory 状态历史
type StateHistory struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Operation  string `json:"operation"`
	Reason     string `json:"reason,omitempty"`
	Operator   string `json:"operator"`
	Override   bool   `json:"override"`
	CreatedAt  string `json:"created_at"`
}

// queryService 查询服务实现
type queryService struct {
	taskRepo repository.TaskRepository
	taskMgr  integration.TaskManager
	access   *accessChecker
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB, taskMgr integration.TaskManager, resolver *authority.Resolver, logger *logrus.Logger) QueryService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	users := repository.NewUserRepository(db)
	return &queryService{
		taskRepo: repository.NewTaskRepository(db),
		taskMgr:  taskMgr,
		access:   &accessChecker{users: users, resolver: resolver, logger: logger},
	}
}

// ListMine 列出调用者自己的任务
func (s *queryService) ListMine(ctx context.Context, callerID string, filter *ListTasksFilter) ([]*checklist.Task, int64, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, 0, err
	}

	if filter == nil {
		filter = &ListTasksFilter{}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	repoFilter := &repository.TaskFilter{
		OwnerIDs: []string{caller.ID},
		Offset:   (filter.Page - 1) * filter.PageSize,
		Limit:    filter.PageSize,
	}
	if filter.Status != nil {
		repoFilter.Statuses = []checklist.Status{*filter.Status}
	}

	total, err := s.taskRepo.CountByFilter(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}
	models, err := s.taskRepo.FindByFilter(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	tasks := make([]*checklist.Task, len(models))
	for i, m := range models {
		tasks[i] = m.ToDomain()
	}
	return tasks, total, nil
}

// GetHistory 获取任务状态历史,权限与查看任务一致
func (s *queryService) GetHistory(ctx context.Context, callerID string, taskID string) ([]*StateHistory, error) {
	caller, err := s.access.caller(ctx, callerID)
	if err != nil {
		return nil, err
	}
	task, err := s.taskMgr.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.OwnerID != caller.ID && task.BuddyID != caller.ID {
		if err := s.access.authorizeOwner(ctx, caller, task.OwnerID, authority.KindView); err != nil {
			return nil, err
		}
	}

	rows, err := s.taskMgr.History(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := make([]*StateHistory, len(rows))
	for i, h := range rows {
		out[i] = &StateHistory{
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			Operation:  h.Operation,
			Reason:     h.Reason,
			Operator:   h.Operator,
			Override:   h.Override,
			CreatedAt:  h.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	return out, nil
}
