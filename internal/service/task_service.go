package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/repository"
	"github.com/mautops/integration-monitor/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskService 任务服务接口
type TaskService interface {
	Create(ctx context.Context, req *CreateTaskRequest) (*model.TaskModel, error)
	Get(ctx context.Context, id string) (*model.TaskModel, error)
	ListByIntegration(ctx context.Context, integrationID string) ([]*model.TaskModel, error)
	Update(ctx context.Context, id string, req *UpdateTaskRequest) (*model.TaskModel, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, items []TaskOrderItem) ([]*model.TaskModel, error)
	SetStatus(ctx context.Context, id, status string) (*model.TaskModel, error)
}

// RetryStrategyRequest 重试策略参数
type RetryStrategyRequest struct {
	Attempts *int   `json:"attempts" binding:"omitempty,min=0"`
	Backoff  *int64 `json:"backoff" binding:"omitempty,min=1000"` // 毫秒
}

// CreateTaskRequest 创建任务请求
// @Description 创建任务的请求参数
type CreateTaskRequest struct {
	Name          string                 `json:"name" binding:"required,min=3,max=100" example:"Extract customers"`
	Description   string                 `json:"description"`
	IntegrationID string                 `json:"integrationId" binding:"required"`
	Type          string                 `json:"type" binding:"required,oneof=extract transform load validate notify custom" example:"extract"`
	Status        string                 `json:"status" binding:"omitempty,oneof=pending running completed failed warning skipped"`
	Order         *int                   `json:"order" binding:"omitempty,min=0"`
	DependsOn     []string               `json:"dependsOn"`
	Config        map[string]interface{} `json:"config" swaggertype:"object"`
	Timeout       *int64                 `json:"timeout" binding:"omitempty,min=1000"` // 毫秒
	RetryStrategy *RetryStrategyRequest  `json:"retryStrategy"`
}

// UpdateTaskRequest 更新任务请求（未提供的字段保持不变，integrationId 不可修改）
// @Description 更新任务的请求参数
type UpdateTaskRequest struct {
	Name          *string                `json:"name" binding:"omitempty,min=3,max=100"`
	Description   *string                `json:"description"`
	Type          *string                `json:"type" binding:"omitempty,oneof=extract transform load validate notify custom"`
	Status        *string                `json:"status" binding:"omitempty,oneof=pending running completed failed warning skipped"`
	Order         *int                   `json:"order" binding:"omitempty,min=0"`
	DependsOn     []string               `json:"dependsOn"`
	Config        map[string]interface{} `json:"config" swaggertype:"object"`
	Timeout       *int64                 `json:"timeout" binding:"omitempty,min=1000"`
	RetryStrategy *RetryStrategyRequest  `json:"retryStrategy"`
}

// IsEmpty 是否未提供任何字段
func (r *UpdateTaskRequest) IsEmpty() bool {
	return r.Name == nil && r.Description == nil && r.Type == nil && r.Status == nil && r.Order == nil &&
		r.DependsOn == nil && r.Config == nil && r.Timeout == nil && r.RetryStrategy == nil
}

// TaskOrderItem 单个任务的新顺序
type TaskOrderItem struct {
	TaskID   string `json:"taskId" binding:"required"`
	NewOrder int    `json:"newOrder" binding:"min=0"`
}

// ReorderTasksRequest 批量调整任务顺序请求
type ReorderTasksRequest struct {
	Tasks []TaskOrderItem `json:"tasks" binding:"required,min=1,dive"`
}

type taskService struct {
	db       *gorm.DB
	taskRepo repository.TaskRepository
	logger   *logrus.Logger
}

// NewTaskService 创建任务服务
func NewTaskService(db *gorm.DB, opts ...Option) TaskService {
	o := newOptions(opts)
	return &taskService{
		db:       db,
		taskRepo: repository.NewTaskRepository(db),
		logger:   o.logger,
	}
}

// Create 创建任务，未指定顺序时追加到末尾
func (s *taskService) Create(ctx context.Context, req *CreateTaskRequest) (*model.TaskModel, error) {
	name, err := utils.ValidateName(req.Name, 3, 100)
	if err != nil {
		return nil, NewFieldError("name", err.Error())
	}
	if utils.ValidateID(req.IntegrationID) != nil {
		return nil, NewNotFoundError("Integration")
	}

	task := &model.TaskModel{
		ID:            uuid.NewString(),
		IntegrationID: req.IntegrationID,
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		Type:          req.Type,
		Status:        req.Status,
		DependsOn:     datatypes.JSONSlice[string](utils.NormalizeTags(req.DependsOn)),
		Config:        datatypes.JSONMap(req.Config),
		Timeout:       model.DefaultTaskTimeout,
		RetryStrategy: model.RetryStrategy{
			Attempts: model.DefaultRetryAttempts,
			Backoff:  model.DefaultRetryBackoff,
		},
	}
	if task.Status == "" {
		task.Status = model.TaskStatusPending
	}
	if task.Config == nil {
		task.Config = datatypes.JSONMap{}
	}
	if req.Timeout != nil {
		task.Timeout = *req.Timeout
	}
	applyRetryStrategy(&task.RetryStrategy, req.RetryStrategy)

	if err := task.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repository.NewIntegrationRepository(tx).FindByID(ctx, task.IntegrationID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewNotFoundError("Integration")
			}
			return err
		}

		taskRepo := repository.NewTaskRepository(tx)
		if err := validateDependencies(ctx, taskRepo, task); err != nil {
			return err
		}

		if req.Order != nil {
			task.Order = *req.Order
		} else {
			max, found, err := taskRepo.MaxOrder(ctx, task.IntegrationID)
			if err != nil {
				return err
			}
			if found {
				task.Order = max + 1
			}
		}

		return taskRepo.Create(ctx, task)
	})
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Task")
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":        task.ID,
		"integration_id": task.IntegrationID,
		"order":          task.Order,
	}).Info("Task created")

	return task, nil
}

// Get 获取任务详情
func (s *taskService) Get(ctx context.Context, id string) (*model.TaskModel, error) {
	if utils.ValidateID(id) != nil {
		return nil, NewNotFoundError("Task")
	}
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Task")
	}
	return task, nil
}

// ListByIntegration 查询集成下的任务（按顺序升序）
func (s *taskService) ListByIntegration(ctx context.Context, integrationID string) ([]*model.TaskModel, error) {
	tasks, err := s.taskRepo.FindByIntegration(ctx, integrationID)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Task")
	}
	if tasks == nil {
		tasks = []*model.TaskModel{}
	}
	return tasks, nil
}

// Update 更新任务（浅合并）
func (s *taskService) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*model.TaskModel, error) {
	if req == nil || req.IsEmpty() {
		return nil, NewValidationError("At least one field must be provided for update")
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name, err := utils.ValidateName(*req.Name, 3, 100)
		if err != nil {
			return nil, NewFieldError("name", err.Error())
		}
		task.Name = name
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.Type != nil {
		task.Type = *req.Type
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Order != nil {
		task.Order = *req.Order
	}
	if req.DependsOn != nil {
		task.DependsOn = datatypes.JSONSlice[string](utils.NormalizeTags(req.DependsOn))
	}
	if req.Config != nil {
		task.Config = datatypes.JSONMap(req.Config)
	}
	if req.Timeout != nil {
		task.Timeout = *req.Timeout
	}
	applyRetryStrategy(&task.RetryStrategy, req.RetryStrategy)

	if err := task.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}
	if req.DependsOn != nil {
		if err := validateDependencies(ctx, s.taskRepo, task); err != nil {
			return nil, classifyStoreError(s.db, err, "Task")
		}
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, classifyStoreError(s.db, err, "Task")
	}

	s.logger.WithField("task_id", task.ID).Info("Task updated")
	return task, nil
}

// Delete 删除任务并压缩同一集成下后续任务的顺序号
func (s *taskService) Delete(ctx context.Context, id string) error {
	if utils.ValidateID(id) != nil {
		return NewNotFoundError("Task")
	}

	var deleted *model.TaskModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskRepo := repository.NewTaskRepository(tx)

		task, err := taskRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		rows, err := taskRepo.Delete(ctx, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			return gorm.ErrRecordNotFound
		}
		deleted = task
		return taskRepo.ShiftOrdersAfter(ctx, task.IntegrationID, task.Order)
	})
	if err != nil {
		return classifyStoreError(s.db, err, "Task")
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":        id,
		"integration_id": deleted.IntegrationID,
		"order":          deleted.Order,
	}).Info("Task deleted")

	return nil
}

// Reorder 批量设置任务顺序号，不存在的任务静默跳过
func (s *taskService) Reorder(ctx context.Context, items []TaskOrderItem) ([]*model.TaskModel, error) {
	for _, item := range items {
		if item.NewOrder < 0 {
			return nil, NewFieldError("newOrder", "newOrder must be non-negative")
		}
	}

	var updated []*model.TaskModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskRepo := repository.NewTaskRepository(tx)

		ids := make([]string, 0, len(items))
		for _, item := range items {
			if utils.ValidateID(item.TaskID) != nil {
				continue
			}
			rows, err := taskRepo.UpdateOrder(ctx, item.TaskID, item.NewOrder)
			if err != nil {
				return err
			}
			if rows > 0 {
				ids = append(ids, item.TaskID)
			}
		}

		tasks, err := taskRepo.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		// 按请求顺序返回
		byID := make(map[string]*model.TaskModel, len(tasks))
		for _, task := range tasks {
			byID[task.ID] = task
		}
		updated = make([]*model.TaskModel, 0, len(ids))
		for _, id := range ids {
			if task, ok := byID[id]; ok {
				updated = append(updated, task)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Task")
	}

	s.logger.WithFields(logrus.Fields{
		"requested": len(items),
		"updated":   len(updated),
	}).Info("Tasks reordered")

	return updated, nil
}

// SetStatus 直接设置任务状态
func (s *taskService) SetStatus(ctx context.Context, id, status string) (*model.TaskModel, error) {
	if !model.Contains(model.TaskStatuses, status) {
		return nil, NewFieldError("status", fmt.Sprintf("status must be one of %s", strings.Join(model.TaskStatuses, ", ")))
	}
	if utils.ValidateID(id) != nil {
		return nil, NewNotFoundError("Task")
	}

	if err := s.taskRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, classifyStoreError(s.db, err, "Task")
	}
	return s.Get(ctx, id)
}

// validateDependencies 依赖必须是同一集成下的其他任务
func validateDependencies(ctx context.Context, taskRepo repository.TaskRepository, task *model.TaskModel) error {
	if len(task.DependsOn) == 0 {
		return nil
	}

	for _, dep := range task.DependsOn {
		if dep == task.ID {
			return NewFieldError("dependsOn", "task cannot depend on itself")
		}
	}

	deps, err := taskRepo.FindByIDs(ctx, task.DependsOn)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(deps))
	for _, dep := range deps {
		if dep.IntegrationID == task.IntegrationID {
			found[dep.ID] = true
		}
	}
	for _, dep := range task.DependsOn {
		if !found[dep] {
			return NewFieldError("dependsOn", fmt.Sprintf("task %s does not belong to the same integration", dep))
		}
	}
	return nil
}

func applyRetryStrategy(target *model.RetryStrategy, req *RetryStrategyRequest) {
	if req == nil {
		return
	}
	if req.Attempts != nil {
		target.Attempts = *req.Attempts
	}
	if req.Backoff != nil {
		target.Backoff = *req.Backoff
	}
}
