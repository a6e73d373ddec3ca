package repository

import (
	"context"
	"database/sql"

	"github.com/mautops/integration-monitor/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Create(ctx context.Context, task *model.TaskModel) error
	Save(ctx context.Context, task *model.TaskModel) error
	FindByID(ctx context.Context, id string) (*model.TaskModel, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.TaskModel, error)
	FindByIntegration(ctx context.Context, integrationID string) ([]*model.TaskModel, error)
	CountByIntegration(ctx context.Context, integrationID string) (int64, error)
	MaxOrder(ctx context.Context, integrationID string) (int, bool, error)
	UpdateOrder(ctx context.Context, id string, order int) (int64, error)
	ShiftOrdersAfter(ctx context.Context, integrationID string, order int) error
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) (int64, error)
	DeleteByIntegration(ctx context.Context, integrationID string) (int64, error)
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
func (r *taskRepository) Create(ctx context.Context, task *model.TaskModel) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// Save 保存任务
func (r *taskRepository) Save(ctx context.Context, task *model.TaskModel) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(ctx context.Context, id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDs 批量查找任务
func (r *taskRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	if len(ids) == 0 {
		return tasks, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tasks).Error
	return tasks, err
}

// FindByIntegration 查找集成下的全部任务（按顺序升序）
func (r *taskRepository) FindByIntegration(ctx context.Context, integrationID string) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	err := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// CountByIntegration 统计集成下的任务数
func (r *taskRepository) CountByIntegration(ctx context.Context, integrationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("integration_id = ?", integrationID).
		Count(&count).Error
	return count, err
}

// MaxOrder 返回集成下最大的顺序号，没有任务时 found 为 false
func (r *taskRepository) MaxOrder(ctx context.Context, integrationID string) (int, bool, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("integration_id = ?", integrationID).
		Select("MAX(sort_order)").
		Row().
		Scan(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

// UpdateOrder 更新任务顺序号，返回受影响行数
func (r *taskRepository) UpdateOrder(ctx context.Context, id string, order int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("id = ?", id).
		Update("sort_order", order)
	return result.RowsAffected, result.Error
}

// ShiftOrdersAfter 将顺序号大于 order 的任务整体前移一位
func (r *taskRepository) ShiftOrdersAfter(ctx context.Context, integrationID string, order int) error {
	return r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("integration_id = ? AND sort_order > ?", integrationID, order).
		Update("sort_order", gorm.Expr("sort_order - 1")).Error
}

// UpdateStatus 更新任务状态
func (r *taskRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result := r.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除任务
func (r *taskRepository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.TaskModel{})
	return result.RowsAffected, result.Error
}

// DeleteByIntegration 删除集成下的全部任务
func (r *taskRepository) DeleteByIntegration(ctx context.Context, integrationID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("integration_id = ?", integrationID).Delete(&model.TaskModel{})
	return result.RowsAffected, result.Error
}
