package repository

import (
	"context"
	"time"

	"github.com/mautops/integration-monitor/internal/model"
	"gorm.io/gorm"
)

// ExecutionEventRepository 执行事件仓储接口
type ExecutionEventRepository interface {
	Save(ctx context.Context, event *model.ExecutionEventModel) error
	FindByExecutionID(ctx context.Context, executionID string) ([]*model.ExecutionEventModel, error)
	FindPending(ctx context.Context, limit int) ([]*model.ExecutionEventModel, error)
	MarkApplied(ctx context.Context, ids []string, appliedAt time.Time) error
	IncrementRetry(ctx context.Context, id string) error
	DeleteByIntegration(ctx context.Context, integrationID string) (int64, error)
}

// executionEventRepository 执行事件仓储实现
type executionEventRepository struct {
	db *gorm.DB
}

// NewExecutionEventRepository 创建执行事件仓储
func NewExecutionEventRepository(db *gorm.DB) ExecutionEventRepository {
	return &executionEventRepository{db: db}
}

// Save 保存事件
func (r *executionEventRepository) Save(ctx context.Context, event *model.ExecutionEventModel) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// FindByExecutionID 根据执行 ID 查找事件
func (r *executionEventRepository) FindByExecutionID(ctx context.Context, executionID string) ([]*model.ExecutionEventModel, error) {
	var events []*model.ExecutionEventModel
	err := r.db.WithContext(ctx).Where("execution_id = ?", executionID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待应用的事件，失败次数少的优先，同等次数下最早的优先
func (r *executionEventRepository) FindPending(ctx context.Context, limit int) ([]*model.ExecutionEventModel, error) {
	var events []*model.ExecutionEventModel
	query := r.db.WithContext(ctx).
		Where("status = ?", model.EventStatusPending).
		Order("retry_count ASC").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// MarkApplied 标记事件已应用
func (r *executionEventRepository) MarkApplied(ctx context.Context, ids []string, appliedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.ExecutionEventModel{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":     model.EventStatusApplied,
			"applied_at": appliedAt,
		}).Error
}

// IncrementRetry 记录一次应用失败
func (r *executionEventRepository) IncrementRetry(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.ExecutionEventModel{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1")).Error
}

// DeleteByIntegration 删除集成下的全部事件
func (r *executionEventRepository) DeleteByIntegration(ctx context.Context, integrationID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("integration_id = ?", integrationID).Delete(&model.ExecutionEventModel{})
	return result.RowsAffected, result.Error
}
