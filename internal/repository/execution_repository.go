package repository

import (
	"context"

	"github.com/mautops/integration-monitor/internal/model"
	"gorm.io/gorm"
)

// ExecutionRepository 执行记录仓储接口
type ExecutionRepository interface {
	Create(ctx context.Context, execution *model.ExecutionModel) error
	Save(ctx context.Context, execution *model.ExecutionModel) error
	FindByID(ctx context.Context, id string) (*model.ExecutionModel, error)
	FindByIntegration(ctx context.Context, integrationID string, offset, limit int) ([]*model.ExecutionModel, int64, error)
	FindRecent(ctx context.Context, limit int) ([]*model.ExecutionModel, error)
	IncrementSummary(ctx context.Context, id, column string) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
	DeleteByIntegration(ctx context.Context, integrationID string) (int64, error)
}

// executionRepository 执行记录仓储实现
type executionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository 创建执行记录仓储
func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

// Create 创建执行记录
func (r *executionRepository) Create(ctx context.Context, execution *model.ExecutionModel) error {
	return r.db.WithContext(ctx).Create(execution).Error
}

// Save 保存执行记录
func (r *executionRepository) Save(ctx context.Context, execution *model.ExecutionModel) error {
	return r.db.WithContext(ctx).Save(execution).Error
}

// FindByID 根据 ID 查找执行记录
func (r *executionRepository) FindByID(ctx context.Context, id string) (*model.ExecutionModel, error) {
	var execution model.ExecutionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&execution).Error; err != nil {
		return nil, err
	}
	return &execution, nil
}

// FindByIntegration 分页查询集成的执行记录（开始时间倒序）
func (r *executionRepository) FindByIntegration(ctx context.Context, integrationID string, offset, limit int) ([]*model.ExecutionModel, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.ExecutionModel{}).Where("integration_id = ?", integrationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var executions []*model.ExecutionModel
	err := query.
		Order("start_time DESC").
		Offset(offset).
		Limit(limit).
		Find(&executions).Error
	return executions, total, err
}

// FindRecent 查询最近的执行记录（全局，开始时间倒序）
func (r *executionRepository) FindRecent(ctx context.Context, limit int) ([]*model.ExecutionModel, error) {
	var executions []*model.ExecutionModel
	err := r.db.WithContext(ctx).
		Order("start_time DESC").
		Limit(limit).
		Find(&executions).Error
	return executions, err
}

// IncrementSummary 原子递增汇总计数列（列名来自 model.SummaryColumn）
func (r *executionRepository) IncrementSummary(ctx context.Context, id, column string) error {
	result := r.db.WithContext(ctx).Model(&model.ExecutionModel{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByStatus 按状态统计执行记录
func (r *executionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.ExecutionModel{}).
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

// DeleteByIntegration 删除集成下的全部执行记录
func (r *executionRepository) DeleteByIntegration(ctx context.Context, integrationID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("integration_id = ?", integrationID).Delete(&model.ExecutionModel{})
	return result.RowsAffected, result.Error
}
