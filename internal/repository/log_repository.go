package repository

import (
	"context"
	"time"

	"github.com/mautops/integration-monitor/internal/database"
	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/utils"
	"gorm.io/gorm"
)

// LogFilter 日志查询条件，ID 条件为空表示不限制
type LogFilter struct {
	ExecutionID   string
	TaskID        string
	IntegrationID string
	Level         string
	Search        string // message 与 details.message 的子串匹配
	StartTime     *time.Time
	EndTime       *time.Time
	SortOrder     string // ASC / DESC（按时间戳）
	Offset        int
	Limit         int
}

// LogRepository 日志仓储接口
type LogRepository interface {
	Create(ctx context.Context, log *model.LogModel) error
	FindByFilter(ctx context.Context, filter *LogFilter) ([]*model.LogModel, int64, error)
	FindErrors(ctx context.Context, integrationID string, limit int) ([]*model.LogModel, error)
	CountByLevel(ctx context.Context, integrationID string) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, integrationID string, cutoff time.Time) (int64, error)
	DeleteByIntegration(ctx context.Context, integrationID string) (int64, error)
}

// logRepository 日志仓储实现
type logRepository struct {
	db *gorm.DB
}

// NewLogRepository 创建日志仓储
func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

// Create 追加日志
func (r *logRepository) Create(ctx context.Context, log *model.LogModel) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByFilter 按条件分页查询日志
func (r *logRepository) FindByFilter(ctx context.Context, filter *LogFilter) ([]*model.LogModel, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.LogModel{})

	if filter.ExecutionID != "" {
		query = query.Where("execution_id = ?", filter.ExecutionID)
	}
	if filter.TaskID != "" {
		query = query.Where("task_id = ?", filter.TaskID)
	}
	if filter.IntegrationID != "" {
		query = query.Where("integration_id = ?", filter.IntegrationID)
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.StartTime != nil {
		query = query.Where("timestamp >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("timestamp <= ?", *filter.EndTime)
	}
	if filter.Search != "" {
		pattern := utils.ContainsPattern(filter.Search)
		detailsMessage := database.JSONTextExpr(r.db, "details", "message")
		query = query.Where(
			`LOWER(message) LIKE ? ESCAPE '\' OR LOWER(`+detailsMessage+`) LIKE ? ESCAPE '\'`,
			pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortOrder := utils.SanitizeSortOrder(filter.SortOrder, "ASC")

	var logs []*model.LogModel
	err := query.
		Order("timestamp " + sortOrder).
		Order("created_at " + sortOrder).
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&logs).Error
	return logs, total, err
}

// FindErrors 查询集成最近的错误日志
func (r *logRepository) FindErrors(ctx context.Context, integrationID string, limit int) ([]*model.LogModel, error) {
	var logs []*model.LogModel
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND level = ?", integrationID, model.LogLevelError).
		Order("timestamp DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// CountByLevel 按级别统计集成日志数量
func (r *logRepository) CountByLevel(ctx context.Context, integrationID string) (map[string]int64, error) {
	var rows []struct {
		Level string
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&model.LogModel{}).
		Select("level, COUNT(*) AS count").
		Where("integration_id = ?", integrationID).
		Group("level").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Level] = row.Count
	}
	return counts, nil
}

// DeleteOlderThan 删除早于 cutoff 的日志，integrationID 为空时作用于全部集成
func (r *logRepository) DeleteOlderThan(ctx context.Context, integrationID string, cutoff time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Where("timestamp < ?", cutoff)
	if integrationID != "" {
		query = query.Where("integration_id = ?", integrationID)
	}
	result := query.Delete(&model.LogModel{})
	return result.RowsAffected, result.Error
}

// DeleteByIntegration 删除集成的全部日志
func (r *logRepository) DeleteByIntegration(ctx context.Context, integrationID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("integration_id = ?", integrationID).Delete(&model.LogModel{})
	return result.RowsAffected, result.Error
}
