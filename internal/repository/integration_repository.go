package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/utils"
	"gorm.io/gorm"
)

// IntegrationFilter 集成查询条件
type IntegrationFilter struct {
	Status    string
	Type      string
	Tags      []string // 任一匹配
	Search    string   // 名称、描述、来源、目标的子串匹配
	SortBy    string   // 列名，需经过白名单
	SortOrder string   // ASC / DESC
	Offset    int
	Limit     int
}

// GroupCount 分组计数
type GroupCount struct {
	Key   string
	Count int64
}

// IntegrationRepository 集成仓储接口
type IntegrationRepository interface {
	Create(ctx context.Context, integration *model.IntegrationModel) error
	Save(ctx context.Context, integration *model.IntegrationModel) error
	FindByID(ctx context.Context, id string) (*model.IntegrationModel, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.IntegrationModel, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	FindByFilter(ctx context.Context, filter *IntegrationFilter) ([]*model.IntegrationModel, int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateLastExecution(ctx context.Context, id string, last model.LastExecution, status string) error
	Delete(ctx context.Context, id string) (int64, error)
	Count(ctx context.Context) (int64, error)
	CountBy(ctx context.Context, column string) ([]GroupCount, error)
}

// integrationRepository 集成仓储实现
type integrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository 创建集成仓储
func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

// Create 创建集成
func (r *integrationRepository) Create(ctx context.Context, integration *model.IntegrationModel) error {
	return r.db.WithContext(ctx).Create(integration).Error
}

// Save 保存集成（全字段）
func (r *integrationRepository) Save(ctx context.Context, integration *model.IntegrationModel) error {
	return r.db.WithContext(ctx).Save(integration).Error
}

// FindByID 根据 ID 查找集成
func (r *integrationRepository) FindByID(ctx context.Context, id string) (*model.IntegrationModel, error) {
	var integration model.IntegrationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&integration).Error; err != nil {
		return nil, err
	}
	return &integration, nil
}

// FindByIDs 批量查找集成，返回 ID 到集成的映射
func (r *integrationRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.IntegrationModel, error) {
	result := make(map[string]*model.IntegrationModel, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var integrations []*model.IntegrationModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&integrations).Error; err != nil {
		return nil, err
	}
	for _, integration := range integrations {
		result[integration.ID] = integration
	}
	return result, nil
}

// ExistsByName 判断名称是否已被占用（可排除自身）
func (r *integrationRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := r.db.WithContext(ctx).Model(&model.IntegrationModel{}).Where("name = ?", name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByFilter 按条件分页查询集成
func (r *integrationRepository) FindByFilter(ctx context.Context, filter *IntegrationFilter) ([]*model.IntegrationModel, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.IntegrationModel{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if len(filter.Tags) > 0 {
		query = query.Where(tagsCondition(r.db, filter.Tags))
	}
	if filter.Search != "" {
		pattern := utils.ContainsPattern(filter.Search)
		query = query.Where(
			`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(source) LIKE ? ESCAPE '\' OR LOWER(destination) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "updated_at"
	}
	sortOrder := utils.SanitizeSortOrder(filter.SortOrder, "DESC")

	var integrations []*model.IntegrationModel
	err := query.
		Order(sortBy + " " + sortOrder).
		Order("id " + sortOrder).
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&integrations).Error
	return integrations, total, err
}

// tagsCondition 构造标签任一匹配条件（tags 以 JSON 数组存储）
func tagsCondition(db *gorm.DB, tags []string) *gorm.DB {
	cond := db.Session(&gorm.Session{NewDB: true})
	first := true
	for _, tag := range tags {
		for _, encoded := range tagEncodings(tag) {
			pattern := "%" + utils.EscapeLike(encoded) + "%"
			if first {
				cond = cond.Where(`CAST(tags AS TEXT) LIKE ? ESCAPE '\'`, pattern)
				first = false
			} else {
				cond = cond.Or(`CAST(tags AS TEXT) LIKE ? ESCAPE '\'`, pattern)
			}
		}
	}
	return cond
}

// tagEncodings 标签在 JSON 文本中的可能形式：json.Marshal 会转义 & < >，
// 而 postgres jsonb 转为文本时不转义
func tagEncodings(tag string) []string {
	escaped, _ := json.Marshal(tag)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(tag)
	plain := strings.TrimSuffix(buf.String(), "\n")

	if plain == string(escaped) {
		return []string{plain}
	}
	return []string{string(escaped), plain}
}

// UpdateStatus 更新集成状态
func (r *integrationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result := r.db.WithContext(ctx).Model(&model.IntegrationModel{}).
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

// UpdateLastExecution 回写最近执行快照，status 为空时不修改集成状态
func (r *integrationRepository) UpdateLastExecution(ctx context.Context, id string, last model.LastExecution, status string) error {
	updates := map[string]interface{}{
		"last_execution_start_time": last.StartTime,
		"last_execution_end_time":   last.EndTime,
		"last_execution_status":     last.Status,
	}
	if status != "" {
		updates["status"] = status
	}

	result := r.db.WithContext(ctx).Model(&model.IntegrationModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除集成，返回删除行数
func (r *integrationRepository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.IntegrationModel{})
	return result.RowsAffected, result.Error
}

// Count 统计集成总数
func (r *integrationRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.IntegrationModel{}).Count(&count).Error
	return count, err
}

// CountBy 按列分组计数（列名由调用方保证安全）
func (r *integrationRepository) CountBy(ctx context.Context, column string) ([]GroupCount, error) {
	var rows []struct {
		GroupKey string
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&model.IntegrationModel{}).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make([]GroupCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, GroupCount{Key: strings.TrimSpace(row.GroupKey), Count: row.Count})
	}
	return counts, nil
}
