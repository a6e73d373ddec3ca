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

// DefaultIntegrationPageLimit 集成列表默认每页数量
const DefaultIntegrationPageLimit = 10

// 数据源与目标的最大长度，与列定义一致
const maxEndpointLength = 255

// IntegrationService 集成服务接口
type IntegrationService interface {
	Create(ctx context.Context, req *CreateIntegrationRequest) (*model.IntegrationModel, error)
	Get(ctx context.Context, id string) (*model.IntegrationModel, error)
	List(ctx context.Context, filter *IntegrationListFilter) (*IntegrationListResult, error)
	Update(ctx context.Context, id string, req *UpdateIntegrationRequest) (*model.IntegrationModel, error)
	Delete(ctx context.Context, id string, cascade bool) (*DeleteIntegrationResult, error)
	SetStatus(ctx context.Context, id, status string) (*model.IntegrationModel, error)
	Stats(ctx context.Context) (*IntegrationStats, error)
}

// CreateIntegrationRequest 创建集成请求
// @Description 创建集成的请求参数
type CreateIntegrationRequest struct {
	Name            string                 `json:"name" binding:"required,min=3,max=100" example:"CRM to Warehouse"`
	Description     string                 `json:"description"`
	Type            string                 `json:"type" binding:"required,oneof=API DATABASE FILE EVENT OTHER" example:"API"`
	Source          string                 `json:"source" binding:"required"`
	Destination     string                 `json:"destination" binding:"required"`
	Status          string                 `json:"status" binding:"omitempty,oneof=active inactive error warning"`
	Frequency       string                 `json:"frequency" binding:"omitempty,oneof=hourly daily weekly monthly custom"`
	CustomFrequency *string                `json:"customFrequency"`
	Config          map[string]interface{} `json:"config" swaggertype:"object"`
	HealthScore     *int                   `json:"healthScore" binding:"omitempty,min=0,max=100"`
	Owner           *string                `json:"owner"`
	Tags            []string               `json:"tags"`
}

// UpdateIntegrationRequest 更新集成请求（未提供的字段保持不变）
// @Description 更新集成的请求参数
type UpdateIntegrationRequest struct {
	Name            *string                `json:"name" binding:"omitempty,min=3,max=100"`
	Description     *string                `json:"description"`
	Type            *string                `json:"type" binding:"omitempty,oneof=API DATABASE FILE EVENT OTHER"`
	Source          *string                `json:"source" binding:"omitempty,min=1"`
	Destination     *string                `json:"destination" binding:"omitempty,min=1"`
	Status          *string                `json:"status" binding:"omitempty,oneof=active inactive error warning"`
	Frequency       *string                `json:"frequency" binding:"omitempty,oneof=hourly daily weekly monthly custom"`
	CustomFrequency *string                `json:"customFrequency"`
	Config          map[string]interface{} `json:"config" swaggertype:"object"`
	HealthScore     *int                   `json:"healthScore" binding:"omitempty,min=0,max=100"`
	Owner           *string                `json:"owner"`
	Tags            []string               `json:"tags"`
}

// IsEmpty 是否未提供任何字段
func (r *UpdateIntegrationRequest) IsEmpty() bool {
	return r.Name == nil && r.Description == nil && r.Type == nil && r.Source == nil &&
		r.Destination == nil && r.Status == nil && r.Frequency == nil && r.CustomFrequency == nil &&
		r.Config == nil && r.HealthScore == nil && r.Owner == nil && r.Tags == nil
}

// IntegrationListFilter 集成列表查询条件
type IntegrationListFilter struct {
	Status    string
	Type      string
	Tags      []string
	Search    string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// IntegrationListResult 集成分页结果
type IntegrationListResult struct {
	Data       []*model.IntegrationModel `json:"data"`
	Pagination Pagination                `json:"pagination"`
}

// DeleteIntegrationResult 删除集成结果
type DeleteIntegrationResult struct {
	ID                string `json:"id"`
	Cascade           bool   `json:"cascade"`
	DeletedTasks      int64  `json:"deletedTasks"`
	DeletedExecutions int64  `json:"deletedExecutions"`
	DeletedLogs       int64  `json:"deletedLogs"`
}

// TypeCount 按类型计数
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// FrequencyCount 按频率计数
type FrequencyCount struct {
	Frequency string `json:"frequency"`
	Count     int64  `json:"count"`
}

// IntegrationStats 集成统计
type IntegrationStats struct {
	Total       int64            `json:"total"`
	ByStatus    map[string]int64 `json:"byStatus"`
	ByType      []TypeCount      `json:"byType"`
	ByFrequency []FrequencyCount `json:"byFrequency"`
}

// 可排序字段（API 字段名 -> 列名）
var integrationSortColumns = map[string]string{
	"name":                    "name",
	"type":                    "type",
	"status":                  "status",
	"frequency":               "frequency",
	"source":                  "source",
	"destination":             "destination",
	"healthScore":             "health_score",
	"createdAt":               "created_at",
	"updatedAt":               "updated_at",
	"lastExecution.startTime": "last_execution_start_time",
}

type integrationService struct {
	db              *gorm.DB
	integrationRepo repository.IntegrationRepository
	logger          *logrus.Logger
}

// NewIntegrationService 创建集成服务
func NewIntegrationService(db *gorm.DB, opts ...Option) IntegrationService {
	o := newOptions(opts)
	return &integrationService{
		db:              db,
		integrationRepo: repository.NewIntegrationRepository(db),
		logger:          o.logger,
	}
}

// Create 创建集成
func (s *integrationService) Create(ctx context.Context, req *CreateIntegrationRequest) (*model.IntegrationModel, error) {
	name, err := utils.ValidateName(req.Name, 3, 100)
	if err != nil {
		return nil, NewFieldError("name", err.Error())
	}

	integration := &model.IntegrationModel{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     strings.TrimSpace(req.Description),
		Type:            req.Type,
		Source:          strings.TrimSpace(req.Source),
		Destination:     strings.TrimSpace(req.Destination),
		Status:          req.Status,
		Frequency:       req.Frequency,
		CustomFrequency: trimPtr(req.CustomFrequency),
		Config:          datatypes.JSONMap(req.Config),
		HealthScore:     100,
		Owner:           trimPtr(req.Owner),
		Tags:            datatypes.JSONSlice[string](utils.NormalizeTags(req.Tags)),
	}
	if integration.Status == "" {
		integration.Status = model.IntegrationStatusInactive
	}
	if integration.Frequency == "" {
		integration.Frequency = model.FrequencyDaily
	}
	if integration.Config == nil {
		integration.Config = datatypes.JSONMap{}
	}
	if req.HealthScore != nil {
		integration.HealthScore = *req.HealthScore
	}

	if err := validateIntegration(integration); err != nil {
		return nil, err
	}
	if err := s.ensureNameAvailable(ctx, integration.Name, ""); err != nil {
		return nil, err
	}

	if err := s.integrationRepo.Create(ctx, integration); err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	s.logger.WithFields(logrus.Fields{
		"integration_id": integration.ID,
		"name":           integration.Name,
		"type":           integration.Type,
	}).Info("Integration created")

	return integration, nil
}

// Get 获取集成详情
func (s *integrationService) Get(ctx context.Context, id string) (*model.IntegrationModel, error) {
	if utils.ValidateID(id) != nil {
		return nil, NewNotFoundError("Integration")
	}
	integration, err := s.integrationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	return integration, nil
}

// List 按条件分页查询集成
func (s *integrationService) List(ctx context.Context, filter *IntegrationListFilter) (*IntegrationListResult, error) {
	if filter == nil {
		filter = &IntegrationListFilter{}
	}
	page, limit := normalizePage(filter.Page, filter.Limit, DefaultIntegrationPageLimit)

	repoFilter := &repository.IntegrationFilter{
		Status: ignoreAll(filter.Status),
		Type:   ignoreAll(filter.Type),
		Tags:   utils.NormalizeTags(filter.Tags),
		Search: strings.TrimSpace(filter.Search),
		Offset: offset(page, limit),
		Limit:  limit,
	}

	if filter.SortBy != "" {
		column, ok := integrationSortColumns[filter.SortBy]
		if !ok || utils.ValidateSortField(column) != nil {
			return nil, NewFieldError("sortBy", fmt.Sprintf("unsupported sort field: %s", filter.SortBy))
		}
		repoFilter.SortBy = column
		repoFilter.SortOrder = "ASC"
		if filter.SortOrder != "" {
			if err := utils.ValidateSortOrder(filter.SortOrder); err != nil {
				return nil, NewFieldError("sortOrder", err.Error())
			}
			repoFilter.SortOrder = strings.ToUpper(filter.SortOrder)
		}
	}

	integrations, total, err := s.integrationRepo.FindByFilter(ctx, repoFilter)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	if integrations == nil {
		integrations = []*model.IntegrationModel{}
	}

	return &IntegrationListResult{
		Data:       integrations,
		Pagination: newPagination(total, page, limit),
	}, nil
}

// Update 更新集成（浅合并）
func (s *integrationService) Update(ctx context.Context, id string, req *UpdateIntegrationRequest) (*model.IntegrationModel, error) {
	if req == nil || req.IsEmpty() {
		return nil, NewValidationError("At least one field must be provided for update")
	}

	integration, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	nameChanged := false
	if req.Name != nil {
		name, err := utils.ValidateName(*req.Name, 3, 100)
		if err != nil {
			return nil, NewFieldError("name", err.Error())
		}
		nameChanged = name != integration.Name
		integration.Name = name
	}
	if req.Description != nil {
		integration.Description = strings.TrimSpace(*req.Description)
	}
	if req.Type != nil {
		integration.Type = *req.Type
	}
	if req.Source != nil {
		integration.Source = strings.TrimSpace(*req.Source)
	}
	if req.Destination != nil {
		integration.Destination = strings.TrimSpace(*req.Destination)
	}
	if req.Status != nil {
		integration.Status = *req.Status
	}
	if req.Frequency != nil {
		integration.Frequency = *req.Frequency
	}
	if req.CustomFrequency != nil {
		integration.CustomFrequency = trimPtr(req.CustomFrequency)
	}
	if req.Config != nil {
		integration.Config = datatypes.JSONMap(req.Config)
	}
	if req.HealthScore != nil {
		integration.HealthScore = *req.HealthScore
	}
	if req.Owner != nil {
		integration.Owner = trimPtr(req.Owner)
	}
	if req.Tags != nil {
		integration.Tags = datatypes.JSONSlice[string](utils.NormalizeTags(req.Tags))
	}

	if err := validateIntegration(integration); err != nil {
		return nil, err
	}
	if nameChanged {
		if err := s.ensureNameAvailable(ctx, integration.Name, integration.ID); err != nil {
			return nil, err
		}
	}

	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	s.logger.WithField("integration_id", integration.ID).Info("Integration updated")
	return integration, nil
}

// Delete 删除集成，cascade 为 true 时同时删除任务、执行记录、事件与日志
func (s *integrationService) Delete(ctx context.Context, id string, cascade bool) (*DeleteIntegrationResult, error) {
	if utils.ValidateID(id) != nil {
		return nil, NewNotFoundError("Integration")
	}

	result := &DeleteIntegrationResult{ID: id, Cascade: cascade}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := repository.NewIntegrationRepository(tx).Delete(ctx, id)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return gorm.ErrRecordNotFound
		}
		if !cascade {
			return nil
		}

		if result.DeletedTasks, err = repository.NewTaskRepository(tx).DeleteByIntegration(ctx, id); err != nil {
			return err
		}
		if result.DeletedExecutions, err = repository.NewExecutionRepository(tx).DeleteByIntegration(ctx, id); err != nil {
			return err
		}
		if _, err = repository.NewExecutionEventRepository(tx).DeleteByIntegration(ctx, id); err != nil {
			return err
		}
		result.DeletedLogs, err = repository.NewLogRepository(tx).DeleteByIntegration(ctx, id)
		return err
	})
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	s.logger.WithFields(logrus.Fields{
		"integration_id":     id,
		"cascade":            cascade,
		"deleted_tasks":      result.DeletedTasks,
		"deleted_executions": result.DeletedExecutions,
		"deleted_logs":       result.DeletedLogs,
	}).Info("Integration deleted")

	return result, nil
}

// SetStatus 直接设置集成状态
func (s *integrationService) SetStatus(ctx context.Context, id, status string) (*model.IntegrationModel, error) {
	if !model.Contains(model.IntegrationStatuses, status) {
		return nil, NewFieldError("status", fmt.Sprintf("status must be one of %s", strings.Join(model.IntegrationStatuses, ", ")))
	}
	if utils.ValidateID(id) != nil {
		return nil, NewNotFoundError("Integration")
	}

	if err := s.integrationRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	s.logger.WithFields(logrus.Fields{
		"integration_id": id,
		"status":         status,
	}).Info("Integration status updated")

	return s.Get(ctx, id)
}

// Stats 集成统计
func (s *integrationService) Stats(ctx context.Context) (*IntegrationStats, error) {
	total, err := s.integrationRepo.Count(ctx)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	byStatus, err := s.integrationRepo.CountBy(ctx, "status")
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	byType, err := s.integrationRepo.CountBy(ctx, "type")
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	byFrequency, err := s.integrationRepo.CountBy(ctx, "frequency")
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	stats := &IntegrationStats{
		Total:       total,
		ByStatus:    make(map[string]int64, len(model.IntegrationStatuses)),
		ByType:      make([]TypeCount, 0, len(byType)),
		ByFrequency: make([]FrequencyCount, 0, len(byFrequency)),
	}
	for _, status := range model.IntegrationStatuses {
		stats.ByStatus[status] = 0
	}
	for _, row := range byStatus {
		if _, ok := stats.ByStatus[row.Key]; ok {
			stats.ByStatus[row.Key] = row.Count
		}
	}
	for _, row := range byType {
		stats.ByType = append(stats.ByType, TypeCount{Type: row.Key, Count: row.Count})
	}
	for _, row := range byFrequency {
		stats.ByFrequency = append(stats.ByFrequency, FrequencyCount{Frequency: row.Key, Count: row.Count})
	}

	return stats, nil
}

// ensureNameAvailable 名称唯一性预检查
func (s *integrationService) ensureNameAvailable(ctx context.Context, name, excludeID string) error {
	exists, err := s.integrationRepo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return classifyStoreError(s.db, err, "Integration")
	}
	if exists {
		return NewDuplicateKeyError(fmt.Sprintf("Integration with name '%s' already exists", name), nil)
	}
	return nil
}

// validateIntegration 校验合并后的集成
func validateIntegration(integration *model.IntegrationModel) error {
	source, err := endpointField("source", integration.Source)
	if err != nil {
		return err
	}
	destination, err := endpointField("destination", integration.Destination)
	if err != nil {
		return err
	}
	integration.Source = source
	integration.Destination = destination

	if integration.Frequency == model.FrequencyCustom &&
		(integration.CustomFrequency == nil || *integration.CustomFrequency == "") {
		return NewFieldError("customFrequency", "customFrequency is required when frequency is custom")
	}
	if err := integration.Validate(); err != nil {
		return NewValidationError(err.Error())
	}
	return nil
}

// endpointField 修剪数据源/目标并检查长度，去除控制字符
func endpointField(field, value string) (string, error) {
	trimmed, err := utils.TrimAndValidate(value, maxEndpointLength)
	switch {
	case errors.Is(err, utils.ErrEmptyString):
		return "", NewFieldError(field, field+" is required")
	case err != nil:
		return "", NewFieldError(field, fmt.Sprintf("%s must be at most %d characters", field, maxEndpointLength))
	}
	return trimmed, nil
}

// ignoreAll 查询参数 "all" 表示不过滤
func ignoreAll(value string) string {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "all") {
		return ""
	}
	return value
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
