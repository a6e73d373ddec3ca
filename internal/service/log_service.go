package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/integration-monitor/internal/metrics"
	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/repository"
	"github.com/mautops/integration-monitor/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 日志查询默认数量
const (
	DefaultLogPageLimit     = 100
	DefaultRecentErrorLimit = 50
)

// 日志查询范围
const (
	LogScopeExecution   = "execution"
	LogScopeTask        = "task"
	LogScopeIntegration = "integration"
)

// LogService 日志服务接口
type LogService interface {
	Create(ctx context.Context, req *CreateLogRequest) (*model.LogModel, error)
	ListByExecution(ctx context.Context, executionID string, opts *LogQueryOptions) (*LogListResult, error)
	ListByTask(ctx context.Context, taskID string, opts *LogQueryOptions) (*LogListResult, error)
	ListByIntegration(ctx context.Context, integrationID string, opts *LogQueryOptions) (*LogListResult, error)
	RecentErrors(ctx context.Context, integrationID string, limit int) ([]*model.LogModel, error)
	LevelDistribution(ctx context.Context, integrationID string) (map[string]int64, error)
	DeleteOlderThan(ctx context.Context, integrationID string, cutoff time.Time) (int64, error)
	ClearForIntegration(ctx context.Context, integrationID string) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CreateLogRequest 写入日志请求
// @Description 写入执行日志的请求参数
type CreateLogRequest struct {
	TaskID        *string                `json:"taskId"`
	ExecutionID   string                 `json:"executionId" binding:"required"`
	IntegrationID string                 `json:"integrationId" binding:"required"`
	Timestamp     *time.Time             `json:"timestamp"`
	Level         string                 `json:"level" binding:"omitempty,oneof=debug info warning error" example:"info"`
	Message       string                 `json:"message" binding:"required" example:"Extracted 120 records"`
	Details       map[string]interface{} `json:"details" swaggertype:"object"`
	Source        string                 `json:"source" example:"system"`
	Context       map[string]interface{} `json:"context" swaggertype:"object"`
}

// LogQueryOptions 日志查询选项
type LogQueryOptions struct {
	Page        int
	Limit       int
	Level       string
	Search      string
	TaskID      string     // execution 与 integration 范围可用
	ExecutionID string     // task 与 integration 范围可用
	StartDate   *time.Time // 仅 integration 范围
	EndDate     *time.Time // 仅 integration 范围
	SortOrder   string     // asc / desc，为空时使用范围默认值
}

// LogListResult 日志分页结果
type LogListResult struct {
	Data       []*model.LogModel `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type logService struct {
	db      *gorm.DB
	logRepo repository.LogRepository
	logger  *logrus.Logger
	now     func() time.Time
}

// NewLogService 创建日志服务
func NewLogService(db *gorm.DB, opts ...Option) LogService {
	o := newOptions(opts)
	return &logService{
		db:      db,
		logRepo: repository.NewLogRepository(db),
		logger:  o.logger,
		now:     o.now,
	}
}

// Create 追加一条执行日志
func (s *logService) Create(ctx context.Context, req *CreateLogRequest) (*model.LogModel, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, NewFieldError("message", "message is required")
	}
	if strings.TrimSpace(req.ExecutionID) == "" {
		return nil, NewFieldError("executionId", "executionId is required")
	}
	if strings.TrimSpace(req.IntegrationID) == "" {
		return nil, NewFieldError("integrationId", "integrationId is required")
	}

	entry := &model.LogModel{
		ID:            uuid.NewString(),
		TaskID:        trimPtr(req.TaskID),
		ExecutionID:   req.ExecutionID,
		IntegrationID: req.IntegrationID,
		Timestamp:     s.now(),
		Level:         req.Level,
		Message:       message,
		Details:       datatypes.JSONMap(req.Details),
		Source:        strings.TrimSpace(req.Source),
		Context:       datatypes.JSONMap(req.Context),
	}
	if entry.TaskID != nil && *entry.TaskID == "" {
		entry.TaskID = nil
	}
	if req.Timestamp != nil {
		entry.Timestamp = req.Timestamp.UTC()
	}
	if entry.Level == "" {
		entry.Level = model.LogLevelInfo
	}
	if entry.Source == "" {
		entry.Source = model.DefaultLogSource
	}
	if entry.Context == nil {
		entry.Context = datatypes.JSONMap{}
	}

	if err := entry.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		return nil, classifyStoreError(s.db, err, "Log")
	}

	metrics.RecordLogRecorded(entry.Level)
	return entry, nil
}

// ListByExecution 查询执行的日志（默认时间升序）
func (s *logService) ListByExecution(ctx context.Context, executionID string, opts *LogQueryOptions) (*LogListResult, error) {
	return s.list(ctx, LogScopeExecution, executionID, opts)
}

// ListByTask 查询任务的日志（默认时间升序）
func (s *logService) ListByTask(ctx context.Context, taskID string, opts *LogQueryOptions) (*LogListResult, error) {
	return s.list(ctx, LogScopeTask, taskID, opts)
}

// ListByIntegration 查询集成的日志（默认时间倒序）
func (s *logService) ListByIntegration(ctx context.Context, integrationID string, opts *LogQueryOptions) (*LogListResult, error) {
	return s.list(ctx, LogScopeIntegration, integrationID, opts)
}

// list 按范围构造查询条件
func (s *logService) list(ctx context.Context, scope, id string, opts *LogQueryOptions) (*LogListResult, error) {
	if opts == nil {
		opts = &LogQueryOptions{}
	}
	page, limit := normalizePage(opts.Page, opts.Limit, DefaultLogPageLimit)

	filter := &repository.LogFilter{
		Level:  ignoreAll(opts.Level),
		Search: strings.TrimSpace(opts.Search),
		Offset: offset(page, limit),
		Limit:  limit,
	}

	defaultOrder := "ASC"
	switch scope {
	case LogScopeExecution:
		filter.ExecutionID = id
		filter.TaskID = opts.TaskID
	case LogScopeTask:
		filter.TaskID = id
		filter.ExecutionID = opts.ExecutionID
	case LogScopeIntegration:
		filter.IntegrationID = id
		filter.TaskID = opts.TaskID
		filter.ExecutionID = opts.ExecutionID
		filter.StartTime = utcPtr(opts.StartDate)
		filter.EndTime = utcPtr(opts.EndDate)
		defaultOrder = "DESC"
	default:
		return nil, fmt.Errorf("unknown log scope: %s", scope)
	}

	filter.SortOrder = defaultOrder
	if opts.SortOrder != "" {
		if err := utils.ValidateSortOrder(opts.SortOrder); err != nil {
			return nil, NewFieldError("sortOrder", err.Error())
		}
		filter.SortOrder = strings.ToUpper(opts.SortOrder)
	}

	logs, total, err := s.logRepo.FindByFilter(ctx, filter)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Log")
	}
	if logs == nil {
		logs = []*model.LogModel{}
	}

	return &LogListResult{
		Data:       logs,
		Pagination: newPagination(total, page, limit),
	}, nil
}

// RecentErrors 查询集成最近的错误日志
func (s *logService) RecentErrors(ctx context.Context, integrationID string, limit int) ([]*model.LogModel, error) {
	if limit < 1 {
		limit = DefaultRecentErrorLimit
	}
	logs, err := s.logRepo.FindErrors(ctx, integrationID, limit)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Log")
	}
	if logs == nil {
		logs = []*model.LogModel{}
	}
	return logs, nil
}

// LevelDistribution 按级别统计集成日志，四个级别都会出现
func (s *logService) LevelDistribution(ctx context.Context, integrationID string) (map[string]int64, error) {
	counts, err := s.logRepo.CountByLevel(ctx, integrationID)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Log")
	}

	distribution := make(map[string]int64, len(model.LogLevels))
	for _, level := range model.LogLevels {
		distribution[level] = counts[level]
	}
	return distribution, nil
}

// DeleteOlderThan 删除集成早于 cutoff 的日志
func (s *logService) DeleteOlderThan(ctx context.Context, integrationID string, cutoff time.Time) (int64, error) {
	if strings.TrimSpace(integrationID) == "" {
		return 0, NewFieldError("integrationId", "integrationId is required")
	}
	return s.deleteOlderThan(ctx, integrationID, cutoff)
}

// ClearForIntegration 删除集成的全部日志
func (s *logService) ClearForIntegration(ctx context.Context, integrationID string) (int64, error) {
	if strings.TrimSpace(integrationID) == "" {
		return 0, NewFieldError("integrationId", "integrationId is required")
	}

	deleted, err := s.logRepo.DeleteByIntegration(ctx, integrationID)
	if err != nil {
		return 0, classifyStoreError(s.db, err, "Log")
	}

	s.logger.WithFields(logrus.Fields{
		"integration_id": integrationID,
		"deleted":        deleted,
	}).Info("Logs cleared")
	return deleted, nil
}

// PurgeOlderThan 删除全部集成中早于 cutoff 的日志
func (s *logService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteOlderThan(ctx, "", cutoff)
}

func (s *logService) deleteOlderThan(ctx context.Context, integrationID string, cutoff time.Time) (int64, error) {
	deleted, err := s.logRepo.DeleteOlderThan(ctx, integrationID, cutoff.UTC())
	if err != nil {
		return 0, classifyStoreError(s.db, err, "Log")
	}

	s.logger.WithFields(logrus.Fields{
		"integration_id": integrationID,
		"cutoff":         cutoff.UTC().Format(time.RFC3339),
		"deleted":        deleted,
	}).Info("Old logs deleted")
	return deleted, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
