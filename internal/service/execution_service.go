package service

import (
	"context"
	"errors"
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

// 执行列表默认数量
const (
	DefaultExecutionPageLimit   = 10
	DefaultRecentExecutionLimit = 20
	DefaultReplayBatchSize      = 100
)

// 实时推送的事件类型
const (
	LifecycleEventStarted   = "execution.started"
	LifecycleEventCompleted = "execution.completed"
	LifecycleEventCancelled = "execution.cancelled"
)

// CannotCancelMessage 非 pending/running 状态的执行不能取消
const CannotCancelMessage = "Cannot cancel execution that is not running or pending"

// ExecutionService 执行生命周期服务接口
type ExecutionService interface {
	Start(ctx context.Context, integrationID, executionType, triggeredBy string) (*model.ExecutionModel, error)
	Complete(ctx context.Context, executionID, status string, resultData map[string]interface{}) (*model.ExecutionModel, error)
	Cancel(ctx context.Context, executionID string) (*model.ExecutionModel, error)
	Get(ctx context.Context, executionID string) (*model.ExecutionModel, error)
	ListByIntegration(ctx context.Context, integrationID string, page, limit int) (*ExecutionListResult, error)
	Recent(ctx context.Context, limit int) ([]*model.ExecutionModel, error)
	RecordTaskOutcome(ctx context.Context, executionID, taskStatus string) (*model.ExecutionModel, error)
	Reconcile(ctx context.Context, executionID string) (*model.IntegrationModel, error)
	ReplayPending(ctx context.Context, limit int) (int, error)
}

// StartExecutionRequest 启动执行请求
// @Description 启动执行的请求参数
type StartExecutionRequest struct {
	ExecutionType string `json:"executionType" binding:"omitempty,oneof=scheduled manual api-triggered" example:"manual"`
	TriggeredBy   string `json:"triggeredBy" example:"system"`
}

// CompleteExecutionRequest 完成执行请求
// @Description 完成执行的请求参数
type CompleteExecutionRequest struct {
	Status     string                 `json:"status" binding:"required,oneof=completed failed warning" example:"completed"`
	ResultData map[string]interface{} `json:"resultData" swaggertype:"object"`
}

// TaskOutcomeRequest 任务结果上报请求
type TaskOutcomeRequest struct {
	TaskStatus string `json:"taskStatus" binding:"required"`
}

// ExecutionListResult 执行记录分页结果
type ExecutionListResult struct {
	Data       []*model.ExecutionModel `json:"data"`
	Pagination Pagination              `json:"pagination"`
}

// LifecycleEvent 推送给实时订阅者的执行生命周期事件
type LifecycleEvent struct {
	Type          string                `json:"type"`
	IntegrationID string                `json:"integrationId"`
	Execution     *model.ExecutionModel `json:"execution"`
	Timestamp     time.Time             `json:"timestamp"`
}

type executionService struct {
	db              *gorm.DB
	executionRepo   repository.ExecutionRepository
	integrationRepo repository.IntegrationRepository
	eventRepo       repository.ExecutionEventRepository
	publisher       EventPublisher
	logger          *logrus.Logger
	now             func() time.Time
}

// NewExecutionService 创建执行生命周期服务
func NewExecutionService(db *gorm.DB, opts ...Option) ExecutionService {
	o := newOptions(opts)
	return &executionService{
		db:              db,
		executionRepo:   repository.NewExecutionRepository(db),
		integrationRepo: repository.NewIntegrationRepository(db),
		eventRepo:       repository.NewExecutionEventRepository(db),
		publisher:       o.publisher,
		logger:          o.logger,
		now:             o.now,
	}
}

// Start 为集成启动一次执行
func (s *executionService) Start(ctx context.Context, integrationID, executionType, triggeredBy string) (*model.ExecutionModel, error) {
	if utils.ValidateID(integrationID) != nil {
		return nil, NewNotFoundError("Integration")
	}
	if executionType == "" {
		executionType = model.ExecutionTypeManual
	}
	if !model.Contains(model.ExecutionTypes, executionType) {
		return nil, NewFieldError("executionType", fmt.Sprintf("executionType must be one of %s", strings.Join(model.ExecutionTypes, ", ")))
	}
	triggeredBy = strings.TrimSpace(triggeredBy)
	if triggeredBy == "" {
		triggeredBy = model.DefaultTriggeredBy
	}

	if _, err := s.integrationRepo.FindByID(ctx, integrationID); err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}

	execution := &model.ExecutionModel{
		ID:            uuid.NewString(),
		IntegrationID: integrationID,
		StartTime:     s.now(),
		Status:        model.ExecutionStatusRunning,
		ExecutionType: executionType,
		TriggeredBy:   triggeredBy,
		ResultData:    datatypes.JSONMap{},
	}

	var event *model.ExecutionEventModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total, err := repository.NewTaskRepository(tx).CountByIntegration(ctx, integrationID)
		if err != nil {
			return err
		}
		execution.Summary.TotalTasks = int(total)

		if err := repository.NewExecutionRepository(tx).Create(ctx, execution); err != nil {
			return err
		}
		event = model.NewExecutionEvent(uuid.NewString(), model.ExecutionEventStarted, execution)
		return repository.NewExecutionEventRepository(tx).Save(ctx, event)
	})
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Execution")
	}

	s.reconcileInline(ctx, event)
	metrics.RecordExecutionStarted(executionType)
	s.publish(LifecycleEventStarted, execution)

	s.logger.WithFields(logrus.Fields{
		"execution_id":   execution.ID,
		"integration_id": integrationID,
		"execution_type": executionType,
		"total_tasks":    execution.Summary.TotalTasks,
	}).Info("Execution started")

	return execution, nil
}

// Complete 以终态结束执行并回写集成状态
func (s *executionService) Complete(ctx context.Context, executionID, status string, resultData map[string]interface{}) (*model.ExecutionModel, error) {
	if !model.Contains(model.CompletionStatuses, status) {
		return nil, NewFieldError("status", fmt.Sprintf("status must be one of %s", strings.Join(model.CompletionStatuses, ", ")))
	}

	execution, err := s.find(ctx, executionID)
	if err != nil {
		return nil, err
	}

	endTime := s.now()
	execution.Status = status
	execution.EndTime = &endTime
	execution.ResultData = datatypes.JSONMap(resultData)
	if execution.ResultData == nil {
		execution.ResultData = datatypes.JSONMap{}
	}

	event, err := s.persistTransition(ctx, execution, model.ExecutionEventCompleted)
	if err != nil {
		return nil, err
	}

	s.reconcileInline(ctx, event)
	metrics.RecordExecutionFinished(status, execution.Duration)
	s.publish(LifecycleEventCompleted, execution)

	s.logger.WithFields(logrus.Fields{
		"execution_id":   execution.ID,
		"integration_id": execution.IntegrationID,
		"status":         status,
		"duration_ms":    execution.Duration,
	}).Info("Execution completed")

	return execution, nil
}

// Cancel 取消 pending/running 状态的执行
func (s *executionService) Cancel(ctx context.Context, executionID string) (*model.ExecutionModel, error) {
	execution, err := s.find(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if !execution.IsCancellable() {
		return nil, NewInvalidStateError(CannotCancelMessage)
	}

	endTime := s.now()
	execution.Status = model.ExecutionStatusCancelled
	execution.EndTime = &endTime

	event, err := s.persistTransition(ctx, execution, model.ExecutionEventCancelled)
	if err != nil {
		return nil, err
	}

	s.reconcileInline(ctx, event)
	metrics.RecordExecutionFinished(model.ExecutionStatusCancelled, execution.Duration)
	s.publish(LifecycleEventCancelled, execution)

	s.logger.WithFields(logrus.Fields{
		"execution_id":   execution.ID,
		"integration_id": execution.IntegrationID,
		"duration_ms":    execution.Duration,
	}).Info("Execution cancelled")

	return execution, nil
}

// Get 获取执行详情（附带集成摘要）
func (s *executionService) Get(ctx context.Context, executionID string) (*model.ExecutionModel, error) {
	execution, err := s.find(ctx, executionID)
	if err != nil {
		return nil, err
	}

	integration, err := s.integrationRepo.FindByID(ctx, execution.IntegrationID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, classifyStoreError(s.db, err, "Integration")
	default:
		execution.Integration = &model.IntegrationRef{
			ID:   integration.ID,
			Name: integration.Name,
			Type: integration.Type,
		}
	}
	return execution, nil
}

// ListByIntegration 分页查询集成的执行记录
func (s *executionService) ListByIntegration(ctx context.Context, integrationID string, page, limit int) (*ExecutionListResult, error) {
	page, limit = normalizePage(page, limit, DefaultExecutionPageLimit)

	executions, total, err := s.executionRepo.FindByIntegration(ctx, integrationID, offset(page, limit), limit)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Execution")
	}
	if executions == nil {
		executions = []*model.ExecutionModel{}
	}

	return &ExecutionListResult{
		Data:       executions,
		Pagination: newPagination(total, page, limit),
	}, nil
}

// Recent 查询全局最近的执行记录（附带集成摘要）
func (s *executionService) Recent(ctx context.Context, limit int) ([]*model.ExecutionModel, error) {
	if limit < 1 {
		limit = DefaultRecentExecutionLimit
	}

	executions, err := s.executionRepo.FindRecent(ctx, limit)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Execution")
	}

	ids := make([]string, 0, len(executions))
	seen := make(map[string]bool, len(executions))
	for _, execution := range executions {
		if !seen[execution.IntegrationID] {
			seen[execution.IntegrationID] = true
			ids = append(ids, execution.IntegrationID)
		}
	}

	integrations, err := s.integrationRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	for _, execution := range executions {
		if integration, ok := integrations[execution.IntegrationID]; ok {
			execution.Integration = &model.IntegrationRef{
				ID:     integration.ID,
				Name:   integration.Name,
				Type:   integration.Type,
				Status: integration.Status,
			}
		}
	}

	if executions == nil {
		executions = []*model.ExecutionModel{}
	}
	return executions, nil
}

// RecordTaskOutcome 按任务结果递增执行汇总计数，未知结果不计数
func (s *executionService) RecordTaskOutcome(ctx context.Context, executionID, taskStatus string) (*model.ExecutionModel, error) {
	if !model.Contains(model.TaskStatuses, taskStatus) {
		return nil, NewFieldError("taskStatus", fmt.Sprintf("taskStatus must be one of %s", strings.Join(model.TaskStatuses, ", ")))
	}

	column := model.SummaryColumn(taskStatus)
	if column != "" && utils.ValidateID(executionID) == nil {
		if err := s.executionRepo.IncrementSummary(ctx, executionID, column); err != nil {
			return nil, classifyStoreError(s.db, err, "Execution")
		}
	}

	return s.find(ctx, executionID)
}

// Reconcile 根据执行记录当前状态重新回写集成，并将其待处理事件标记为已应用；
// 集成已记录更新的执行时不回写
func (s *executionService) Reconcile(ctx context.Context, executionID string) (*model.IntegrationModel, error) {
	execution, err := s.find(ctx, executionID)
	if err != nil {
		return nil, err
	}

	pending, err := s.eventRepo.FindByExecutionID(ctx, executionID)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Execution event")
	}
	ids := make([]string, 0, len(pending))
	for _, event := range pending {
		if event.Status == model.EventStatusPending {
			ids = append(ids, event.ID)
		}
	}

	event := model.NewExecutionEvent("", eventTypeFor(execution.Status), execution)
	if err := s.applyEvent(ctx, event, ids, true); err != nil {
		metrics.RecordReconcile("failed")
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	metrics.RecordReconcile("applied")

	integration, err := s.integrationRepo.FindByID(ctx, execution.IntegrationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Integration")
	}
	return integration, nil
}

// ReplayPending 按时间顺序重放待处理事件，返回成功应用的数量
func (s *executionService) ReplayPending(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = DefaultReplayBatchSize
	}

	events, err := s.eventRepo.FindPending(ctx, limit)
	if err != nil {
		return 0, classifyStoreError(s.db, err, "Execution event")
	}

	applied := 0
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := s.applyEvent(ctx, event, []string{event.ID}, true); err != nil {
			metrics.RecordReconcile("failed")
			s.logger.WithError(err).WithFields(logrus.Fields{
				"event_id":       event.ID,
				"execution_id":   event.ExecutionID,
				"integration_id": event.IntegrationID,
			}).Warn("Failed to replay execution event")
			if retryErr := s.eventRepo.IncrementRetry(ctx, event.ID); retryErr != nil {
				s.logger.WithError(retryErr).WithField("event_id", event.ID).Warn("Failed to record replay attempt")
			}
			continue
		}
		metrics.RecordReconcile("applied")
		applied++
	}

	if applied > 0 {
		s.logger.WithFields(logrus.Fields{
			"pending": len(events),
			"applied": applied,
		}).Info("Replayed pending execution events")
	}
	return applied, nil
}

// find 查找执行记录
func (s *executionService) find(ctx context.Context, executionID string) (*model.ExecutionModel, error) {
	if utils.ValidateID(executionID) != nil {
		return nil, NewNotFoundError("Execution")
	}
	execution, err := s.executionRepo.FindByID(ctx, executionID)
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Execution")
	}
	return execution, nil
}

// persistTransition 在同一事务中保存执行记录与对应的生命周期事件
func (s *executionService) persistTransition(ctx context.Context, execution *model.ExecutionModel, eventType string) (*model.ExecutionEventModel, error) {
	var event *model.ExecutionEventModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewExecutionRepository(tx).Save(ctx, execution); err != nil {
			return err
		}
		event = model.NewExecutionEvent(uuid.NewString(), eventType, execution)
		return repository.NewExecutionEventRepository(tx).Save(ctx, event)
	})
	if err != nil {
		return nil, classifyStoreError(s.db, err, "Execution")
	}
	return event, nil
}

// reconcileInline 状态变更后立即回写集成；失败时事件保持 pending，由重放补偿
func (s *executionService) reconcileInline(ctx context.Context, event *model.ExecutionEventModel) {
	if err := s.applyEvent(ctx, event, []string{event.ID}, false); err != nil {
		metrics.RecordReconcile("failed")
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":       event.ID,
			"execution_id":   event.ExecutionID,
			"integration_id": event.IntegrationID,
			"event_type":     event.Type,
		}).Error("Failed to reconcile integration, event left pending")
		return
	}
	metrics.RecordReconcile("applied")
}

// applyEvent 在一个事务中回写集成并标记事件已应用；skipStale 为 true 时不覆盖更新的执行快照
func (s *executionService) applyEvent(ctx context.Context, event *model.ExecutionEventModel, eventIDs []string, skipStale bool) error {
	snapshot := event.Payload.Data()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		integrationRepo := repository.NewIntegrationRepository(tx)

		integration, err := integrationRepo.FindByID(ctx, event.IntegrationID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// 集成已删除，无需回写
		case err != nil:
			return err
		case skipStale && isStale(integration, event.Type, snapshot):
			s.logger.WithFields(logrus.Fields{
				"event_id":       event.ID,
				"integration_id": event.IntegrationID,
			}).Debug("Skipping stale execution event")
		default:
			last, status := deriveIntegrationUpdate(integration, event.Type, snapshot)
			if err := integrationRepo.UpdateLastExecution(ctx, integration.ID, last, status); err != nil {
				return err
			}
		}

		return repository.NewExecutionEventRepository(tx).MarkApplied(ctx, eventIDs, s.now())
	})
}

// publish 推送生命周期事件，推送失败只记录日志
func (s *executionService) publish(eventType string, execution *model.ExecutionModel) {
	if s.publisher == nil {
		return
	}
	evt := &LifecycleEvent{
		Type:          eventType,
		IntegrationID: execution.IntegrationID,
		Execution:     execution,
		Timestamp:     s.now(),
	}
	if err := s.publisher.BroadcastToIntegration(execution.IntegrationID, evt); err != nil {
		s.logger.WithError(err).WithField("execution_id", execution.ID).Debug("Failed to publish execution event")
	}
}

// deriveIntegrationUpdate 计算执行事件对集成的回写内容，返回的状态为空表示不修改
func deriveIntegrationUpdate(integration *model.IntegrationModel, eventType string, snapshot model.ExecutionSnapshot) (model.LastExecution, string) {
	startTime := snapshot.StartTime
	last := model.LastExecution{
		StartTime: &startTime,
		Status:    snapshot.Status,
	}

	switch eventType {
	case model.ExecutionEventStarted:
		return last, ""
	case model.ExecutionEventCancelled:
		last.EndTime = snapshot.EndTime
		return last, ""
	}

	last.EndTime = snapshot.EndTime
	switch snapshot.Status {
	case model.ExecutionStatusFailed:
		return last, model.IntegrationStatusError
	case model.ExecutionStatusWarning:
		return last, model.IntegrationStatusWarning
	case model.ExecutionStatusCompleted:
		if integration.Status == model.IntegrationStatusError {
			return last, model.IntegrationStatusActive
		}
	}
	return last, ""
}

// isStale 集成已记录了更新的执行（或同一执行的更后阶段）时事件视为过期
func isStale(integration *model.IntegrationModel, eventType string, snapshot model.ExecutionSnapshot) bool {
	current := integration.LastExecution
	if current.StartTime == nil {
		return false
	}
	if current.StartTime.After(snapshot.StartTime) {
		return true
	}
	return current.StartTime.Equal(snapshot.StartTime) &&
		eventType == model.ExecutionEventStarted &&
		isTerminal(current.Status)
}

func isTerminal(status string) bool {
	return status != "" && status != model.ExecutionStatusPending && status != model.ExecutionStatusRunning
}

// eventTypeFor 由执行状态推断事件类型
func eventTypeFor(status string) string {
	switch status {
	case model.ExecutionStatusPending, model.ExecutionStatusRunning:
		return model.ExecutionEventStarted
	case model.ExecutionStatusCancelled:
		return model.ExecutionEventCancelled
	default:
		return model.ExecutionEventCompleted
	}
}
