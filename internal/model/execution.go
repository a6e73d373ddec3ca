package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 执行状态
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusWarning   = "warning"
	ExecutionStatusCancelled = "cancelled"
)

// 执行类型
const (
	ExecutionTypeScheduled    = "scheduled"
	ExecutionTypeManual       = "manual"
	ExecutionTypeAPITriggered = "api-triggered"
)

// DefaultTriggeredBy 默认触发者
const DefaultTriggeredBy = "system"

// ExecutionStatuses 全部执行状态
var ExecutionStatuses = []string{
	ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusCompleted,
	ExecutionStatusFailed, ExecutionStatusWarning, ExecutionStatusCancelled,
}

// CompletionStatuses complete 操作允许的终态
var CompletionStatuses = []string{
	ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusWarning,
}

// ExecutionTypes 全部执行类型
var ExecutionTypes = []string{
	ExecutionTypeScheduled, ExecutionTypeManual, ExecutionTypeAPITriggered,
}

// ExecutionSummary 任务结果汇总计数
type ExecutionSummary struct {
	TotalTasks     int `gorm:"type:int;not null;default:0" json:"totalTasks"`
	CompletedTasks int `gorm:"type:int;not null;default:0" json:"completedTasks"`
	FailedTasks    int `gorm:"type:int;not null;default:0" json:"failedTasks"`
	SkippedTasks   int `gorm:"type:int;not null;default:0" json:"skippedTasks"`
	WarningTasks   int `gorm:"type:int;not null;default:0" json:"warningTasks"`
}

// SummaryColumn 返回任务状态对应的汇总计数列，未知状态返回空串
func SummaryColumn(taskStatus string) string {
	switch taskStatus {
	case TaskStatusCompleted:
		return "summary_completed_tasks"
	case TaskStatusFailed:
		return "summary_failed_tasks"
	case TaskStatusSkipped:
		return "summary_skipped_tasks"
	case TaskStatusWarning:
		return "summary_warning_tasks"
	}
	return ""
}

// ExecutionModel 执行记录数据模型
type ExecutionModel struct {
	ID            string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	IntegrationID string            `gorm:"type:varchar(64);not null;index:idx_executions_integration_start,priority:1" json:"integrationId"`
	StartTime     time.Time         `gorm:"not null;index;index:idx_executions_integration_start,priority:2" json:"startTime"`
	EndTime       *time.Time        `json:"endTime"`
	Status        string            `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ExecutionType string            `gorm:"type:varchar(16);not null;default:'scheduled'" json:"executionType"`
	TriggeredBy   string            `gorm:"type:varchar(100);not null;default:'system'" json:"triggeredBy"`
	Summary       ExecutionSummary  `gorm:"embedded;embeddedPrefix:summary_" json:"summary"`
	Duration      int64             `gorm:"not null;default:0" json:"duration"` // 毫秒
	ResultData    datatypes.JSONMap `json:"resultData"`
	CreatedAt     time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updatedAt"`

	// Integration 查询时附带的集成摘要，不落库
	Integration *IntegrationRef `gorm:"-" json:"integration,omitempty"`
}

// TableName 指定表名
func (ExecutionModel) TableName() string {
	return "executions"
}

// BeforeSave 开始与结束时间都存在时重新计算耗时
func (em *ExecutionModel) BeforeSave(tx *gorm.DB) error {
	em.Duration = em.ComputeDuration()
	return nil
}

// ComputeDuration 计算耗时（毫秒）
func (em *ExecutionModel) ComputeDuration() int64 {
	if em.EndTime == nil || em.StartTime.IsZero() {
		return em.Duration
	}
	return em.EndTime.Sub(em.StartTime).Milliseconds()
}

// IsCancellable 仅 pending/running 可以取消
func (em *ExecutionModel) IsCancellable() bool {
	return em.Status == ExecutionStatusPending || em.Status == ExecutionStatusRunning
}

// Validate 验证执行记录
func (em *ExecutionModel) Validate() error {
	if em.ID == "" {
		return errors.New("execution ID is required")
	}
	if em.IntegrationID == "" {
		return errors.New("integration ID is required")
	}
	if !Contains(ExecutionStatuses, em.Status) {
		return errors.New("invalid execution status")
	}
	if !Contains(ExecutionTypes, em.ExecutionType) {
		return errors.New("invalid execution type")
	}
	return nil
}
