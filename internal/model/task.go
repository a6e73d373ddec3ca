package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 任务类型
const (
	TaskTypeExtract   = "extract"
	TaskTypeTransform = "transform"
	TaskTypeLoad      = "load"
	TaskTypeValidate  = "validate"
	TaskTypeNotify    = "notify"
	TaskTypeCustom    = "custom"
)

// 任务状态
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusWarning   = "warning"
	TaskStatusSkipped   = "skipped"
)

// 任务默认值（毫秒）
const (
	DefaultTaskTimeout   int64 = 3600000
	DefaultRetryAttempts       = 3
	DefaultRetryBackoff  int64 = 60000
)

// TaskTypes 全部任务类型
var TaskTypes = []string{
	TaskTypeExtract, TaskTypeTransform, TaskTypeLoad, TaskTypeValidate, TaskTypeNotify, TaskTypeCustom,
}

// TaskStatuses 全部任务状态
var TaskStatuses = []string{
	TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusWarning, TaskStatusSkipped,
}

// RetryStrategy 重试策略
type RetryStrategy struct {
	Attempts int   `gorm:"type:int;not null;default:3" json:"attempts"`
	Backoff  int64 `gorm:"not null;default:60000" json:"backoff"` // 毫秒
}

// TaskModel 任务数据模型
type TaskModel struct {
	ID            string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	IntegrationID string                      `gorm:"type:varchar(64);not null;index:idx_tasks_integration_order,priority:1" json:"integrationId"`
	Name          string                      `gorm:"type:varchar(100);not null" json:"name"`
	Description   string                      `gorm:"type:text" json:"description"`
	Type          string                      `gorm:"type:varchar(16);not null" json:"type"`
	Status        string                      `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Order         int                         `gorm:"column:sort_order;type:int;not null;default:0;index:idx_tasks_integration_order,priority:2" json:"order"`
	DependsOn     datatypes.JSONSlice[string] `json:"dependsOn"`
	Config        datatypes.JSONMap           `json:"config"`
	Timeout       int64                       `gorm:"not null;default:3600000" json:"timeout"` // 毫秒
	RetryStrategy RetryStrategy               `gorm:"embedded;embeddedPrefix:retry_" json:"retryStrategy"`
	CreatedAt     time.Time                   `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.IntegrationID == "" {
		return errors.New("integration ID is required")
	}
	if tm.Name == "" {
		return errors.New("task name is required")
	}
	if !Contains(TaskTypes, tm.Type) {
		return errors.New("invalid task type")
	}
	if !Contains(TaskStatuses, tm.Status) {
		return errors.New("invalid task status")
	}
	if tm.Order < 0 {
		return errors.New("task order must be non-negative")
	}
	if tm.Timeout < 1000 {
		return errors.New("task timeout must be at least 1000ms")
	}
	if tm.RetryStrategy.Attempts < 0 || tm.RetryStrategy.Backoff < 1000 {
		return errors.New("invalid retry strategy")
	}
	return nil
}
