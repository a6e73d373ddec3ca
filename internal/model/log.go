package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 日志级别
const (
	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// DefaultLogSource 默认日志来源
const DefaultLogSource = "system"

// LogLevels 全部日志级别
var LogLevels = []string{LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError}

// LogModel 执行日志数据模型（只追加）
type LogModel struct {
	ID            string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID        *string           `gorm:"type:varchar(64);index:idx_logs_task_ts,priority:1" json:"taskId"`
	ExecutionID   string            `gorm:"type:varchar(64);not null;index:idx_logs_execution_ts,priority:1" json:"executionId"`
	IntegrationID string            `gorm:"type:varchar(64);not null;index:idx_logs_integration_ts,priority:1" json:"integrationId"`
	Timestamp     time.Time         `gorm:"not null;index:idx_logs_execution_ts,priority:2;index:idx_logs_integration_ts,priority:2;index:idx_logs_task_ts,priority:2" json:"timestamp"`
	Level         string            `gorm:"type:varchar(16);not null;default:'info';index" json:"level"`
	Message       string            `gorm:"type:text;not null" json:"message"`
	Details       datatypes.JSONMap `json:"details"`
	Source        string            `gorm:"type:varchar(100);not null;default:'system'" json:"source"`
	Context       datatypes.JSONMap `json:"context"`
	CreatedAt     time.Time         `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time         `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (LogModel) TableName() string {
	return "logs"
}

// Validate 验证日志模型
func (lm *LogModel) Validate() error {
	if lm.ID == "" {
		return errors.New("log ID is required")
	}
	if lm.ExecutionID == "" {
		return errors.New("execution ID is required")
	}
	if lm.IntegrationID == "" {
		return errors.New("integration ID is required")
	}
	if lm.Message == "" {
		return errors.New("log message is required")
	}
	if !Contains(LogLevels, lm.Level) {
		return errors.New("invalid log level")
	}
	return nil
}
