package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 执行事件类型
const (
	ExecutionEventStarted   = "started"
	ExecutionEventCompleted = "completed"
	ExecutionEventCancelled = "cancelled"
)

// 执行事件处理状态
const (
	EventStatusPending = "pending"
	EventStatusApplied = "applied"
)

// ExecutionSnapshot 事件发生时执行记录的快照
type ExecutionSnapshot struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Status    string     `json:"status"`
}

// ExecutionEventModel 执行生命周期事件（与执行记录同事务写入，回写集成后标记为已应用）
type ExecutionEventModel struct {
	ID            string                                `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ExecutionID   string                                `gorm:"type:varchar(64);not null;index" json:"executionId"`
	IntegrationID string                                `gorm:"type:varchar(64);not null;index" json:"integrationId"`
	Type          string                                `gorm:"type:varchar(16);not null" json:"type"`
	Payload       datatypes.JSONType[ExecutionSnapshot] `json:"payload"`
	Status        string                                `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RetryCount    int                                   `gorm:"type:int;default:0" json:"retryCount"`
	AppliedAt     *time.Time                            `json:"appliedAt,omitempty"`
	CreatedAt     time.Time                             `gorm:"not null;index" json:"createdAt"`
	UpdatedAt     time.Time                             `gorm:"not null" json:"updatedAt"`
}

// TableName 指定表名
func (ExecutionEventModel) TableName() string {
	return "execution_events"
}

// NewExecutionEvent 根据执行记录当前状态构造事件
func NewExecutionEvent(id, eventType string, execution *ExecutionModel) *ExecutionEventModel {
	return &ExecutionEventModel{
		ID:            id,
		ExecutionID:   execution.ID,
		IntegrationID: execution.IntegrationID,
		Type:          eventType,
		Payload: datatypes.NewJSONType(ExecutionSnapshot{
			StartTime: execution.StartTime,
			EndTime:   execution.EndTime,
			Status:    execution.Status,
		}),
		Status: EventStatusPending,
	}
}

// Validate 验证事件模型
func (em *ExecutionEventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.ExecutionID == "" {
		return errors.New("execution ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
