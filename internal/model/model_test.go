package model_test

import (
	"testing"
	"time"

	"github.com/mautops/integration-monitor/internal/model"
	"github.com/stretchr/testify/assert"
)

func validIntegration() *model.IntegrationModel {
	return &model.IntegrationModel{
		ID:          "integration-1",
		Name:        "Customer API",
		Type:        model.IntegrationTypeAPI,
		Source:      "crm",
		Destination: "warehouse",
		Status:      model.IntegrationStatusActive,
		Frequency:   model.FrequencyDaily,
		HealthScore: 100,
	}
}

// TestIntegrationModel_Validate 测试集成模型校验
func TestIntegrationModel_Validate(t *testing.T) {
	assert.NoError(t, validIntegration().Validate())

	tests := []struct {
		name   string
		mutate func(*model.IntegrationModel)
	}{
		{"missing id", func(m *model.IntegrationModel) { m.ID = "" }},
		{"missing name", func(m *model.IntegrationModel) { m.Name = "" }},
		{"unknown type", func(m *model.IntegrationModel) { m.Type = "FTP" }},
		{"missing source", func(m *model.IntegrationModel) { m.Source = "" }},
		{"unknown status", func(m *model.IntegrationModel) { m.Status = "paused" }},
		{"unknown frequency", func(m *model.IntegrationModel) { m.Frequency = "yearly" }},
		{"custom without expression", func(m *model.IntegrationModel) { m.Frequency = model.FrequencyCustom }},
		{"health score too high", func(m *model.IntegrationModel) { m.HealthScore = 101 }},
		{"health score negative", func(m *model.IntegrationModel) { m.HealthScore = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validIntegration()
			tt.mutate(m)
			assert.Error(t, m.Validate())
		})
	}

	custom := validIntegration()
	expr := "0 */6 * * *"
	custom.Frequency = model.FrequencyCustom
	custom.CustomFrequency = &expr
	assert.NoError(t, custom.Validate())
}

// TestTaskModel_Validate 测试任务模型校验
func TestTaskModel_Validate(t *testing.T) {
	task := &model.TaskModel{
		ID:            "task-1",
		IntegrationID: "integration-1",
		Name:          "Extract",
		Type:          model.TaskTypeExtract,
		Status:        model.TaskStatusPending,
		Timeout:       model.DefaultTaskTimeout,
		RetryStrategy: model.RetryStrategy{Attempts: model.DefaultRetryAttempts, Backoff: model.DefaultRetryBackoff},
	}
	assert.NoError(t, task.Validate())

	task.Timeout = 999
	assert.Error(t, task.Validate())
	task.Timeout = 1000
	task.RetryStrategy.Backoff = 500
	assert.Error(t, task.Validate())
	task.RetryStrategy.Backoff = 1000
	task.Order = -1
	assert.Error(t, task.Validate())
	task.Order = 0
	task.Type = "deploy"
	assert.Error(t, task.Validate())
}

// TestExecutionModel_ComputeDuration 测试耗时计算
func TestExecutionModel_ComputeDuration(t *testing.T) {
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	execution := &model.ExecutionModel{StartTime: start, Duration: 42}
	assert.Equal(t, int64(42), execution.ComputeDuration())

	end := start.Add(2*time.Minute + 345*time.Millisecond)
	execution.EndTime = &end
	assert.Equal(t, int64(120345), execution.ComputeDuration())
	assert.NoError(t, execution.BeforeSave(nil))
	assert.Equal(t, int64(120345), execution.Duration)
}

// TestExecutionModel_IsCancellable 测试可取消状态
func TestExecutionModel_IsCancellable(t *testing.T) {
	for _, status := range model.ExecutionStatuses {
		execution := &model.ExecutionModel{Status: status}
		want := status == model.ExecutionStatusPending || status == model.ExecutionStatusRunning
		assert.Equal(t, want, execution.IsCancellable(), status)
	}
}

// TestSummaryColumn 测试任务结果到汇总列的映射
func TestSummaryColumn(t *testing.T) {
	assert.Equal(t, "summary_completed_tasks", model.SummaryColumn(model.TaskStatusCompleted))
	assert.Equal(t, "summary_failed_tasks", model.SummaryColumn(model.TaskStatusFailed))
	assert.Equal(t, "summary_skipped_tasks", model.SummaryColumn(model.TaskStatusSkipped))
	assert.Equal(t, "summary_warning_tasks", model.SummaryColumn(model.TaskStatusWarning))
	assert.Empty(t, model.SummaryColumn(model.TaskStatusRunning))
	assert.Empty(t, model.SummaryColumn("unknown"))
}

// TestNewExecutionEvent 测试事件快照
func TestNewExecutionEvent(t *testing.T) {
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	execution := &model.ExecutionModel{
		ID:            "exec-1",
		IntegrationID: "integration-1",
		StartTime:     start,
		EndTime:       &end,
		Status:        model.ExecutionStatusFailed,
	}

	event := model.NewExecutionEvent("event-1", model.ExecutionEventCompleted, execution)
	assert.Equal(t, model.EventStatusPending, event.Status)
	assert.Equal(t, "exec-1", event.ExecutionID)
	assert.Equal(t, "integration-1", event.IntegrationID)
	snapshot := event.Payload.Data()
	assert.Equal(t, start, snapshot.StartTime)
	assert.Equal(t, &end, snapshot.EndTime)
	assert.Equal(t, model.ExecutionStatusFailed, snapshot.Status)
	assert.NoError(t, event.Validate())
}

// TestLogModel_Validate 测试日志模型校验
func TestLogModel_Validate(t *testing.T) {
	entry := &model.LogModel{
		ID:            "log-1",
		ExecutionID:   "exec-1",
		IntegrationID: "integration-1",
		Level:         model.LogLevelInfo,
		Message:       "ok",
	}
	assert.NoError(t, entry.Validate())

	entry.Level = "trace"
	assert.Error(t, entry.Validate())
}
