package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logScenario struct {
	integration *model.IntegrationModel
	execution   *model.ExecutionModel
	extract     *model.TaskModel
	load        *model.TaskModel
	base        time.Time
}

// seedLogs 写入一组时间递增的日志
func seedLogs(t *testing.T, f *fixture) *logScenario {
	t.Helper()
	ctx := context.Background()

	s := &logScenario{base: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	s.integration = f.createIntegration(t, "Log Scenario")
	s.extract = f.createTask(t, s.integration.ID, "Extract")
	s.load = f.createTask(t, s.integration.ID, "Load")

	var err error
	s.execution, err = f.executions.Start(ctx, s.integration.ID, "", "")
	require.NoError(t, err)

	entries := []struct {
		task    *model.TaskModel
		level   string
		message string
		details map[string]interface{}
	}{
		{nil, model.LogLevelInfo, "Execution started", nil},
		{s.extract, model.LogLevelDebug, "Connecting to source", nil},
		{s.extract, model.LogLevelInfo, "Extracted 120 records", nil},
		{s.load, model.LogLevelWarning, "Slow write detected", nil},
		{s.load, model.LogLevelError, "Load failed", map[string]interface{}{"message": "Connection RESET by peer"}},
	}
	for i, entry := range entries {
		ts := s.base.Add(time.Duration(i) * time.Minute)
		req := &service.CreateLogRequest{
			ExecutionID:   s.execution.ID,
			IntegrationID: s.integration.ID,
			Timestamp:     &ts,
			Level:         entry.level,
			Message:       entry.message,
			Details:       entry.details,
		}
		if entry.task != nil {
			req.TaskID = &entry.task.ID
		}
		_, err := f.logs.Create(ctx, req)
		require.NoError(t, err)
	}
	return s
}

func logMessages(logs []*model.LogModel) []string {
	messages := make([]string, 0, len(logs))
	for _, entry := range logs {
		messages = append(messages, entry.Message)
	}
	return messages
}

// TestLogService_Create_Defaults 测试写入日志的默认值
func TestLogService_Create_Defaults(t *testing.T) {
	f := newFixture(t)
	empty := ""

	entry, err := f.logs.Create(context.Background(), &service.CreateLogRequest{
		TaskID:        &empty,
		ExecutionID:   "exec-1",
		IntegrationID: "integration-1",
		Message:       "  hello  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, model.LogLevelInfo, entry.Level)
	assert.Equal(t, model.DefaultLogSource, entry.Source)
	assert.Nil(t, entry.TaskID)
	assert.True(t, entry.Timestamp.Equal(f.clock.Now()))
	assert.NotNil(t, entry.Context)
}

// TestLogService_Create_Validation 测试写入日志的校验
func TestLogService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.logs.Create(ctx, &service.CreateLogRequest{ExecutionID: "e", IntegrationID: "i", Message: "   "})
	assert.True(t, service.IsValidation(err))

	_, err = f.logs.Create(ctx, &service.CreateLogRequest{IntegrationID: "i", Message: "m"})
	assert.True(t, service.IsValidation(err))

	_, err = f.logs.Create(ctx, &service.CreateLogRequest{ExecutionID: "e", IntegrationID: "i", Message: "m", Level: "fatal"})
	assert.True(t, service.IsValidation(err))
}

// TestLogService_ListByExecution 测试按执行查询，默认时间升序
func TestLogService_ListByExecution(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)
	ctx := context.Background()

	result, err := f.logs.ListByExecution(ctx, s.execution.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Pagination.Total)
	assert.Equal(t, service.DefaultLogPageLimit, result.Pagination.Limit)
	assert.Equal(t, []string{
		"Execution started", "Connecting to source", "Extracted 120 records", "Slow write detected", "Load failed",
	}, logMessages(result.Data))

	result, err = f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{TaskID: s.extract.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Connecting to source", "Extracted 120 records"}, logMessages(result.Data))

	result, err = f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{Level: model.LogLevelWarning})
	require.NoError(t, err)
	assert.Equal(t, []string{"Slow write detected"}, logMessages(result.Data))

	result, err = f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Extracted 120 records", "Slow write detected"}, logMessages(result.Data))
	assert.Equal(t, 3, result.Pagination.Pages)

	_, err = f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{SortOrder: "sideways"})
	assert.True(t, service.IsValidation(err))
}

// TestLogService_Search 测试消息与 details.message 的大小写不敏感搜索
func TestLogService_Search(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)
	ctx := context.Background()

	result, err := f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{Search: "EXTRACTED"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Extracted 120 records"}, logMessages(result.Data))

	result, err = f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{Search: "reset by"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Load failed"}, logMessages(result.Data))

	result, err = f.logs.ListByExecution(ctx, s.execution.ID, &service.LogQueryOptions{Search: "100%"})
	require.NoError(t, err)
	assert.Empty(t, result.Data)
}

// TestLogService_ListByTask 测试按任务查询
func TestLogService_ListByTask(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)

	result, err := f.logs.ListByTask(context.Background(), s.load.ID, &service.LogQueryOptions{SortOrder: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Load failed", "Slow write detected"}, logMessages(result.Data))
}

// TestLogService_ListByIntegration 测试按集成查询，默认倒序并支持时间范围
func TestLogService_ListByIntegration(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)
	ctx := context.Background()

	result, err := f.logs.ListByIntegration(ctx, s.integration.ID, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 5)
	assert.Equal(t, "Load failed", result.Data[0].Message)

	start := s.base.Add(time.Minute)
	end := s.base.Add(3 * time.Minute)
	result, err = f.logs.ListByIntegration(ctx, s.integration.ID, &service.LogQueryOptions{
		StartDate: &start,
		EndDate:   &end,
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Connecting to source", "Extracted 120 records", "Slow write detected"}, logMessages(result.Data))

	result, err = f.logs.ListByIntegration(ctx, s.integration.ID, &service.LogQueryOptions{ExecutionID: "other-execution"})
	require.NoError(t, err)
	assert.Empty(t, result.Data)
}

// TestLogService_RecentErrors 测试最近错误日志
func TestLogService_RecentErrors(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)

	errors, err := f.logs.RecentErrors(context.Background(), s.integration.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Load failed"}, logMessages(errors))

	errors, err = f.logs.RecentErrors(context.Background(), "unknown", 10)
	require.NoError(t, err)
	assert.NotNil(t, errors)
	assert.Empty(t, errors)
}

// TestLogService_LevelDistribution 测试日志级别分布包含全部级别
func TestLogService_LevelDistribution(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)

	distribution, err := f.logs.LevelDistribution(context.Background(), s.integration.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		model.LogLevelDebug:   1,
		model.LogLevelInfo:    2,
		model.LogLevelWarning: 1,
		model.LogLevelError:   1,
	}, distribution)

	distribution, err = f.logs.LevelDistribution(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Len(t, distribution, 4)
	assert.Zero(t, distribution[model.LogLevelError])
}

// TestLogService_Delete 测试日志清理
func TestLogService_Delete(t *testing.T) {
	f := newFixture(t)
	s := seedLogs(t, f)
	ctx := context.Background()

	deleted, err := f.logs.DeleteOlderThan(ctx, s.integration.ID, s.base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = f.logs.DeleteOlderThan(ctx, " ", s.base)
	assert.True(t, service.IsValidation(err))

	deleted, err = f.logs.PurgeOlderThan(ctx, s.base.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = f.logs.ClearForIntegration(ctx, s.integration.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = f.logs.ClearForIntegration(ctx, "")
	assert.True(t, service.IsValidation(err))
}
