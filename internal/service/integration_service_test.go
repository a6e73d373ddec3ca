package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationService_Create_Defaults 测试创建集成时的默认值
func TestIntegrationService_Create_Defaults(t *testing.T) {
	f := newFixture(t)

	integration, err := f.integrations.Create(context.Background(), &service.CreateIntegrationRequest{
		Name:        "  CRM Sync  ",
		Type:        model.IntegrationTypeAPI,
		Source:      " crm ",
		Destination: "warehouse",
		Tags:        []string{" crm ", "", "sales"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, integration.ID)
	assert.Equal(t, "CRM Sync", integration.Name)
	assert.Equal(t, "crm", integration.Source)
	assert.Equal(t, model.IntegrationStatusInactive, integration.Status)
	assert.Equal(t, model.FrequencyDaily, integration.Frequency)
	assert.Equal(t, 100, integration.HealthScore)
	assert.Equal(t, []string{"crm", "sales"}, []string(integration.Tags))
	assert.NotNil(t, integration.Config)
	assert.Nil(t, integration.LastExecution.StartTime)
}

// TestIntegrationService_Create_ConfigRoundTrip 测试配置与标签原样往返
func TestIntegrationService_Create_ConfigRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.integrations.Create(ctx, &service.CreateIntegrationRequest{
		Name:        "Finance ETL",
		Type:        model.IntegrationTypeDatabase,
		Source:      "postgres://finance",
		Destination: "bigquery",
		Config: map[string]interface{}{
			"batchSize": float64(500),
			"nested":    map[string]interface{}{"enabled": true},
		},
		Tags: []string{"finance", "etl"},
	})
	require.NoError(t, err)

	got, err := f.integrations.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(500), got.Config["batchSize"])
	assert.Equal(t, map[string]interface{}{"enabled": true}, got.Config["nested"])
	assert.Equal(t, []string{"finance", "etl"}, []string(got.Tags))
}

// TestIntegrationService_Create_DuplicateName 测试重名集成
func TestIntegrationService_Create_DuplicateName(t *testing.T) {
	f := newFixture(t)
	f.createIntegration(t, "Duplicate Name")

	_, err := f.integrations.Create(context.Background(), &service.CreateIntegrationRequest{
		Name:        "Duplicate Name",
		Type:        model.IntegrationTypeFile,
		Source:      "sftp",
		Destination: "s3",
	})
	require.Error(t, err)
	assert.True(t, service.IsDuplicateKey(err))
}

// TestIntegrationService_Create_CustomFrequencyRequired 测试自定义频率缺少表达式
func TestIntegrationService_Create_CustomFrequencyRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.integrations.Create(context.Background(), &service.CreateIntegrationRequest{
		Name:        "Custom Schedule",
		Type:        model.IntegrationTypeAPI,
		Source:      "a",
		Destination: "b",
		Frequency:   model.FrequencyCustom,
	})
	require.Error(t, err)
	assert.True(t, service.IsValidation(err))

	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Len(t, svcErr.Fields, 1)
	assert.Equal(t, "customFrequency", svcErr.Fields[0].Field)
}

// TestIntegrationService_Create_EndpointFields 测试数据源与目标的清理和长度校验
func TestIntegrationService_Create_EndpointFields(t *testing.T) {
	f := newFixture(t)

	integration, err := f.integrations.Create(context.Background(), &service.CreateIntegrationRequest{
		Name:        "Control Chars",
		Type:        model.IntegrationTypeAPI,
		Source:      " crm\x07 ",
		Destination: "warehouse",
	})
	require.NoError(t, err)
	assert.Equal(t, "crm", integration.Source)

	_, err = f.integrations.Create(context.Background(), &service.CreateIntegrationRequest{
		Name:        "Long Destination",
		Type:        model.IntegrationTypeAPI,
		Source:      "crm",
		Destination: strings.Repeat("d", 256),
	})
	require.Error(t, err)
	assert.True(t, service.IsValidation(err))

	var svcErr *service.Error
	require.ErrorAs(t, err, &svcErr)
	require.Len(t, svcErr.Fields, 1)
	assert.Equal(t, "destination", svcErr.Fields[0].Field)
}

// TestIntegrationService_Get_NotFound 测试查询不存在的集成
func TestIntegrationService_Get_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.integrations.Get(context.Background(), "missing-id")
	assert.True(t, service.IsNotFound(err))

	_, err = f.integrations.Get(context.Background(), "bad id!")
	assert.True(t, service.IsNotFound(err))
}

// TestIntegrationService_List_Filters 测试列表过滤、搜索与分页
func TestIntegrationService_List_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, req := range []*service.CreateIntegrationRequest{
		{Name: "Customer API", Type: model.IntegrationTypeAPI, Source: "crm", Destination: "dw", Status: model.IntegrationStatusActive, Tags: []string{"crm"}},
		{Name: "Finance ETL", Type: model.IntegrationTypeDatabase, Source: "erp", Destination: "dw", Tags: []string{"finance"}},
		{Name: "Sales CSV", Type: model.IntegrationTypeFile, Source: "sftp", Destination: "dw", Status: model.IntegrationStatusActive, Tags: []string{"sales", "crm"}},
	} {
		_, err := f.integrations.Create(ctx, req)
		require.NoError(t, err)
	}

	result, err := f.integrations.List(ctx, &service.IntegrationListFilter{Status: "active"})
	require.NoError(t, err)
	assert.Len(t, result.Data, 2)
	assert.Equal(t, int64(2), result.Pagination.Total)

	result, err = f.integrations.List(ctx, &service.IntegrationListFilter{Status: "all", Type: model.IntegrationTypeDatabase})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Finance ETL", result.Data[0].Name)

	result, err = f.integrations.List(ctx, &service.IntegrationListFilter{Tags: []string{"crm"}})
	require.NoError(t, err)
	assert.Len(t, result.Data, 2)

	result, err = f.integrations.List(ctx, &service.IntegrationListFilter{Search: "csv"})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Sales CSV", result.Data[0].Name)

	result, err = f.integrations.List(ctx, &service.IntegrationListFilter{SortBy: "name", SortOrder: "desc", Limit: 2, Page: 1})
	require.NoError(t, err)
	require.Len(t, result.Data, 2)
	assert.Equal(t, "Sales CSV", result.Data[0].Name)
	assert.Equal(t, int64(3), result.Pagination.Total)
	assert.Equal(t, 2, result.Pagination.Pages)

	_, err = f.integrations.List(ctx, &service.IntegrationListFilter{SortBy: "password"})
	assert.True(t, service.IsValidation(err))
}

// TestIntegrationService_List_TagWithAmpersand 测试含 & 的标签过滤
func TestIntegrationService_List_TagWithAmpersand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.integrations.Create(ctx, &service.CreateIntegrationRequest{
		Name: "Research Feed", Type: model.IntegrationTypeAPI, Source: "lab", Destination: "dw", Tags: []string{"R&D"},
	})
	require.NoError(t, err)
	_, err = f.integrations.Create(ctx, &service.CreateIntegrationRequest{
		Name: "Retail Feed", Type: model.IntegrationTypeAPI, Source: "pos", Destination: "dw", Tags: []string{"R"},
	})
	require.NoError(t, err)

	result, err := f.integrations.List(ctx, &service.IntegrationListFilter{Tags: []string{"R&D"}})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Research Feed", result.Data[0].Name)

	result, err = f.integrations.List(ctx, &service.IntegrationListFilter{Tags: []string{"R"}})
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Retail Feed", result.Data[0].Name)
}

// TestIntegrationService_Update 测试浅合并更新
func TestIntegrationService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	integration := f.createIntegration(t, "Update Me")

	description := "nightly sync"
	score := 75
	updated, err := f.integrations.Update(ctx, integration.ID, &service.UpdateIntegrationRequest{
		Description: &description,
		HealthScore: &score,
	})
	require.NoError(t, err)
	assert.Equal(t, "nightly sync", updated.Description)
	assert.Equal(t, 75, updated.HealthScore)
	assert.Equal(t, "Update Me", updated.Name)
	assert.Equal(t, "crm", updated.Source)

	_, err = f.integrations.Update(ctx, integration.ID, &service.UpdateIntegrationRequest{})
	assert.True(t, service.IsValidation(err))
}

// TestIntegrationService_Update_RenameConflict 测试改名冲突
func TestIntegrationService_Update_RenameConflict(t *testing.T) {
	f := newFixture(t)
	f.createIntegration(t, "Taken Name")
	integration := f.createIntegration(t, "Other Name")

	name := "Taken Name"
	_, err := f.integrations.Update(context.Background(), integration.ID, &service.UpdateIntegrationRequest{Name: &name})
	assert.True(t, service.IsDuplicateKey(err))
}

// TestIntegrationService_Delete_Cascade 测试级联删除
func TestIntegrationService_Delete_Cascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	integration := f.createIntegration(t, "Cascade Target")
	f.createTask(t, integration.ID, "Extract")
	f.createTask(t, integration.ID, "Load")

	execution, err := f.executions.Start(ctx, integration.ID, "", "")
	require.NoError(t, err)
	_, err = f.logs.Create(ctx, &service.CreateLogRequest{
		ExecutionID:   execution.ID,
		IntegrationID: integration.ID,
		Message:       "hello",
	})
	require.NoError(t, err)

	result, err := f.integrations.Delete(ctx, integration.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Cascade)
	assert.Equal(t, int64(2), result.DeletedTasks)
	assert.Equal(t, int64(1), result.DeletedExecutions)
	assert.Equal(t, int64(1), result.DeletedLogs)

	tasks, err := f.tasks.ListByIntegration(ctx, integration.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	var events int64
	require.NoError(t, f.db.Model(&model.ExecutionEventModel{}).Where("integration_id = ?", integration.ID).Count(&events).Error)
	assert.Zero(t, events)

	_, err = f.integrations.Delete(ctx, integration.ID, true)
	assert.True(t, service.IsNotFound(err))
}

// TestIntegrationService_Delete_WithoutCascade 测试非级联删除保留子记录
func TestIntegrationService_Delete_WithoutCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	integration := f.createIntegration(t, "Keep Children")
	f.createTask(t, integration.ID, "Extract")

	_, err := f.integrations.Delete(ctx, integration.ID, false)
	require.NoError(t, err)

	tasks, err := f.tasks.ListByIntegration(ctx, integration.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

// TestIntegrationService_SetStatus 测试直接设置状态
func TestIntegrationService_SetStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	integration := f.createIntegration(t, "Status Target")

	updated, err := f.integrations.SetStatus(ctx, integration.ID, model.IntegrationStatusActive)
	require.NoError(t, err)
	assert.Equal(t, model.IntegrationStatusActive, updated.Status)

	_, err = f.integrations.SetStatus(ctx, integration.ID, "paused")
	assert.True(t, service.IsValidation(err))

	_, err = f.integrations.SetStatus(ctx, "missing", model.IntegrationStatusActive)
	assert.True(t, service.IsNotFound(err))
}

// TestIntegrationService_Stats 测试统计
func TestIntegrationService_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createIntegration(t, "Stats One")
	f.createIntegration(t, "Stats Two")
	_, err := f.integrations.Create(ctx, &service.CreateIntegrationRequest{
		Name:        "Stats Three",
		Type:        model.IntegrationTypeEvent,
		Source:      "kafka",
		Destination: "es",
		Status:      model.IntegrationStatusActive,
		Frequency:   model.FrequencyHourly,
	})
	require.NoError(t, err)

	stats, err := f.integrations.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByStatus[model.IntegrationStatusInactive])
	assert.Equal(t, int64(1), stats.ByStatus[model.IntegrationStatusActive])
	assert.Equal(t, int64(0), stats.ByStatus[model.IntegrationStatusError])
	require.NotEmpty(t, stats.ByType)
	assert.Equal(t, model.IntegrationTypeAPI, stats.ByType[0].Type)
	assert.Equal(t, int64(2), stats.ByType[0].Count)
}

// TestIntegrationService_StorageUnavailable 测试数据库不可用时的错误分类
func TestIntegrationService_StorageUnavailable(t *testing.T) {
	f := newFixture(t)

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.integrations.List(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, service.IsStorageUnavailable(err))
}
