// Package seed 写入示例数据（集成、任务、执行与日志），用于本地开发与演示
package seed

import (
	"context"
	"fmt"

	"github.com/mautops/integration-monitor/internal/model"
	"github.com/mautops/integration-monitor/internal/service"
	"github.com/sirupsen/logrus"
)

// Result 写入统计
type Result struct {
	Integrations int `json:"integrations"`
	Tasks        int `json:"tasks"`
	Executions   int `json:"executions"`
	Logs         int `json:"logs"`
	Skipped      int `json:"skipped"` // 名称已存在而跳过的集成
}

// Seeder 示例数据写入器，所有写入都经过服务层
type Seeder struct {
	integrations service.IntegrationService
	tasks        service.TaskService
	executions   service.ExecutionService
	logs         service.LogService
	logger       *logrus.Logger
}

// NewSeeder 创建示例数据写入器
func NewSeeder(
	integrations service.IntegrationService,
	tasks service.TaskService,
	executions service.ExecutionService,
	logs service.LogService,
	logger *logrus.Logger,
) *Seeder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Seeder{
		integrations: integrations,
		tasks:        tasks,
		executions:   executions,
		logs:         logs,
		logger:       logger,
	}
}

type sampleTask struct {
	name        string
	description string
	taskType    string
	config      map[string]interface{}
	outcome     string // 示例执行中的任务结果
}

type sampleIntegration struct {
	request *service.CreateIntegrationRequest
	tasks   []sampleTask
	outcome string // 示例执行的最终状态，为空时不执行
}

// Run 写入全部示例数据，已存在的集成会被跳过
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, sample := range samples() {
		integration, err := s.integrations.Create(ctx, sample.request)
		if service.IsDuplicateKey(err) {
			result.Skipped++
			s.logger.WithField("name", sample.request.Name).Info("Sample integration exists, skipped")
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to create integration %q: %w", sample.request.Name, err)
		}
		result.Integrations++

		taskIDs, err := s.createTasks(ctx, integration.ID, sample.tasks)
		if err != nil {
			return result, err
		}
		result.Tasks += len(taskIDs)

		if sample.outcome == "" {
			continue
		}
		logs, err := s.runExecution(ctx, integration.ID, sample, taskIDs)
		if err != nil {
			return result, err
		}
		result.Executions++
		result.Logs += logs
	}

	s.logger.WithFields(logrus.Fields{
		"integrations": result.Integrations,
		"tasks":        result.Tasks,
		"executions":   result.Executions,
		"logs":         result.Logs,
		"skipped":      result.Skipped,
	}).Info("Sample data seeded")
	return result, nil
}

// createTasks 按顺序创建任务，每个任务依赖前一个
func (s *Seeder) createTasks(ctx context.Context, integrationID string, tasks []sampleTask) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		req := &service.CreateTaskRequest{
			Name:          t.name,
			Description:   t.description,
			IntegrationID: integrationID,
			Type:          t.taskType,
			Config:        t.config,
		}
		if len(ids) > 0 {
			req.DependsOn = []string{ids[len(ids)-1]}
		}

		task, err := s.tasks.Create(ctx, req)
		if err != nil {
			return ids, fmt.Errorf("failed to create task %q: %w", t.name, err)
		}
		ids = append(ids, task.ID)
	}
	return ids, nil
}

// runExecution 模拟一次完整执行：启动、逐任务写日志与汇总、结束
func (s *Seeder) runExecution(ctx context.Context, integrationID string, sample sampleIntegration, taskIDs []string) (int, error) {
	execution, err := s.executions.Start(ctx, integrationID, model.ExecutionTypeScheduled, model.DefaultTriggeredBy)
	if err != nil {
		return 0, fmt.Errorf("failed to start execution: %w", err)
	}

	logs := 0
	record := func(taskID *string, level, message string, details map[string]interface{}) error {
		_, err := s.logs.Create(ctx, &service.CreateLogRequest{
			TaskID:        taskID,
			ExecutionID:   execution.ID,
			IntegrationID: integrationID,
			Level:         level,
			Message:       message,
			Details:       details,
		})
		if err != nil {
			return fmt.Errorf("failed to create log: %w", err)
		}
		logs++
		return nil
	}

	if err := record(nil, model.LogLevelInfo, "Starting integration execution", nil); err != nil {
		return logs, err
	}

	processed := 0
	for i, t := range sample.tasks {
		taskID := taskIDs[i]
		if err := record(&taskID, model.LogLevelDebug, "Starting task: "+t.name, nil); err != nil {
			return logs, err
		}

		switch t.outcome {
		case model.TaskStatusFailed:
			err = record(&taskID, model.LogLevelError, "Task failed: "+t.name, map[string]interface{}{
				"message": "Could not connect to destination",
				"code":    "ECONNREFUSED",
			})
		case model.TaskStatusWarning:
			err = record(&taskID, model.LogLevelWarning, "Task finished with warnings: "+t.name, map[string]interface{}{
				"message":        "Some records have an invalid format",
				"invalidRecords": 3,
			})
		case model.TaskStatusSkipped:
			err = record(&taskID, model.LogLevelInfo, "Task skipped: "+t.name, nil)
		default:
			processed += 250
			err = record(&taskID, model.LogLevelInfo, "Task completed: "+t.name, map[string]interface{}{
				"processedRecords": 250,
			})
		}
		if err != nil {
			return logs, err
		}

		if _, err := s.executions.RecordTaskOutcome(ctx, execution.ID, t.outcome); err != nil {
			return logs, fmt.Errorf("failed to record task outcome: %w", err)
		}
	}

	resultData := map[string]interface{}{
		"processedRecords": processed,
	}
	if _, err := s.executions.Complete(ctx, execution.ID, sample.outcome, resultData); err != nil {
		return logs, fmt.Errorf("failed to complete execution: %w", err)
	}

	if err := record(nil, model.LogLevelInfo, "Integration execution finished with status "+sample.outcome, nil); err != nil {
		return logs, err
	}
	return logs, nil
}

func strPtr(s string) *string {
	return &s
}

func intPtr(n int) *int {
	return &n
}

// commonTasks 所有集成共有的转换、加载、通知任务
func commonTasks(loadOutcome string) []sampleTask {
	return []sampleTask{
		{
			name:        "Transform data",
			description: "Transform the extracted records",
			taskType:    model.TaskTypeTransform,
			config: map[string]interface{}{
				"transformations": []interface{}{
					map[string]interface{}{"field": "created_at", "type": "date", "format": "YYYY-MM-DD"},
					map[string]interface{}{"field": "amount", "type": "number", "decimals": 2},
				},
			},
			outcome: model.TaskStatusCompleted,
		},
		{
			name:        "Load data",
			description: "Load transformed records into the destination",
			taskType:    model.TaskTypeLoad,
			config:      map[string]interface{}{"batchSize": 500, "errorThreshold": 0.05},
			outcome:     loadOutcome,
		},
		{
			name:        "Notify",
			description: "Send a notification with the execution result",
			taskType:    model.TaskTypeNotify,
			config: map[string]interface{}{
				"channels":   []interface{}{"email", "slack"},
				"recipients": []interface{}{"team@example.com", "#channel-monitor"},
			},
			outcome: model.TaskStatusCompleted,
		},
	}
}

func samples() []sampleIntegration {
	return []sampleIntegration{
		{
			request: &service.CreateIntegrationRequest{
				Name:        "Customer API",
				Description: "Synchronise customer data from the customer API",
				Type:        model.IntegrationTypeAPI,
				Source:      "https://api.customers.example.com",
				Destination: "Local database",
				Status:      model.IntegrationStatusActive,
				Frequency:   model.FrequencyDaily,
				Config: map[string]interface{}{
					"authentication": map[string]interface{}{
						"type":     "oauth2",
						"clientId": "CLIENT_ID",
						"tokenUrl": "https://api.customers.example.com/oauth/token",
					},
					"endpoints": map[string]interface{}{
						"customers": "/api/customers",
						"orders":    "/api/orders",
					},
				},
				HealthScore: intPtr(95),
				Owner:       strPtr("Data team"),
				Tags:        []string{"customers", "api", "sync"},
			},
			tasks: append([]sampleTask{
				{name: "API authentication", description: "Authenticate against the external API", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"timeout": 30000}, outcome: model.TaskStatusCompleted},
				{name: "Extract records", description: "Extract records from the API", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"pageSize": 100, "maxPages": 10}, outcome: model.TaskStatusCompleted},
			}, commonTasks(model.TaskStatusCompleted)...),
			outcome: model.ExecutionStatusCompleted,
		},
		{
			request: &service.CreateIntegrationRequest{
				Name:        "Finance ETL",
				Description: "ETL process for finance data",
				Type:        model.IntegrationTypeDatabase,
				Source:      "Oracle Finance DB",
				Destination: "Data Warehouse",
				Status:      model.IntegrationStatusActive,
				Frequency:   model.FrequencyWeekly,
				Config: map[string]interface{}{
					"sourceConnection": map[string]interface{}{"host": "oracle-finance.example.com", "database": "FINDB", "schema": "FINANCE"},
					"targetConnection": map[string]interface{}{"host": "datawarehouse.example.com", "database": "DWH", "schema": "FINANCE_DWH"},
				},
				HealthScore: intPtr(100),
				Owner:       strPtr("Finance team"),
				Tags:        []string{"finance", "etl", "oracle", "data warehouse"},
			},
			tasks: append([]sampleTask{
				{name: "Database connection", description: "Connect to the source database", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"timeout": 60000}, outcome: model.TaskStatusCompleted},
				{name: "Extract tables", description: "Extract the configured tables", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"tables": []interface{}{"CUSTOMERS", "ORDERS", "PRODUCTS"}}, outcome: model.TaskStatusCompleted},
			}, commonTasks(model.TaskStatusCompleted)...),
			outcome: model.ExecutionStatusCompleted,
		},
		{
			request: &service.CreateIntegrationRequest{
				Name:        "Sales CSV processing",
				Description: "Process incoming sales CSV files",
				Type:        model.IntegrationTypeFile,
				Source:      "/data/incoming/sales",
				Destination: "Sales collection",
				Status:      model.IntegrationStatusActive,
				Frequency:   model.FrequencyDaily,
				Config: map[string]interface{}{
					"filePattern": "*.csv",
					"delimiter":   ",",
					"hasHeader":   true,
					"encoding":    "utf8",
				},
				HealthScore: intPtr(65),
				Owner:       strPtr("Sales team"),
				Tags:        []string{"sales", "csv", "file processing"},
			},
			tasks: append([]sampleTask{
				{name: "Find files", description: "Find files matching the pattern", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"recursive": true}, outcome: model.TaskStatusCompleted},
				{name: "Validate files", description: "Validate file structure and content", taskType: model.TaskTypeValidate,
					config: map[string]interface{}{"validateHeaders": true, "requiredFields": []interface{}{"id", "name", "amount"}}, outcome: model.TaskStatusCompleted},
			}, commonTasks(model.TaskStatusFailed)...),
			outcome: model.ExecutionStatusFailed,
		},
		{
			request: &service.CreateIntegrationRequest{
				Name:        "Kafka events",
				Description: "Consume Kafka events and index them",
				Type:        model.IntegrationTypeEvent,
				Source:      "Kafka Cluster",
				Destination: "Elasticsearch",
				Status:      model.IntegrationStatusActive,
				Frequency:   model.FrequencyHourly,
				Config: map[string]interface{}{
					"kafkaConfig": map[string]interface{}{
						"brokers": []interface{}{"kafka1:9092", "kafka2:9092"},
						"topic":   "events-topic",
						"groupId": "monitor-consumer-group",
					},
					"elasticConfig": map[string]interface{}{
						"nodes": []interface{}{"http://elastic:9200"},
						"index": "events",
					},
				},
				HealthScore: intPtr(78),
				Owner:       strPtr("Infrastructure team"),
				Tags:        []string{"kafka", "events", "elasticsearch"},
			},
			tasks: append([]sampleTask{
				{name: "Broker connection", description: "Connect to the event broker", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"reconnectAttempts": 5}, outcome: model.TaskStatusCompleted},
				{name: "Consume events", description: "Consume events from the topic", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{"batchSize": 100, "autoCommit": false}, outcome: model.TaskStatusWarning},
			}, commonTasks(model.TaskStatusCompleted)...),
			outcome: model.ExecutionStatusWarning,
		},
		{
			request: &service.CreateIntegrationRequest{
				Name:            "Shopify sync",
				Description:     "Bidirectional sync with the Shopify store",
				Type:            model.IntegrationTypeAPI,
				Source:          "https://api.shopify.com",
				Destination:     "Internal CRM",
				Status:          model.IntegrationStatusInactive,
				Frequency:       model.FrequencyCustom,
				CustomFrequency: strPtr("0 */4 * * *"),
				Config: map[string]interface{}{
					"shopifyConfig": map[string]interface{}{"storeUrl": "store.myshopify.com", "apiVersion": "2023-10"},
					"crmConfig": map[string]interface{}{
						"endpoint": "http://crm.internal/api",
						"mapping":  map[string]interface{}{"customer": "client", "order": "sale"},
					},
				},
				HealthScore: intPtr(0),
				Owner:       strPtr("E-commerce team"),
				Tags:        []string{"shopify", "ecommerce", "crm"},
			},
			tasks: append([]sampleTask{
				{name: "Initial task", description: "Initial task for the integration", taskType: model.TaskTypeExtract,
					config: map[string]interface{}{}},
			}, commonTasks("")...),
		},
	}
}
