package api_test

import (
	"net/http"
	"testing"

	"github.com/mautops/integration-monitor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executionBody struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Summary struct {
		TotalTasks     int `json:"totalTasks"`
		CompletedTasks int `json:"completedTasks"`
		FailedTasks    int `json:"failedTasks"`
	} `json:"summary"`
}

func (s *testServer) createTask(t *testing.T, integrationID, name string) string {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/tasks", map[string]interface{}{
		"name":          name,
		"integrationId": integrationID,
		"type":          "extract",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		ID    string `json:"id"`
		Order int    `json:"order"`
	}
	decode(t, resp, &data)
	return data.ID
}

// TestExecutionFlow 测试启动、汇总、完成与取消的完整流程
func TestExecutionFlow(t *testing.T) {
	s := newTestServer(t)
	integrationID := s.createIntegration(t, "Execution Flow")
	extractID := s.createTask(t, integrationID, "Extract")
	loadID := s.createTask(t, integrationID, "Load")

	w, resp := s.do(t, http.MethodGet, "/api/v1/tasks/integration/"+integrationID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var tasks []struct {
		ID    string `json:"id"`
		Order int    `json:"order"`
	}
	decode(t, resp, &tasks)
	require.Len(t, tasks, 2)
	assert.Equal(t, extractID, tasks[0].ID)
	assert.Equal(t, 1, tasks[1].Order)

	w, _ = s.do(t, http.MethodPut, "/api/v1/tasks/order/update", map[string]interface{}{
		"tasks": []map[string]interface{}{
			{"taskId": loadID, "newOrder": 0},
			{"taskId": extractID, "newOrder": 1},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 请求体可省略
	w, resp = s.do(t, http.MethodPost, "/api/v1/executions/integration/"+integrationID, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Execution started successfully", resp.Message)
	var execution executionBody
	decode(t, resp, &execution)
	assert.Equal(t, "running", execution.Status)
	assert.Equal(t, 2, execution.Summary.TotalTasks)

	w, resp = s.do(t, http.MethodPut, "/api/v1/executions/"+execution.ID+"/summary", map[string]interface{}{"taskStatus": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, resp, &execution)
	assert.Equal(t, 1, execution.Summary.CompletedTasks)

	w, _ = s.do(t, http.MethodPut, "/api/v1/executions/"+execution.ID+"/complete", map[string]interface{}{"status": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodPut, "/api/v1/executions/"+execution.ID+"/complete", map[string]interface{}{
		"status":     "failed",
		"resultData": map[string]interface{}{"error": "timeout"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, resp, &execution)
	assert.Equal(t, "failed", execution.Status)

	w, resp = s.do(t, http.MethodGet, "/api/v1/integrations/"+integrationID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var integration struct {
		Status        string `json:"status"`
		LastExecution struct {
			Status string `json:"status"`
		} `json:"lastExecution"`
	}
	decode(t, resp, &integration)
	assert.Equal(t, "error", integration.Status)
	assert.Equal(t, "failed", integration.LastExecution.Status)

	w, resp = s.do(t, http.MethodPut, "/api/v1/executions/"+execution.ID+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.CannotCancelMessage, resp.Message)

	w, resp = s.do(t, http.MethodGet, "/api/v1/executions/integration/"+integrationID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, int64(1), resp.Pagination.Total)
	assert.Equal(t, 10, resp.Pagination.Limit)

	w, _ = s.do(t, http.MethodGet, "/api/v1/executions/recent/all?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/executions/"+execution.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodPut, "/api/v1/executions/"+execution.ID+"/reconcile", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestExecutionController_Cancel 测试取消运行中的执行
func TestExecutionController_Cancel(t *testing.T) {
	s := newTestServer(t)
	integrationID := s.createIntegration(t, "Cancel Flow")

	w, resp := s.do(t, http.MethodPost, "/api/v1/executions/integration/"+integrationID, map[string]interface{}{
		"executionType": "api-triggered",
		"triggeredBy":   "ci",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var execution executionBody
	decode(t, resp, &execution)

	w, resp = s.do(t, http.MethodPut, "/api/v1/executions/"+execution.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Execution cancelled successfully", resp.Message)
	decode(t, resp, &execution)
	assert.Equal(t, "cancelled", execution.Status)

	w, _ = s.do(t, http.MethodPost, "/api/v1/executions/integration/missing-integration", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/executions/integration/"+integrationID, map[string]interface{}{"executionType": "cron"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestLogEndpoints 测试日志写入、查询与级别分布
func TestLogEndpoints(t *testing.T) {
	s := newTestServer(t)
	integrationID := s.createIntegration(t, "Log Flow")

	w, resp := s.do(t, http.MethodPost, "/api/v1/executions/integration/"+integrationID, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var execution executionBody
	decode(t, resp, &execution)

	for _, entry := range []map[string]interface{}{
		{"level": "info", "message": "Execution started"},
		{"level": "error", "message": "Load failed", "details": map[string]interface{}{"message": "connection reset"}},
		{"message": "Default level"},
	} {
		entry["executionId"] = execution.ID
		entry["integrationId"] = integrationID
		w, resp = s.do(t, http.MethodPost, "/api/v1/logs", entry)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "Log created successfully", resp.Message)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/logs", map[string]interface{}{
		"executionId":   execution.ID,
		"integrationId": integrationID,
		"level":         "fatal",
		"message":       "bad level",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(t, http.MethodGet, "/api/v1/logs/execution/"+execution.ID+"?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.Pages)

	w, resp = s.do(t, http.MethodGet, "/api/v1/logs/integration/"+integrationID+"?search=RESET", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []struct {
		Message string `json:"message"`
	}
	decode(t, resp, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "Load failed", logs[0].Message)

	w, resp = s.do(t, http.MethodGet, "/api/v1/logs/integration/"+integrationID+"?startDate=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "startDate", resp.Errors[0].Field)

	w, resp = s.do(t, http.MethodGet, "/api/v1/logs/integration/"+integrationID+"/errors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, resp, &logs)
	assert.Len(t, logs, 1)

	w, resp = s.do(t, http.MethodGet, "/api/v1/logs/integration/"+integrationID+"/distribution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var distribution map[string]int64
	decode(t, resp, &distribution)
	assert.Equal(t, map[string]int64{"debug": 0, "info": 2, "warning": 0, "error": 1}, distribution)
}
