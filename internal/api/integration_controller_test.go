package api_test

import (
	"net/http"
	"testing"

	"github.com/mautops/integration-monitor/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntegrationController_Create 测试创建集成的响应格式
func TestIntegrationController_Create(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"name":        "CRM Sync",
		"type":        "API",
		"source":      "crm",
		"destination": "warehouse",
		"tags":        []string{"crm"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, api.StatusSuccess, resp.Status)
	assert.Equal(t, "Integration created successfully", resp.Message)

	var data struct {
		ID          string   `json:"id"`
		Status      string   `json:"status"`
		Frequency   string   `json:"frequency"`
		HealthScore int      `json:"healthScore"`
		Tags        []string `json:"tags"`
	}
	decode(t, resp, &data)
	assert.NotEmpty(t, data.ID)
	assert.Equal(t, "inactive", data.Status)
	assert.Equal(t, "daily", data.Frequency)
	assert.Equal(t, 100, data.HealthScore)
	assert.Equal(t, []string{"crm"}, data.Tags)
}

// TestIntegrationController_Create_Validation 测试字段级校验错误
func TestIntegrationController_Create_Validation(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"type":        "FTP",
		"source":      "crm",
		"destination": "warehouse",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.StatusError, resp.Status)
	assert.Equal(t, "Validation error", resp.Message)

	messages := make(map[string]string)
	for _, fe := range resp.Errors {
		messages[fe.Field] = fe.Message
	}
	assert.Equal(t, "name is required", messages["name"])
	assert.Contains(t, messages["type"], "type must be one of")

	w, _ = s.do(t, http.MethodPost, "/api/v1/integrations", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestIntegrationController_Create_Duplicate 测试重名返回 409
func TestIntegrationController_Create_Duplicate(t *testing.T) {
	s := newTestServer(t)
	s.createIntegration(t, "Duplicate")

	w, resp := s.do(t, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"name":        "Duplicate",
		"type":        "FILE",
		"source":      "sftp",
		"destination": "s3",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, api.StatusError, resp.Status)
}

// TestIntegrationController_Get 测试查询、非法 ID 与不存在
func TestIntegrationController_Get(t *testing.T) {
	s := newTestServer(t)
	id := s.createIntegration(t, "Lookup")

	w, resp := s.do(t, http.MethodGet, "/api/v1/integrations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Name string `json:"name"`
	}
	decode(t, resp, &data)
	assert.Equal(t, "Lookup", data.Name)

	w, resp = s.do(t, http.MethodGet, "/api/v1/integrations/bad!id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid ID format", resp.Message)

	w, resp = s.do(t, http.MethodGet, "/api/v1/integrations/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Integration not found", resp.Message)
}

// TestIntegrationController_List 测试列表分页信息
func TestIntegrationController_List(t *testing.T) {
	s := newTestServer(t)
	s.createIntegration(t, "First Integration")
	s.createIntegration(t, "Second Integration")
	s.createIntegration(t, "Third Integration")

	w, resp := s.do(t, http.MethodGet, "/api/v1/integrations?limit=2&sortBy=name&sortOrder=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Integrations retrieved successfully", resp.Message)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.Limit)
	assert.Equal(t, 2, resp.Pagination.Pages)

	var data []struct {
		Name string `json:"name"`
	}
	decode(t, resp, &data)
	require.Len(t, data, 2)
	assert.Equal(t, "First Integration", data[0].Name)

	w, _ = s.do(t, http.MethodGet, "/api/v1/integrations?sortBy=secret", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestIntegrationController_UpdateAndDelete 测试更新、状态设置与删除
func TestIntegrationController_UpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	id := s.createIntegration(t, "Mutable")

	w, resp := s.do(t, http.MethodPut, "/api/v1/integrations/"+id, map[string]interface{}{"description": "updated"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	decode(t, resp, &data)
	assert.Equal(t, "updated", data.Description)

	w, resp = s.do(t, http.MethodPatch, "/api/v1/integrations/"+id+"/status", map[string]interface{}{"status": "active"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, resp, &data)
	assert.Equal(t, "active", data.Status)

	w, _ = s.do(t, http.MethodGet, "/api/v1/integrations/stats/overview", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/integrations/"+id+"?cascade=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/integrations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
