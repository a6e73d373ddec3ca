package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/api"
	"github.com/mautops/integration-monitor/internal/config"
	"github.com/mautops/integration-monitor/internal/container"
	"github.com/mautops/integration-monitor/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// envelope 统一响应的解码结构
type envelope struct {
	Status     string           `json:"status"`
	Message    string           `json:"message"`
	Data       json.RawMessage  `json:"data"`
	Pagination *paginationBody  `json:"pagination"`
	Errors     []fieldErrorBody `json:"errors"`
}

type paginationBody struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

type fieldErrorBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	for _, fn := range mutate {
		fn(cfg)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db := testutil.NewTestDB(t)
	ctr := container.NewWithDB(cfg, db, logger)
	go ctr.Hub().Run()
	t.Cleanup(ctr.Hub().Stop)

	router := api.SetupRoutes(api.RouterOptions{
		Config: cfg,
		DB:     db,
		Logger: logger,
		Hub:    ctr.Hub(),
		Services: api.Services{
			Integration: ctr.IntegrationService(),
			Task:        ctr.TaskService(),
			Execution:   ctr.ExecutionService(),
			Log:         ctr.LogService(),
		},
		Version: "test",
	})
	return &testServer{router: router, db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(encoded)
		}
		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// decode 解码 data 字段
func decode(t *testing.T, resp envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func (s *testServer) createIntegration(t *testing.T, name string) string {
	t.Helper()
	w, resp := s.do(t, http.MethodPost, "/api/v1/integrations", map[string]interface{}{
		"name":        name,
		"type":        "API",
		"source":      "crm",
		"destination": "warehouse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var data struct {
		ID string `json:"id"`
	}
	decode(t, resp, &data)
	return data.ID
}
