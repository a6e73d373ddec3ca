package websocket_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/integration-monitor/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *websocket.Hub, origins []string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/ws/executions", websocket.WebSocketHandler(hub, websocket.NewUpgrader(origins)))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/executions" + query
}

// TestWebSocketHandler_Stream 测试订阅单个集成的实时推送
func TestWebSocketHandler_Stream(t *testing.T) {
	hub := newTestHub(t)
	server := newTestServer(t, hub, nil)

	conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL(server, "?integrationId=integration-1"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastToIntegration("integration-2", map[string]string{"type": "ignored"}))
	require.NoError(t, hub.BroadcastToIntegration("integration-1", map[string]string{"type": "execution.completed"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "execution.completed", msg["type"])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// TestWebSocketHandler_InvalidIntegrationID 测试非法的订阅参数
func TestWebSocketHandler_InvalidIntegrationID(t *testing.T) {
	hub := newTestHub(t)
	server := newTestServer(t, hub, nil)

	_, resp, err := gorillaWS.DefaultDialer.Dial(wsURL(server, "?integrationId=bad%20id"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestWebSocketHandler_Origin 测试来源校验
func TestWebSocketHandler_Origin(t *testing.T) {
	hub := newTestHub(t)
	server := newTestServer(t, hub, []string{"https://dashboard.example.com"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := gorillaWS.DefaultDialer.Dial(wsURL(server, ""), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://dashboard.example.com")
	conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL(server, ""), header)
	require.NoError(t, err)
	conn.Close()
}
