package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/integration-monitor/internal/utils"
)

// NewUpgrader 创建连接升级器，allowedOrigins 为空或包含 "*" 时允许任意来源
func NewUpgrader(allowedOrigins []string) *gorillaWS.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return &gorillaWS.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// WebSocketHandler 执行事件实时推送
// 可选 query 参数 integrationId 只订阅单个集成
func WebSocketHandler(hub *Hub, upgrader *gorillaWS.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		integrationID := c.Query("integrationId")
		if integrationID != "" {
			if err := utils.ValidateID(integrationID); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"status":  "error",
					"message": "Invalid integrationId",
				})
				return
			}
		}

		// Upgrade 失败时已写入错误响应
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.WithError(err).Warn("WebSocket upgrade failed")
			return
		}

		client := NewClient(uuid.New().String(), integrationID, hub, conn)
		hub.Register(client)
		client.Serve()
	}
}
