package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10 // 必须小于 pongWait
	maxMessageSize = 4 * 1024          // 订阅端只发送控制帧
	sendBufferSize = 256
)

// Client 执行事件的订阅端
type Client struct {
	ID string

	// IntegrationID 订阅的集成，为空时接收全部事件
	IntegrationID string

	// Send 待发送的事件，Hub 停止或注销时关闭
	Send chan []byte

	hub  *Hub
	conn *websocket.Conn
}

// NewClient 创建订阅端，conn 为空时只能通过 Send 读取事件
func NewClient(id string, integrationID string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:            id,
		IntegrationID: integrationID,
		Send:          make(chan []byte, sendBufferSize),
		hub:           hub,
		conn:          conn,
	}
}

// Accepts 客户端是否接收该集成的事件，集成为空的事件发给所有人
func (c *Client) Accepts(integrationID string) bool {
	return c.IntegrationID == "" || integrationID == "" || c.IntegrationID == integrationID
}

// Serve 启动读写循环，连接断开后自动从 Hub 注销
func (c *Client) Serve() {
	go c.writeLoop()
	go c.readLoop()
}

// readLoop 只处理 pong 与关闭，订阅端发来的数据帧被丢弃
func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).WithField("client_id", c.ID).Debug("WebSocket subscriber dropped")
			}
			return
		}
	}
}

// writeLoop 每个事件单独一帧，积压的事件在同一个写超时内一并发出
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			for pending := len(c.Send); pending > 0; pending-- {
				payload, ok = <-c.Send
				if !ok {
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
