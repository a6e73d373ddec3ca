package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// 广播队列长度
const broadcastBufferSize = 256

// ErrBroadcastQueueFull 广播队列已满，消息被丢弃
var ErrBroadcastQueueFull = errors.New("broadcast queue is full")

// ErrHubStopped Hub 已停止
var ErrHubStopped = errors.New("hub is stopped")

// message 待分发的消息，IntegrationID 为空表示发给所有客户端
type message struct {
	IntegrationID string
	Payload       []byte
}

// Hub 管理所有 WebSocket 连接
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// 互斥锁，保护 clients map
	mu     sync.RWMutex
	logger *logrus.Logger
}

// NewHub 创建新的 Hub
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run 运行 Hub，直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_id":      client.ID,
				"integration_id": client.IntegrationID,
			}).Debug("WebSocket client registered")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有客户端
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast 向所有客户端广播
func (h *Hub) Broadcast(v interface{}) error {
	return h.BroadcastToIntegration("", v)
}

// BroadcastToIntegration 向订阅了该集成（或未设置过滤）的客户端广播，不阻塞调用方
func (h *Hub) BroadcastToIntegration(integrationID string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast message: %w", err)
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- message{IntegrationID: integrationID, Payload: payload}:
		return nil
	default:
		return ErrBroadcastQueueFull
	}
}

// GetClientCount 获取客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// HasClient 检查客户端是否存在
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.ID == clientID {
			return true
		}
	}
	return false
}

func (h *Hub) deliver(msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.Accepts(msg.IntegrationID) {
			continue
		}
		select {
		case client.Send <- msg.Payload:
		default:
			// 发送缓冲已满的慢客户端直接断开
			delete(h.clients, client)
			close(client.Send)
			h.logger.WithField("client_id", client.ID).Warn("WebSocket client dropped: send buffer full")
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		h.logger.WithField("client_id", client.ID).Debug("WebSocket client unregistered")
	}
}
