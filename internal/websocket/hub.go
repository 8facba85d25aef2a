// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/service"
)

// Hub 是 WebSocket 连接的中心管理器
// 负责：
// 1. 管理所有客户端连接
// 2. 把计时器事件推送给对应用户的全部连接
// 3. 响应客户端的活跃会话查询
//
// Hub 实现 service.TimerNotifier，服务层通过它推送状态变更
type Hub struct {
	// 用户客户端映射：userID -> []*Client
	// 一个用户可能有多个连接（多设备登录）
	clients map[int64][]*Client

	// 注册通道
	register chan *Client

	// 注销通道
	unregister chan *Client

	// 互斥锁，保护并发访问
	mu sync.RWMutex

	// 依赖的服务
	timerService *service.TimerService
}

// NewHub 创建 Hub 实例
func NewHub(timerService *service.TimerService) *Hub {
	return &Hub{
		clients:      make(map[int64][]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		timerService: timerService,
	}
}

// Run 启动 Hub 的主循环
// 应该在单独的 goroutine 中运行
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.userID] = append(h.clients[client.userID], client)
	log.Printf("WebSocket client registered: userID=%d connID=%s", client.userID, client.connID)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.userID]
	for i, c := range clients {
		if c == client {
			h.clients[client.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	// 如果没有连接了，删除 key
	if len(h.clients[client.userID]) == 0 {
		delete(h.clients, client.userID)
	}

	// 关闭客户端
	client.Close()
	log.Printf("WebSocket client unregistered: userID=%d connID=%s", client.userID, client.connID)
}

// NotifyTimerEvent 向用户的所有连接推送计时器事件
// 实现 service.TimerNotifier 接口
func (h *Hub) NotifyTimerEvent(userID int64, event string, sessionID, durationSeconds int64) {
	h.broadcastToUser(userID, NewMessage(TypeTimerEvent, &TimerEventPayload{
		Event:           event,
		SessionID:       sessionID,
		DurationSeconds: durationSeconds,
	}))
}

// broadcastToUser 向用户的所有连接发送消息
func (h *Hub) broadcastToUser(userID int64, msg *Message) {
	h.mu.RLock()
	clients := h.clients[userID]
	h.mu.RUnlock()

	for _, client := range clients {
		client.SendMessage(msg)
	}
}

// handleActiveQuery 处理活跃会话查询
func (h *Hub) handleActiveQuery(client *Client, msg *Message) {
	go func() {
		ctx := context.Background()
		session, err := h.timerService.GetActive(ctx, client.userID)
		if err != nil {
			client.SendMessage(NewMessageWithID(TypeError, &ErrorPayload{
				Code:    500,
				Message: "查询活跃会话失败",
			}, msg.MessageID))
			return
		}

		payload := &ActiveSessionPayload{Active: session != nil}
		if session != nil {
			payload.Session = session
		}
		client.SendMessage(NewMessageWithID(TypeTimerActive, payload, msg.MessageID))
	}()
}

// Register 注册客户端（供外部调用）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（供外部调用）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsUserConnected 检查用户是否有在线连接
func (h *Hub) IsUserConnected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
