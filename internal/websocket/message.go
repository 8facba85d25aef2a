// Package websocket 提供 WebSocket 通信功能
// 向客户端实时推送计时器事件（开始/暂停/恢复/停止/自动停止）
package websocket

import (
	"time"
)

// MessageType 消息类型常量
const (
	// 客户端 → 服务端
	TypeHeartbeat   = "heartbeat"    // 心跳
	TypeTimerActive = "timer:active" // 查询当前活跃会话

	// 服务端 → 客户端
	TypeTimerEvent = "timer:event" // 计时器状态变更事件

	// 通用
	TypeError = "error" // 错误消息
	TypePong  = "pong"  // 心跳响应
)

// Message WebSocket 消息结构
// 所有消息都使用这个统一的结构
type Message struct {
	Type      string      `json:"type"`                 // 消息类型
	Payload   interface{} `json:"payload"`              // 消息内容
	Timestamp int64       `json:"timestamp"`            // 时间戳（毫秒）
	MessageID string      `json:"message_id,omitempty"` // 消息ID，用于追踪
}

// NewMessage 创建新消息
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewMessageWithID 创建带消息ID的新消息
func NewMessageWithID(msgType string, payload interface{}, messageID string) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		MessageID: messageID,
	}
}

// ==================== Payload 类型定义 ====================

// TimerEventPayload 计时器事件 Payload
// 服务端推送状态变更时使用
type TimerEventPayload struct {
	Event           string `json:"event"`            // 事件名：timer:started 等
	SessionID       int64  `json:"session_id"`       // 会话ID
	DurationSeconds int64  `json:"duration_seconds"` // 事件发生时的累计活跃时长（秒）
}

// ActiveSessionPayload 活跃会话 Payload
// 响应 timer:active 查询时使用
type ActiveSessionPayload struct {
	Active  bool        `json:"active"`            // 是否有活跃会话
	Session interface{} `json:"session,omitempty"` // 会话详情（无活跃会话时省略）
}

// ErrorPayload 错误消息 Payload
type ErrorPayload struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
}
