// Package websocket 提供 WebSocket 通信功能
package websocket

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	pkgJwt "github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/jwt"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/response"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	// 读缓冲区大小
	ReadBufferSize: 1024,
	// 写缓冲区大小
	WriteBufferSize: 1024,
	// 检查来源（生产环境应该验证）
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境需要检查 Origin
		return true
	},
}

// Handler 处理 WebSocket 连接
type Handler struct {
	hub        *Hub
	jwtService *pkgJwt.JWTService
}

// NewHandler 创建 WebSocket Handler
func NewHandler(hub *Hub, jwtService *pkgJwt.JWTService) *Handler {
	return &Handler{
		hub:        hub,
		jwtService: jwtService,
	}
}

// HandleWS 处理客户端 WebSocket 连接
// 路由: GET /ws
// 参数: token (query parameter) - JWT token
// 浏览器的 WebSocket API 不支持自定义 Header，所以 token 放在 query 里
func (h *Handler) HandleWS(c *gin.Context) {
	// 从 query 参数获取 token
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "需要认证 token")
		return
	}

	// 验证 JWT token
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "无效的 token")
		return
	}

	// 升级 HTTP 连接为 WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	// 创建客户端
	client := NewClient(h.hub, conn, claims.UserID)

	// 注册客户端
	h.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump()

	log.Printf("WebSocket connected: userID=%d", claims.UserID)
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// WebSocket 路由不需要中间件（token 在 query 中验证）
	r.GET("/ws", h.HandleWS)
}
