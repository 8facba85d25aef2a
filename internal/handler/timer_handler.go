// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/middleware"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/service"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/response"
)

// TimerHandler 计时器请求处理器
// 暴露状态机的四个迁移操作和活跃会话查询
type TimerHandler struct {
	timerService *service.TimerService
}

// NewTimerHandler 创建 TimerHandler 实例
func NewTimerHandler(timerService *service.TimerService) *TimerHandler {
	return &TimerHandler{
		timerService: timerService,
	}
}

// Start 开始计时
// @Summary 开始计时
// @Description 为当前用户创建新的计时会话，同一用户同时只能有一个
// @Tags 计时器
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.StartTimerRequest true "计时配置"
// @Success 201 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/timer/start [post]
func (h *TimerHandler) Start(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	var req service.StartTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	session, err := h.timerService.Start(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondTimerError(c, err, "开始计时失败")
		return
	}

	response.Created(c, session)
}

// Pause 暂停计时
// @Summary 暂停计时
// @Description 暂停指定的计时会话，结算当前分段
// @Tags 计时器
// @Security Bearer
// @Produce json
// @Param id path int true "会话ID"
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/timer/{id}/pause [post]
func (h *TimerHandler) Pause(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的会话ID")
		return
	}

	session, err := h.timerService.Pause(c.Request.Context(), userID, sessionID)
	if err != nil {
		h.respondTimerError(c, err, "暂停计时失败")
		return
	}

	response.Success(c, session)
}

// Resume 恢复计时
// @Summary 恢复计时
// @Description 恢复已暂停的计时会话，开启新分段
// @Tags 计时器
// @Security Bearer
// @Produce json
// @Param id path int true "会话ID"
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/timer/{id}/resume [post]
func (h *TimerHandler) Resume(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的会话ID")
		return
	}

	session, err := h.timerService.Resume(c.Request.Context(), userID, sessionID)
	if err != nil {
		h.respondTimerError(c, err, "恢复计时失败")
		return
	}

	response.Success(c, session)
}

// Stop 停止计时
// @Summary 停止计时
// @Description 终结计时会话并生成一条工时记录
// @Tags 计时器
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "会话ID"
// @Param body body service.StopTimerRequest false "停止参数"
// @Success 200 {object} response.Response{data=service.StopTimerResponse}
// @Router /api/v1/timer/{id}/stop [post]
func (h *TimerHandler) Stop(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的会话ID")
		return
	}

	// 请求体可以为空
	var req service.StopTimerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "无效的请求参数")
			return
		}
	}

	result, err := h.timerService.Stop(c.Request.Context(), userID, sessionID, &req)
	if err != nil {
		h.respondTimerError(c, err, "停止计时失败")
		return
	}

	response.Success(c, result)
}

// GetActive 获取当前计时会话
// @Summary 获取当前计时会话
// @Description 获取当前用户未终结的计时会话（含实时时长），没有则返回 null
// @Tags 计时器
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=service.SessionResponse}
// @Router /api/v1/timer/active [get]
func (h *TimerHandler) GetActive(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	session, err := h.timerService.GetActive(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取计时会话失败")
		return
	}

	if session == nil {
		response.Success(c, gin.H{"session": nil})
		return
	}
	response.Success(c, gin.H{"session": session})
}

// respondTimerError 将计时服务错误转换为统一响应
func (h *TimerHandler) respondTimerError(c *gin.Context, err error, fallback string) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		response.BadRequest(c, ve.Reason)
		return
	}

	switch err {
	case service.ErrActiveSessionExists:
		response.ActiveSessionExists(c)
	case service.ErrSessionNotFound:
		response.SessionNotFound(c)
	case service.ErrNotRunning:
		response.NotRunning(c)
	case service.ErrNotPaused:
		response.NotPaused(c)
	case service.ErrNotActive:
		response.NotActive(c)
	case service.ErrSessionConflict:
		response.SessionConflict(c)
	case service.ErrNoPermission:
		response.Forbidden(c, "无权操作此会话")
	default:
		response.InternalError(c, fallback)
	}
}
