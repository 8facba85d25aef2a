// Package response 提供统一的 HTTP 响应格式
// 所有 API 都使用相同的响应结构，便于前端处理
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
// code: 业务状态码（0 表示成功）
// message: 提示信息
// data: 响应数据
type Response struct {
	Code    int         `json:"code"`           // 业务状态码
	Message string      `json:"message"`        // 提示信息
	Data    interface{} `json:"data,omitempty"` // 响应数据，可选
}

// 业务状态码定义
const (
	CodeSuccess       = 0    // 成功
	CodeBadRequest    = 1000 // 请求参数错误
	CodeUnauthorized  = 1001 // 未授权
	CodeForbidden     = 1002 // 禁止访问
	CodeNotFound      = 1003 // 资源不存在
	CodeInternalError = 1004 // 服务器内部错误

	CodeUserExists    = 1101 // 用户已存在
	CodeUserNotFound  = 1102 // 用户不存在
	CodePasswordWrong = 1103 // 密码错误

	CodeActiveSessionExists = 1301 // 已存在进行中的计时会话
	CodeSessionNotFound     = 1302 // 计时会话不存在
	CodeNotRunning          = 1303 // 会话未在计时中
	CodeNotPaused           = 1304 // 会话未处于暂停状态
	CodeNotActive           = 1305 // 会话已结束
	CodeSessionConflict     = 1306 // 会话状态已变更

	CodeEntryNotFound   = 1401 // 工时记录不存在
	CodeProjectNotFound = 1501 // 项目不存在
)

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 返回 201 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "创建成功",
		Data:    data,
	})
}

// NoContent 返回 204 无内容响应（用于删除操作）
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 返回 400 错误（请求参数错误）
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeBadRequest,
		Message: message,
	})
}

// Unauthorized 返回 401 错误（未授权）
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    CodeUnauthorized,
		Message: message,
	})
}

// Forbidden 返回 403 错误（禁止访问）
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Code:    CodeForbidden,
		Message: message,
	})
}

// NotFound 返回 404 错误（资源不存在）
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeNotFound,
		Message: message,
	})
}

// InternalError 返回 500 错误（服务器内部错误）
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:    CodeInternalError,
		Message: message,
	})
}

// UserExists 返回用户已存在错误
func UserExists(c *gin.Context) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeUserExists,
		Message: "用户名已存在",
	})
}

// UserNotFound 返回用户不存在错误
func UserNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeUserNotFound,
		Message: "用户不存在",
	})
}

// PasswordWrong 返回密码错误
func PasswordWrong(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    CodePasswordWrong,
		Message: "密码错误",
	})
}

// ActiveSessionExists 返回已有进行中会话错误
// 同一用户同一时间只能有一个计时会话
func ActiveSessionExists(c *gin.Context) {
	c.JSON(http.StatusConflict, Response{
		Code:    CodeActiveSessionExists,
		Message: "已存在进行中的计时会话",
	})
}

// SessionNotFound 返回计时会话不存在错误
func SessionNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeSessionNotFound,
		Message: "计时会话不存在",
	})
}

// NotRunning 返回会话未在计时中错误
func NotRunning(c *gin.Context) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeNotRunning,
		Message: "会话未在计时中",
	})
}

// NotPaused 返回会话未处于暂停状态错误
func NotPaused(c *gin.Context) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeNotPaused,
		Message: "会话未处于暂停状态",
	})
}

// NotActive 返回会话已结束错误
func NotActive(c *gin.Context) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    CodeNotActive,
		Message: "会话已结束",
	})
}

// SessionConflict 返回会话状态冲突错误
// 并发请求抢先迁移了会话状态，调用方可以重试
func SessionConflict(c *gin.Context) {
	c.JSON(http.StatusConflict, Response{
		Code:    CodeSessionConflict,
		Message: "会话状态已变更，请重试",
	})
}

// EntryNotFound 返回工时记录不存在错误
func EntryNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeEntryNotFound,
		Message: "工时记录不存在",
	})
}

// ProjectNotFound 返回项目不存在错误
func ProjectNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Response{
		Code:    CodeProjectNotFound,
		Message: "项目不存在",
	})
}
