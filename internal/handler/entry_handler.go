package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/middleware"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/service"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/response"
)

// EntryHandler 工时记录请求处理器
// 处理手工补录的增删改和记录列表查询
type EntryHandler struct {
	entryService *service.EntryService
}

// NewEntryHandler 创建 EntryHandler 实例
func NewEntryHandler(entryService *service.EntryService) *EntryHandler {
	return &EntryHandler{
		entryService: entryService,
	}
}

// ListEntries 获取工时记录列表
// @Summary 获取工时记录列表
// @Description 分页查询当前用户的工时记录，按开始时间倒序
// @Tags 工时记录
// @Security Bearer
// @Produce json
// @Param project_id query int false "项目ID"
// @Param category query string false "工时分类"
// @Param from query string false "开始日期 (2006-01-02)"
// @Param to query string false "结束日期 (2006-01-02)，含当天"
// @Param billable query bool false "计费标记"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=EntryListResponse}
// @Router /api/v1/entries [get]
func (h *EntryHandler) ListEntries(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	req := service.ListEntriesRequest{
		Category: c.Query("category"),
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if v := c.Query("project_id"); v != "" {
		projectID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "无效的项目ID")
			return
		}
		req.ProjectID = &projectID
	}
	if v := c.Query("billable"); v != "" {
		billable, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "无效的计费标记")
			return
		}
		req.Billable = &billable
	}
	// 日期参数是"含当天"的闭区间，换算成半开区间 [from, to+1d)
	if v := c.Query("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "无效的开始日期")
			return
		}
		req.From = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "无效的结束日期")
			return
		}
		end := to.AddDate(0, 0, 1)
		req.To = &end
	}

	entries, total, err := h.entryService.ListEntries(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondEntryError(c, err, "获取工时记录失败")
		return
	}

	response.Success(c, gin.H{
		"entries":   entries,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// EntryListResponse 工时记录列表响应
type EntryListResponse struct {
	Entries  []service.EntryView `json:"entries"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// CreateEntry 手工补录工时记录
// @Summary 补录工时记录
// @Description 为当前用户手工补录一条工时记录，省略时长时按起止时间计算
// @Tags 工时记录
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateEntryRequest true "工时记录"
// @Success 201 {object} response.Response{data=service.EntryView}
// @Router /api/v1/entries [post]
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	var req service.CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	entry, err := h.entryService.CreateEntry(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondEntryError(c, err, "补录工时记录失败")
		return
	}

	response.Created(c, entry)
}

// GetEntry 获取工时记录详情
// @Summary 获取工时记录详情
// @Tags 工时记录
// @Security Bearer
// @Produce json
// @Param id path int true "记录ID"
// @Success 200 {object} response.Response{data=service.EntryView}
// @Router /api/v1/entries/{id} [get]
func (h *EntryHandler) GetEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的记录ID")
		return
	}

	entry, err := h.entryService.GetEntry(c.Request.Context(), userID, entryID)
	if err != nil {
		h.respondEntryError(c, err, "获取工时记录失败")
		return
	}

	response.Success(c, entry)
}

// UpdateEntry 修改工时记录
// @Summary 修改工时记录
// @Description 只有所有者可以修改；修正起止时间会触发时长重算
// @Tags 工时记录
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "记录ID"
// @Param body body service.UpdateEntryRequest true "修改内容"
// @Success 200 {object} response.Response{data=service.EntryView}
// @Router /api/v1/entries/{id} [put]
func (h *EntryHandler) UpdateEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的记录ID")
		return
	}

	var req service.UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	entry, err := h.entryService.UpdateEntry(c.Request.Context(), userID, entryID, &req)
	if err != nil {
		h.respondEntryError(c, err, "修改工时记录失败")
		return
	}

	response.Success(c, entry)
}

// DeleteEntry 删除工时记录
// @Summary 删除工时记录
// @Description 只有所有者可以删除，硬删除
// @Tags 工时记录
// @Security Bearer
// @Produce json
// @Param id path int true "记录ID"
// @Success 204 "删除成功"
// @Router /api/v1/entries/{id} [delete]
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的记录ID")
		return
	}

	if err := h.entryService.DeleteEntry(c.Request.Context(), userID, entryID); err != nil {
		h.respondEntryError(c, err, "删除工时记录失败")
		return
	}

	response.NoContent(c)
}

// respondEntryError 将工时记录服务错误转换为统一响应
func (h *EntryHandler) respondEntryError(c *gin.Context, err error, fallback string) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		response.BadRequest(c, ve.Reason)
		return
	}

	switch err {
	case service.ErrEntryNotFound:
		response.EntryNotFound(c)
	case service.ErrNoPermission:
		response.Forbidden(c, "无权操作此记录")
	default:
		response.InternalError(c, fallback)
	}
}
