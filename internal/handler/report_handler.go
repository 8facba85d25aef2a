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

// ReportHandler 报表请求处理器
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler 创建 ReportHandler 实例
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// Report 生成工时报表
// @Summary 生成工时报表
// @Description 按日/周/月聚合当前用户的工时记录，桶按分组键倒序，只包含有记录的桶
// @Tags 报表
// @Security Bearer
// @Produce json
// @Param from query string true "开始日期 (2006-01-02)"
// @Param to query string true "结束日期 (2006-01-02)，含当天"
// @Param group_by query string true "分组粒度: day / week / month"
// @Param project_id query int false "项目ID"
// @Success 200 {object} response.Response{data=ReportResponse}
// @Router /api/v1/reports [get]
func (h *ReportHandler) Report(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.BadRequest(c, "无效的开始日期")
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.BadRequest(c, "无效的结束日期")
		return
	}

	req := service.ReportRequest{
		UserID:  &userID, // 报表只看自己的记录
		From:    from,
		To:      to.AddDate(0, 0, 1), // 含当天，换算成半开区间
		GroupBy: c.Query("group_by"),
	}
	if v := c.Query("project_id"); v != "" {
		projectID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.BadRequest(c, "无效的项目ID")
			return
		}
		req.ProjectID = &projectID
	}

	buckets, err := h.reportService.Report(c.Request.Context(), &req)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			response.BadRequest(c, ve.Reason)
			return
		}
		response.InternalError(c, "生成报表失败")
		return
	}

	response.Success(c, gin.H{
		"group_by": req.GroupBy,
		"buckets":  buckets,
	})
}

// ReportResponse 报表响应
type ReportResponse struct {
	GroupBy string      `json:"group_by"`
	Buckets interface{} `json:"buckets"`
}
