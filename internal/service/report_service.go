package service

import (
	"context"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
)

// ReportService 报表服务
// 只读：对工时记录做分组聚合，不触碰计时状态机。
// 记录一旦生成，报表就与计时引擎无关
type ReportService struct {
	entries repository.EntryStore // 工时记录存储
}

// NewReportService 创建 ReportService 实例
func NewReportService(entries repository.EntryStore) *ReportService {
	return &ReportService{entries: entries}
}

// ReportRequest 报表请求
type ReportRequest struct {
	UserID    *int64    // 按用户过滤（可选）
	ProjectID *int64    // 按项目过滤（可选）
	From      time.Time // 开始时间下界，必填（含）
	To        time.Time // 开始时间上界，必填（不含）
	GroupBy   string    // 分组粒度：day / week / month
}

// Report 生成分组报表
// 返回的桶按分组键倒序，只包含真正有记录的桶，
// 计费时长只累计 is_billable=true 的记录
func (s *ReportService) Report(ctx context.Context, req *ReportRequest) ([]repository.ReportBucket, error) {
	switch req.GroupBy {
	case repository.GroupByDay, repository.GroupByWeek, repository.GroupByMonth:
	default:
		return nil, newValidationError("未知的分组粒度: %s", req.GroupBy)
	}
	if req.From.IsZero() || req.To.IsZero() {
		return nil, newValidationError("时间范围不能为空")
	}
	if req.To.Before(req.From) {
		return nil, newValidationError("结束时间不能早于开始时间")
	}

	buckets, err := s.entries.Aggregate(ctx, repository.ReportFilter{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		From:      req.From,
		To:        req.To,
		GroupBy:   req.GroupBy,
	})
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = []repository.ReportBucket{}
	}
	return buckets, nil
}
