package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
)

// EntryRepository 工时记录数据访问层（MySQL 实现）
type EntryRepository struct {
	db *gorm.DB
}

// NewEntryRepository 创建 EntryRepository 实例
func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create 创建工时记录
func (r *EntryRepository) Create(ctx context.Context, entry *model.TimeEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GetByID 根据 ID 获取记录
// 未找到返回 nil，不作为错误
func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*model.TimeEntry, error) {
	var entry model.TimeEntry
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// Update 保存记录的全部字段
func (r *EntryRepository) Update(ctx context.Context, entry *model.TimeEntry) error {
	return r.db.WithContext(ctx).Save(entry).Error
}

// Delete 硬删除记录
func (r *EntryRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.TimeEntry{}, id).Error
}

// List 分页查询记录
// 按开始时间倒序，最新的工时在前
func (r *EntryRepository) List(ctx context.Context, filter EntryFilter, page, pageSize int) ([]model.TimeEntry, int64, error) {
	var entries []model.TimeEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&model.TimeEntry{}).Where("user_id = ?", filter.UserID)
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.From != nil {
		query = query.Where("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_time < ?", *filter.To)
	}
	if filter.Billable != nil {
		query = query.Where("is_billable = ?", *filter.Billable)
	}

	// 先取总数，再取当前页
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("start_time DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries).Error

	return entries, total, err
}

// bucketFormat 返回分组粒度对应的 MySQL DATE_FORMAT 格式
// day:   2024-01-01
// week:  2024-W01（ISO 周，%x/%v 与 Go 的 ISOWeek 一致）
// month: 2024-01
func bucketFormat(groupBy string) string {
	switch groupBy {
	case GroupByWeek:
		return "%x-W%v"
	case GroupByMonth:
		return "%Y-%m"
	default:
		return "%Y-%m-%d"
	}
}

// Aggregate 按分组粒度聚合记录
// 一条 GROUP BY 查询同时算出总时长、计费时长和条数，
// 只返回有记录的桶，按分组键倒序
func (r *EntryRepository) Aggregate(ctx context.Context, filter ReportFilter) ([]ReportBucket, error) {
	var buckets []ReportBucket

	query := r.db.WithContext(ctx).
		Model(&model.TimeEntry{}).
		Select("DATE_FORMAT(start_time, ?) AS bucket_key, "+
			"COALESCE(SUM(duration_seconds), 0) AS total_duration_seconds, "+
			"COALESCE(SUM(CASE WHEN is_billable THEN duration_seconds ELSE 0 END), 0) AS billable_duration_seconds, "+
			"COUNT(*) AS entry_count", bucketFormat(filter.GroupBy)).
		Where("start_time >= ? AND start_time < ?", filter.From, filter.To)
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ProjectID != nil {
		query = query.Where("project_id = ?", *filter.ProjectID)
	}

	err := query.
		Group("bucket_key").
		Order("bucket_key DESC").
		Scan(&buckets).Error
	return buckets, err
}
