// Package repository 提供数据访问层的实现
// 会话与工时记录的存取通过接口暴露，便于替换存储引擎
// 和在单元测试中使用内存实现
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
)

// 存储层错误
var (
	// ErrDuplicateActiveSession 同一用户已存在未终结的会话
	// 由 (user_id, active) 唯一索引触发
	ErrDuplicateActiveSession = errors.New("duplicate active session")
)

// SessionStore 计时会话存储接口
// 所有状态迁移都是带前置条件的条件更新：
// WHERE 子句携带期望的当前状态（以及分段快照），
// 返回的 applied 表示更新是否真的作用到了行上。
// 两个并发请求竞争同一个会话时，只有一个能拿到 applied=true
type SessionStore interface {
	// Create 创建新会话
	// 用户已有未终结会话时返回 ErrDuplicateActiveSession
	Create(ctx context.Context, session *model.TimeSession) error

	// GetByID 根据 ID 获取会话，未找到返回 nil
	GetByID(ctx context.Context, id int64) (*model.TimeSession, error)

	// GetActiveByUserID 获取用户当前未终结的会话，没有返回 nil
	GetActiveByUserID(ctx context.Context, userID int64) (*model.TimeSession, error)

	// ListStale 列出已过期的未终结会话
	// 计时中的会话看分段开始时间，暂停中的会话看暂停时间
	ListStale(ctx context.Context, cutoff time.Time) ([]model.TimeSession, error)

	// PauseSegment 结束当前分段并将会话置为暂停
	// 前置条件：状态为 running 且分段开始时间等于 segmentStart
	PauseSegment(ctx context.Context, id int64, segmentStart, pausedAt time.Time, deltaSeconds int64) (bool, error)

	// ResumeSegment 开启新分段并将会话置为计时中
	// 前置条件：状态为 paused 且暂停时间等于 pausedAt
	ResumeSegment(ctx context.Context, id int64, pausedAt, resumedAt time.Time) (bool, error)

	// CloseSession 终结会话并写入工时记录，两者在同一事务中提交
	// 前置条件：状态和分段开始时间与 session 快照一致
	// entry.SessionID 上的唯一索引保证重复关闭不会产生第二条记录
	CloseSession(ctx context.Context, session *model.TimeSession, status string, deltaSeconds int64, entry *model.TimeEntry) (bool, error)
}

// EntryFilter 工时记录列表的过滤条件
// 时间范围作用在记录的开始时间上，区间为 [From, To)
type EntryFilter struct {
	UserID    int64      // 必填，只能查自己的记录
	ProjectID *int64     // 可选，按项目过滤
	Category  string     // 可选，按分类过滤
	From      *time.Time // 可选，开始时间下界（含）
	To        *time.Time // 可选，开始时间上界（不含）
	Billable  *bool      // 可选，按计费标记过滤
}

// 报表分组粒度
const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

// ReportFilter 报表聚合的过滤条件
type ReportFilter struct {
	UserID    *int64    // 可选，按用户过滤
	ProjectID *int64    // 可选，按项目过滤
	From      time.Time // 开始时间下界（含）
	To        time.Time // 开始时间上界（不含）
	GroupBy   string    // 分组粒度：day / week / month
}

// ReportBucket 报表的一个聚合桶
// 只返回真正有记录的桶，不做零值补齐
type ReportBucket struct {
	BucketKey               string `gorm:"column:bucket_key" json:"bucket_key"`                               // 分组键，如 "2024-01-01" / "2024-W01" / "2024-01"
	TotalDurationSeconds    int64  `gorm:"column:total_duration_seconds" json:"total_duration_seconds"`       // 总秒数
	BillableDurationSeconds int64  `gorm:"column:billable_duration_seconds" json:"billable_duration_seconds"` // 计费秒数
	EntryCount              int64  `gorm:"column:entry_count" json:"entry_count"`                             // 记录条数
}

// EntryStore 工时记录存储接口
// 以追加为主：记录在会话终结或手工补录时创建一次，
// 之后只有所有者可以修改或删除
type EntryStore interface {
	// Create 创建工时记录
	Create(ctx context.Context, entry *model.TimeEntry) error

	// GetByID 根据 ID 获取记录，未找到返回 nil
	GetByID(ctx context.Context, id int64) (*model.TimeEntry, error)

	// Update 保存记录的全部字段
	Update(ctx context.Context, entry *model.TimeEntry) error

	// Delete 硬删除记录
	Delete(ctx context.Context, id int64) error

	// List 分页查询记录，按开始时间倒序
	List(ctx context.Context, filter EntryFilter, page, pageSize int) ([]model.TimeEntry, int64, error)

	// Aggregate 按分组粒度聚合记录，桶按分组键倒序
	Aggregate(ctx context.Context, filter ReportFilter) ([]ReportBucket, error)
}

// ProjectDirectory 项目/任务目录接口
// 计时引擎只用它做两件事：展示时附加名称标签、
// 生成记录时查项目的计费标记。项目/任务不存在不是错误
type ProjectDirectory interface {
	// GetProject 根据 ID 获取项目，未找到返回 nil
	GetProject(ctx context.Context, id int64) (*model.Project, error)

	// GetTask 根据 ID 获取任务，未找到返回 nil
	GetTask(ctx context.Context, id int64) (*model.Task, error)
}
