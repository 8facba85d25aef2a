package model

import (
	"time"
)

// SessionStatus 计时会话状态常量
const (
	SessionStatusRunning     = "running"      // 计时中
	SessionStatusPaused      = "paused"       // 已暂停
	SessionStatusCompleted   = "completed"    // 已完成（用户主动停止）
	SessionStatusAutoStopped = "auto_stopped" // 自动停止（回收器强制关闭）
)

// Category 工时分类常量
// 分类是固定枚举，未知值在请求边界就会被拒绝
const (
	CategoryWork     = "work"     // 工作
	CategoryMeeting  = "meeting"  // 会议
	CategoryBreak    = "break"    // 休息
	CategoryTraining = "training" // 培训
	CategoryOther    = "other"    // 其他
)

// ValidCategory 判断分类是否为合法枚举值
func ValidCategory(category string) bool {
	switch category {
	case CategoryWork, CategoryMeeting, CategoryBreak, CategoryTraining, CategoryOther:
		return true
	}
	return false
}

// TimeSession 计时会话模型
// 对应数据库表 time_sessions
// 表示一次计时器的完整生命周期：start 创建，pause/resume 切换分段，
// stop 或回收器将其终结并生成一条工时记录
//
// 时长记账规则：时间按"分段"累计。一个分段从 StartTime 开始，
// 在 pause/stop 时结束，结束时把分段时长一次性累加进
// AccumulatedActiveSeconds。暂停期间没有分段在走，
// 因此暂停时间天然不会被计入，不需要任何"空闲时间"扣减
type TimeSession struct {
	// ID 会话唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 会话所有者的用户ID
	// 与 Active 组成唯一索引，保证同一用户最多只有一个未终结的会话
	UserID int64 `gorm:"not null;uniqueIndex:uniq_user_active,priority:1" json:"user_id"`

	// ProjectID 关联的项目ID，可选，松散引用
	ProjectID *int64 `gorm:"index" json:"project_id,omitempty"`

	// TaskID 关联的任务ID，可选，松散引用
	TaskID *int64 `json:"task_id,omitempty"`

	// Description 工作内容描述
	Description string `gorm:"size:500" json:"description"`

	// Category 工时分类，见 Category* 常量
	Category string `gorm:"size:20;not null;default:work" json:"category"`

	// StartTime 当前活跃分段的开始时间
	// resume 时会被重置为恢复时刻，不是会话的创建时间
	StartTime time.Time `gorm:"not null" json:"start_time"`

	// PauseTime 暂停时刻
	// 仅当状态为 paused 时有值
	PauseTime *time.Time `json:"pause_time,omitempty"`

	// AccumulatedActiveSeconds 已完成分段的累计秒数
	// 单调不减，只在分段结束（pause/stop/回收）时写入
	AccumulatedActiveSeconds int64 `gorm:"not null;default:0" json:"accumulated_active_seconds"`

	// Status 会话状态，见 SessionStatus* 常量
	// completed 和 auto_stopped 是终态
	Status string `gorm:"size:20;not null;default:running;index" json:"status"`

	// Active 活跃标记
	// running/paused 时为 true，终结后置 NULL
	// MySQL 唯一索引允许多个 NULL，因此 (user_id, active)
	// 唯一索引只约束未终结的会话，start() 的查重与创建
	// 由这一个原子插入完成
	Active *bool `gorm:"uniqueIndex:uniq_user_active,priority:2" json:"-"`

	// CreatedAt 会话创建时间，即整个计时的起点
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (TimeSession) TableName() string {
	return "time_sessions"
}

// Terminal 判断会话是否已终结
func (s *TimeSession) Terminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusAutoStopped
}

// CurrentDuration 计算会话到 now 为止的累计活跃秒数
// 计时中 = 已累计分段 + 当前分段已走过的时间
// 暂停中 = 已累计分段
func (s *TimeSession) CurrentDuration(now time.Time) int64 {
	total := s.AccumulatedActiveSeconds
	if s.Status == SessionStatusRunning {
		elapsed := int64(now.Sub(s.StartTime).Seconds())
		if elapsed > 0 {
			total += elapsed
		}
	}
	return total
}
