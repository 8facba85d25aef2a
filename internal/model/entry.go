package model

import (
	"time"
)

// TimeEntry 工时记录模型
// 对应数据库表 time_entries
// 工时记录是可上报的最终结果：由终结的计时会话生成，
// 或由用户手工补录。记录以追加为主，之后只有所有者可以修改
type TimeEntry struct {
	// ID 记录唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 记录所有者的用户ID
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// ProjectID 关联的项目ID，可选，松散引用
	ProjectID *int64 `gorm:"index" json:"project_id,omitempty"`

	// TaskID 关联的任务ID，可选，松散引用
	TaskID *int64 `json:"task_id,omitempty"`

	// SessionID 来源会话ID
	// 手工补录的记录为 NULL
	// 唯一索引保证一个会话最多生成一条记录，
	// 回收器重复扫到同一行也不会写出第二条
	SessionID *int64 `gorm:"uniqueIndex" json:"session_id,omitempty"`

	// Description 工作内容描述
	Description string `gorm:"size:500" json:"description"`

	// Category 工时分类，见 Category* 常量
	Category string `gorm:"size:20;not null;default:work" json:"category"`

	// StartTime 工时的开始时间
	// 对于会话生成的记录，是会话的创建时间
	StartTime time.Time `gorm:"not null;index" json:"start_time"`

	// EndTime 工时的结束时间
	EndTime time.Time `gorm:"not null" json:"end_time"`

	// DurationSeconds 工时秒数，>= 0
	// 会话生成的记录等于累计活跃秒数，暂停时间不计入
	DurationSeconds int64 `gorm:"not null;default:0" json:"duration_seconds"`

	// IsBillable 是否计费
	// 取自项目的计费标记，项目不存在时为 false
	IsBillable bool `gorm:"default:false" json:"is_billable"`

	// AutoStopped 是否由回收器关闭
	// 标记记录来源，不是独立的分类
	AutoStopped bool `gorm:"default:false" json:"auto_stopped"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (TimeEntry) TableName() string {
	return "time_entries"
}
