package model

import (
	"time"
)

// Project 项目模型
// 对应数据库表 projects
// 项目/任务是宿主系统的协作对象，计时引擎只通过 ID 松散引用，
// 用于在展示时附加名称标签和提供计费标记（is_billable）
type Project struct {
	// ID 项目唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// OwnerID 项目创建者的用户ID
	OwnerID int64 `gorm:"index;not null" json:"owner_id"`

	// Name 项目名称
	Name string `gorm:"size:100;not null" json:"name"`

	// Description 项目描述，可选
	Description *string `gorm:"size:500" json:"description,omitempty"`

	// Billable 项目是否计费
	// stop() 生成工时记录时，is_billable 取自该标记
	// 项目不存在时一律视为不计费
	Billable bool `gorm:"default:false" json:"billable"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// Task 任务模型
// 对应数据库表 tasks
// 任务从属于项目，仅用于计时会话和工时记录的标签展示
type Task struct {
	// ID 任务唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// ProjectID 所属项目ID
	ProjectID int64 `gorm:"index;not null" json:"project_id"`

	// Name 任务名称
	Name string `gorm:"size:200;not null" json:"name"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Task) TableName() string {
	return "tasks"
}
