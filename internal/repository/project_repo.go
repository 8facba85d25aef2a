package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
)

// ProjectRepository 项目/任务数据访问层（MySQL 实现）
// 同时实现 ProjectDirectory 接口，供计时引擎做标签和计费查询
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建 ProjectRepository 实例
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateProject 创建项目
func (r *ProjectRepository) CreateProject(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// GetProject 根据 ID 获取项目
// 未找到返回 nil，悬空引用不是错误
func (r *ProjectRepository) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// ListByOwner 获取用户创建的所有项目，按创建时间倒序
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

// CreateTask 创建任务
func (r *ProjectRepository) CreateTask(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetTask 根据 ID 获取任务
// 未找到返回 nil
func (r *ProjectRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// ListTasks 获取项目下的所有任务
func (r *ProjectRepository) ListTasks(ctx context.Context, projectID int64) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&tasks).Error
	return tasks, err
}
