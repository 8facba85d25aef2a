package service

import (
	"context"
	"errors"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
)

// 项目服务相关错误
var (
	ErrProjectNotFound = errors.New("项目不存在")
)

// ProjectService 项目/任务服务
// 项目和任务属于宿主系统的协作域，这里只提供计时引擎
// 依赖的最小能力：建项目、建任务、列表。
// 计时引擎消费它们时永远通过 ID 松散引用
type ProjectService struct {
	projects *repository.ProjectRepository // 项目/任务数据访问层
}

// NewProjectService 创建 ProjectService 实例
func NewProjectService(projects *repository.ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects}
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required,max=100"` // 项目名称
	Description *string `json:"description"`                     // 项目描述（可选）
	Billable    bool    `json:"billable"`                        // 是否计费
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Name string `json:"name" binding:"required,max=200"` // 任务名称
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID          int64   `json:"id"`
	OwnerID     int64   `json:"owner_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Billable    bool    `json:"billable"`
	CreatedAt   string  `json:"created_at"`
}

// TaskResponse 任务响应
type TaskResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreateProject 创建项目
func (s *ProjectService) CreateProject(ctx context.Context, userID int64, req *CreateProjectRequest) (*ProjectResponse, error) {
	project := &model.Project{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Billable:    req.Billable,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return toProjectResponse(project), nil
}

// ListProjects 获取用户创建的项目列表
func (s *ProjectService) ListProjects(ctx context.Context, userID int64) ([]ProjectResponse, error) {
	projects, err := s.projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := make([]ProjectResponse, len(projects))
	for i := range projects {
		result[i] = *toProjectResponse(&projects[i])
	}
	return result, nil
}

// CreateTask 在项目下创建任务
// 只有项目创建者可以添加任务
func (s *ProjectService) CreateTask(ctx context.Context, userID, projectID int64, req *CreateTaskRequest) (*TaskResponse, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if project.OwnerID != userID {
		return nil, ErrNoPermission
	}

	task := &model.Task{
		ProjectID: projectID,
		Name:      req.Name,
	}
	if err := s.projects.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return toTaskResponse(task), nil
}

// ListTasks 获取项目下的任务列表
func (s *ProjectService) ListTasks(ctx context.Context, projectID int64) ([]TaskResponse, error) {
	tasks, err := s.projects.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	result := make([]TaskResponse, len(tasks))
	for i := range tasks {
		result[i] = *toTaskResponse(&tasks[i])
	}
	return result, nil
}

// toProjectResponse 将项目模型转换为响应格式
func toProjectResponse(project *model.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:          project.ID,
		OwnerID:     project.OwnerID,
		Name:        project.Name,
		Description: project.Description,
		Billable:    project.Billable,
		CreatedAt:   project.CreatedAt.Format(time.RFC3339),
	}
}

// toTaskResponse 将任务模型转换为响应格式
func toTaskResponse(task *model.Task) *TaskResponse {
	return &TaskResponse{
		ID:        task.ID,
		ProjectID: task.ProjectID,
		Name:      task.Name,
		CreatedAt: task.CreatedAt.Format(time.RFC3339),
	}
}
