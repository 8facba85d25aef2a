package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/middleware"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/service"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/response"
)

// ProjectHandler 项目/任务请求处理器
type ProjectHandler struct {
	projectService *service.ProjectService
}

// NewProjectHandler 创建 ProjectHandler 实例
func NewProjectHandler(projectService *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

// CreateProject 创建项目
// @Summary 创建项目
// @Tags 项目
// @Security Bearer
// @Accept json
// @Produce json
// @Param body body service.CreateProjectRequest true "项目信息"
// @Success 201 {object} response.Response{data=service.ProjectResponse}
// @Router /api/v1/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), userID, &req)
	if err != nil {
		response.InternalError(c, "创建项目失败")
		return
	}

	response.Created(c, project)
}

// ListProjects 获取项目列表
// @Summary 获取项目列表
// @Tags 项目
// @Security Bearer
// @Produce json
// @Success 200 {object} response.Response{data=[]service.ProjectResponse}
// @Router /api/v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	projects, err := h.projectService.ListProjects(c.Request.Context(), userID)
	if err != nil {
		response.InternalError(c, "获取项目列表失败")
		return
	}

	response.Success(c, gin.H{"projects": projects})
}

// CreateTask 在项目下创建任务
// @Summary 创建任务
// @Tags 项目
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path int true "项目ID"
// @Param body body service.CreateTaskRequest true "任务信息"
// @Success 201 {object} response.Response{data=service.TaskResponse}
// @Router /api/v1/projects/{id}/tasks [post]
func (h *ProjectHandler) CreateTask(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的项目ID")
		return
	}

	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "无效的请求参数")
		return
	}

	task, err := h.projectService.CreateTask(c.Request.Context(), userID, projectID, &req)
	if err != nil {
		switch err {
		case service.ErrProjectNotFound:
			response.ProjectNotFound(c)
		case service.ErrNoPermission:
			response.Forbidden(c, "无权操作此项目")
		default:
			response.InternalError(c, "创建任务失败")
		}
		return
	}

	response.Created(c, task)
}

// ListTasks 获取项目下的任务列表
// @Summary 获取任务列表
// @Tags 项目
// @Security Bearer
// @Produce json
// @Param id path int true "项目ID"
// @Success 200 {object} response.Response{data=[]service.TaskResponse}
// @Router /api/v1/projects/{id}/tasks [get]
func (h *ProjectHandler) ListTasks(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "请先登录")
		return
	}

	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的项目ID")
		return
	}

	tasks, err := h.projectService.ListTasks(c.Request.Context(), projectID)
	if err != nil {
		response.InternalError(c, "获取任务列表失败")
		return
	}

	response.Success(c, gin.H{"tasks": tasks})
}
