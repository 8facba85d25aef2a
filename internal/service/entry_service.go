package service

import (
	"context"
	"errors"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/util"
)

// 工时记录服务相关错误
var (
	ErrEntryNotFound = errors.New("工时记录不存在")
)

// EntryService 工时记录服务
// 处理手工补录的增删改和记录列表查询。
// 计时器生成的记录也从这里修改：所有者可以改描述、
// 分类、计费标记，或显式修正起止时间（将触发时长重算）
type EntryService struct {
	entries  repository.EntryStore       // 工时记录存储
	projects repository.ProjectDirectory // 项目/任务目录
}

// NewEntryService 创建 EntryService 实例
func NewEntryService(entries repository.EntryStore, projects repository.ProjectDirectory) *EntryService {
	return &EntryService{
		entries:  entries,
		projects: projects,
	}
}

// CreateEntryRequest 手工补录请求
type CreateEntryRequest struct {
	ProjectID       *int64    `json:"project_id"`       // 项目ID（可选）
	TaskID          *int64    `json:"task_id"`          // 任务ID（可选）
	Description     string    `json:"description"`      // 工作内容描述，必填
	Category        string    `json:"category"`         // 工时分类，留空默认 work
	StartTime       time.Time `json:"start_time"`       // 开始时间，必填
	EndTime         time.Time `json:"end_time"`         // 结束时间，必填
	DurationSeconds *int64    `json:"duration_seconds"` // 工时秒数，省略时按 end - start 计算
	IsBillable      *bool     `json:"is_billable"`      // 计费标记，省略时取项目的标记
}

// UpdateEntryRequest 修改工时记录请求
// 全部字段可选，只更新出现的字段
type UpdateEntryRequest struct {
	ProjectID   *int64     `json:"project_id"`
	TaskID      *int64     `json:"task_id"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	StartTime   *time.Time `json:"start_time"` // 修正开始时间，触发时长重算
	EndTime     *time.Time `json:"end_time"`   // 修正结束时间，触发时长重算
	IsBillable  *bool      `json:"is_billable"`
}

// ListEntriesRequest 工时记录列表请求
type ListEntriesRequest struct {
	ProjectID *int64     // 按项目过滤（可选）
	Category  string     // 按分类过滤（可选）
	From      *time.Time // 开始时间下界（可选，含）
	To        *time.Time // 开始时间上界（可选，不含）
	Billable  *bool      // 按计费标记过滤（可选）
	Page      int        // 页码，从 1 开始
	PageSize  int        // 每页数量
}

// EntryView 工时记录视图
// 在存储字段之外附加格式化时长和项目/任务标签
type EntryView struct {
	ID                int64  `json:"id"`
	UserID            int64  `json:"user_id"`
	ProjectID         *int64 `json:"project_id,omitempty"`
	ProjectName       string `json:"project_name,omitempty"`
	TaskID            *int64 `json:"task_id,omitempty"`
	TaskName          string `json:"task_name,omitempty"`
	SessionID         *int64 `json:"session_id,omitempty"` // 手工补录为空
	Description       string `json:"description"`
	Category          string `json:"category"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	DurationSeconds   int64  `json:"duration_seconds"`
	FormattedDuration string `json:"formatted_duration"` // 满 1 小时 HH:MM:SS，否则 MM:SS
	IsBillable        bool   `json:"is_billable"`
	AutoStopped       bool   `json:"auto_stopped"`
	CreatedAt         string `json:"created_at"`
}

// CreateEntry 手工补录一条工时记录
// 省略时长时按 end - start 计算；计算结果不为正，
// 或结束时间早于开始时间，都在边界直接拒绝
func (s *EntryService) CreateEntry(ctx context.Context, userID int64, req *CreateEntryRequest) (*EntryView, error) {
	if req.Description == "" {
		return nil, newValidationError("描述不能为空")
	}
	category, err := normalizeCategory(req.Category)
	if err != nil {
		return nil, err
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, newValidationError("开始时间和结束时间不能为空")
	}
	if req.EndTime.Before(req.StartTime) {
		return nil, newValidationError("结束时间不能早于开始时间")
	}

	duration, err := resolveDuration(req.StartTime, req.EndTime, req.DurationSeconds)
	if err != nil {
		return nil, err
	}

	billable := false
	if req.IsBillable != nil {
		billable = *req.IsBillable
	} else if req.ProjectID != nil {
		billable = s.projectBillable(ctx, *req.ProjectID)
	}

	entry := &model.TimeEntry{
		UserID:          userID,
		ProjectID:       req.ProjectID,
		TaskID:          req.TaskID,
		SessionID:       nil, // 手工补录不关联会话
		Description:     req.Description,
		Category:        category,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationSeconds: duration,
		IsBillable:      billable,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	return s.toEntryView(ctx, entry), nil
}

// UpdateEntry 修改工时记录
// 只有所有者可以修改；起止时间被修正时重算时长，
// 否则时长保持不变
func (s *EntryService) UpdateEntry(ctx context.Context, userID, entryID int64, req *UpdateEntryRequest) (*EntryView, error) {
	entry, err := s.getOwnedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		if *req.Description == "" {
			return nil, newValidationError("描述不能为空")
		}
		entry.Description = *req.Description
	}
	if req.Category != nil {
		category, err := normalizeCategory(*req.Category)
		if err != nil {
			return nil, err
		}
		entry.Category = category
	}
	if req.ProjectID != nil {
		entry.ProjectID = req.ProjectID
	}
	if req.TaskID != nil {
		entry.TaskID = req.TaskID
	}
	if req.IsBillable != nil {
		entry.IsBillable = *req.IsBillable
	}

	// 起止时间被显式修正时才重算时长
	if req.StartTime != nil || req.EndTime != nil {
		if req.StartTime != nil {
			entry.StartTime = *req.StartTime
		}
		if req.EndTime != nil {
			entry.EndTime = *req.EndTime
		}
		if entry.EndTime.Before(entry.StartTime) {
			return nil, newValidationError("结束时间不能早于开始时间")
		}
		duration, err := resolveDuration(entry.StartTime, entry.EndTime, nil)
		if err != nil {
			return nil, err
		}
		entry.DurationSeconds = duration
	}

	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}
	return s.toEntryView(ctx, entry), nil
}

// DeleteEntry 删除工时记录
// 只有所有者可以删除，硬删除
func (s *EntryService) DeleteEntry(ctx context.Context, userID, entryID int64) error {
	entry, err := s.getOwnedEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	return s.entries.Delete(ctx, entry.ID)
}

// GetEntry 获取单条工时记录
func (s *EntryService) GetEntry(ctx context.Context, userID, entryID int64) (*EntryView, error) {
	entry, err := s.getOwnedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	return s.toEntryView(ctx, entry), nil
}

// ListEntries 分页查询用户的工时记录
// 按开始时间倒序，返回视图列表和总数
func (s *EntryService) ListEntries(ctx context.Context, userID int64, req *ListEntriesRequest) ([]EntryView, int64, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	if req.Category != "" && !model.ValidCategory(req.Category) {
		return nil, 0, newValidationError("未知的工时分类: %s", req.Category)
	}

	filter := repository.EntryFilter{
		UserID:    userID,
		ProjectID: req.ProjectID,
		Category:  req.Category,
		From:      req.From,
		To:        req.To,
		Billable:  req.Billable,
	}
	entries, total, err := s.entries.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	views := make([]EntryView, len(entries))
	for i := range entries {
		views[i] = *s.toEntryView(ctx, &entries[i])
	}
	return views, total, nil
}

// getOwnedEntry 获取记录并校验所有权
func (s *EntryService) getOwnedEntry(ctx context.Context, userID, entryID int64) (*model.TimeEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.UserID != userID {
		return nil, ErrNoPermission
	}
	return entry, nil
}

// projectBillable 查询项目的计费标记，未知项目不计费
func (s *EntryService) projectBillable(ctx context.Context, projectID int64) bool {
	if s.projects == nil {
		return false
	}
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil || project == nil {
		return false
	}
	return project.Billable
}

// toEntryView 将记录模型转换为视图
func (s *EntryService) toEntryView(ctx context.Context, entry *model.TimeEntry) *EntryView {
	view := &EntryView{
		ID:                entry.ID,
		UserID:            entry.UserID,
		ProjectID:         entry.ProjectID,
		TaskID:            entry.TaskID,
		SessionID:         entry.SessionID,
		Description:       entry.Description,
		Category:          entry.Category,
		StartTime:         entry.StartTime.Format(time.RFC3339),
		EndTime:           entry.EndTime.Format(time.RFC3339),
		DurationSeconds:   entry.DurationSeconds,
		FormattedDuration: util.FormatDuration(entry.DurationSeconds),
		IsBillable:        entry.IsBillable,
		AutoStopped:       entry.AutoStopped,
		CreatedAt:         entry.CreatedAt.Format(time.RFC3339),
	}
	view.ProjectName, view.TaskName = s.lookupLabels(ctx, entry.ProjectID, entry.TaskID)
	return view
}

// lookupLabels 查询项目/任务的名称标签，查不到留空
func (s *EntryService) lookupLabels(ctx context.Context, projectID, taskID *int64) (string, string) {
	var projectName, taskName string
	if s.projects == nil {
		return "", ""
	}
	if projectID != nil {
		if project, err := s.projects.GetProject(ctx, *projectID); err == nil && project != nil {
			projectName = project.Name
		}
	}
	if taskID != nil {
		if task, err := s.projects.GetTask(ctx, *taskID); err == nil && task != nil {
			taskName = task.Name
		}
	}
	return projectName, taskName
}

// resolveDuration 计算工时秒数
// 显式给出的时长不允许为负；省略时按 end - start 计算，
// 手工补录的工时必须为正
func resolveDuration(start, end time.Time, explicit *int64) (int64, error) {
	if explicit != nil {
		if *explicit < 0 {
			return 0, newValidationError("工时秒数不能为负")
		}
		return *explicit, nil
	}
	duration := int64(end.Sub(start).Seconds())
	if duration <= 0 {
		return 0, newValidationError("工时必须大于 0")
	}
	return duration, nil
}
