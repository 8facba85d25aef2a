// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/util"
)

// 计时服务相关错误
var (
	ErrActiveSessionExists = errors.New("已存在进行中的计时会话")
	ErrSessionNotFound     = errors.New("计时会话不存在")
	ErrNotRunning          = errors.New("会话未在计时中")
	ErrNotPaused           = errors.New("会话未处于暂停状态")
	ErrNotActive           = errors.New("会话已结束")
	ErrNoPermission        = errors.New("无权执行此操作")
	ErrSessionConflict     = errors.New("会话状态已变更，请重试")
)

// ValidationError 请求参数校验错误
// 携带具体原因，调用方修正后可以重试
type ValidationError struct {
	Reason string
}

// Error 实现 error 接口
func (e *ValidationError) Error() string {
	return e.Reason
}

// newValidationError 创建校验错误
func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// 计时事件常量，通过 TimerNotifier 推送
const (
	EventTimerStarted     = "timer:started"
	EventTimerPaused      = "timer:paused"
	EventTimerResumed     = "timer:resumed"
	EventTimerStopped     = "timer:stopped"
	EventTimerAutoStopped = "timer:auto_stopped"
)

// TimerNotifier 计时事件通知接口
// 由 websocket hub 实现，服务层不依赖具体的推送通道
type TimerNotifier interface {
	NotifyTimerEvent(userID int64, event string, sessionID, durationSeconds int64)
}

// ActiveSessionCache 活跃会话缓存接口
// 由 Redis 缓存实现，缓存失败不影响业务
type ActiveSessionCache interface {
	SetActiveSession(ctx context.Context, userID, sessionID int64) error
	GetActiveSession(ctx context.Context, userID int64) (int64, error)
	ClearActiveSession(ctx context.Context, userID int64) error
}

// TimerService 计时引擎
// 持有状态机的全部合法性规则：谁可以操作会话、
// 会话处于什么状态时允许什么迁移、时长如何记账。
// 并发安全完全依赖存储层的条件更新，服务内没有内存锁
type TimerService struct {
	sessions repository.SessionStore     // 会话存储
	entries  repository.EntryStore       // 工时记录存储
	projects repository.ProjectDirectory // 项目/任务目录
	cache    ActiveSessionCache          // 活跃会话缓存，可为 nil
	notifier TimerNotifier               // 事件通知器，可为 nil

	// now 当前时间来源，单元测试里替换为固定时钟
	now func() time.Time
}

// NewTimerService 创建 TimerService 实例
func NewTimerService(
	sessions repository.SessionStore,
	entries repository.EntryStore,
	projects repository.ProjectDirectory,
	cache ActiveSessionCache,
) *TimerService {
	return &TimerService{
		sessions: sessions,
		entries:  entries,
		projects: projects,
		cache:    cache,
		now:      time.Now,
	}
}

// SetNotifier 设置事件通知器
func (s *TimerService) SetNotifier(n TimerNotifier) {
	s.notifier = n
}

// StartTimerRequest 开始计时请求
type StartTimerRequest struct {
	ProjectID   *int64 `json:"project_id"`  // 项目ID（可选）
	TaskID      *int64 `json:"task_id"`     // 任务ID（可选）
	Description string `json:"description"` // 工作内容描述
	Category    string `json:"category"`    // 工时分类，留空默认 work
}

// StopTimerRequest 停止计时请求
type StopTimerRequest struct {
	Description *string `json:"description"` // 覆盖会话的描述（可选）
}

// SessionResponse 计时会话响应
type SessionResponse struct {
	ID                     int64   `json:"id"`
	UserID                 int64   `json:"user_id"`
	ProjectID              *int64  `json:"project_id,omitempty"`
	ProjectName            string  `json:"project_name,omitempty"` // 项目不存在时为空
	TaskID                 *int64  `json:"task_id,omitempty"`
	TaskName               string  `json:"task_name,omitempty"`
	Description            string  `json:"description"`
	Category               string  `json:"category"`
	Status                 string  `json:"status"`
	StartTime              string  `json:"start_time"`
	PauseTime              *string `json:"pause_time,omitempty"`
	CurrentDurationSeconds int64   `json:"current_duration_seconds"` // 实时累计时长
	FormattedDuration      string  `json:"formatted_duration"`
	CreatedAt              string  `json:"created_at"`
}

// StopTimerResponse 停止计时响应
type StopTimerResponse struct {
	EntryID           int64  `json:"entry_id"`         // 生成的工时记录ID
	SessionID         int64  `json:"session_id"`       // 被终结的会话ID
	DurationSeconds   int64  `json:"duration_seconds"` // 最终工时秒数
	FormattedDuration string `json:"formatted_duration"`
	IsBillable        bool   `json:"is_billable"`
}

// Start 开始一次新的计时
// 单活跃会话检查与创建由存储层的唯一索引一次完成，
// 同一用户的并发 start（比如重复的浏览器标签页）只有一个能成功
func (s *TimerService) Start(ctx context.Context, userID int64, req *StartTimerRequest) (*SessionResponse, error) {
	category, err := normalizeCategory(req.Category)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &model.TimeSession{
		UserID:      userID,
		ProjectID:   req.ProjectID,
		TaskID:      req.TaskID,
		Description: req.Description,
		Category:    category,
		StartTime:   now,
		Status:      model.SessionStatusRunning,
		Active:      util.BoolPtr(true),
		CreatedAt:   now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateActiveSession) {
			return nil, ErrActiveSessionExists
		}
		return nil, err
	}

	if s.cache != nil {
		// 缓存失败不影响计时
		_ = s.cache.SetActiveSession(ctx, userID, session.ID)
	}
	s.notify(userID, EventTimerStarted, session.ID, 0)

	return s.toSessionResponse(ctx, session), nil
}

// Pause 暂停计时
// 结束当前分段：把分段时长累加进 accumulated_active_seconds，
// 记录暂停时刻。暂停期间的时间不属于任何分段
func (s *TimerService) Pause(ctx context.Context, userID, sessionID int64) (*SessionResponse, error) {
	session, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusRunning {
		return nil, ErrNotRunning
	}

	now := s.now()
	delta := segmentSeconds(session.StartTime, now)

	applied, err := s.sessions.PauseSegment(ctx, sessionID, session.StartTime, now, delta)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentStateError(ctx, sessionID, model.SessionStatusRunning)
	}

	session.AccumulatedActiveSeconds += delta
	session.PauseTime = &now
	session.Status = model.SessionStatusPaused
	s.notify(userID, EventTimerPaused, sessionID, session.AccumulatedActiveSeconds)

	return s.toSessionResponse(ctx, session), nil
}

// Resume 恢复计时
// 开启新分段：start_time 重置为当前时刻
func (s *TimerService) Resume(ctx context.Context, userID, sessionID int64) (*SessionResponse, error) {
	session, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionStatusPaused {
		return nil, ErrNotPaused
	}

	now := s.now()
	applied, err := s.sessions.ResumeSegment(ctx, sessionID, *session.PauseTime, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentStateError(ctx, sessionID, model.SessionStatusPaused)
	}

	session.StartTime = now
	session.PauseTime = nil
	session.Status = model.SessionStatusRunning
	s.notify(userID, EventTimerResumed, sessionID, session.AccumulatedActiveSeconds)

	return s.toSessionResponse(ctx, session), nil
}

// Stop 停止计时并生成工时记录
// 计时中的会话先结算最后一个分段；暂停中的会话直接结算。
// 状态迁移和记录写入在同一事务中提交
func (s *TimerService) Stop(ctx context.Context, userID, sessionID int64, req *StopTimerRequest) (*StopTimerResponse, error) {
	session, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, ErrNotActive
	}

	now := s.now()
	var delta int64
	if session.Status == model.SessionStatusRunning {
		delta = segmentSeconds(session.StartTime, now)
	}

	description := session.Description
	if req != nil && req.Description != nil {
		description = *req.Description
	}

	entry := s.buildEntry(ctx, session, description, now, delta, false)
	applied, err := s.sessions.CloseSession(ctx, session, model.SessionStatusCompleted, delta, entry)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.concurrentStateError(ctx, sessionID, session.Status)
	}

	if s.cache != nil {
		_ = s.cache.ClearActiveSession(ctx, userID)
	}
	s.notify(userID, EventTimerStopped, sessionID, entry.DurationSeconds)

	return &StopTimerResponse{
		EntryID:           entry.ID,
		SessionID:         sessionID,
		DurationSeconds:   entry.DurationSeconds,
		FormattedDuration: util.FormatDuration(entry.DurationSeconds),
		IsBillable:        entry.IsBillable,
	}, nil
}

// GetActive 获取用户当前的计时会话
// 先查缓存，未命中回落到数据库；没有活跃会话返回 nil
func (s *TimerService) GetActive(ctx context.Context, userID int64) (*SessionResponse, error) {
	var session *model.TimeSession
	var err error

	if s.cache != nil {
		if id, cacheErr := s.cache.GetActiveSession(ctx, userID); cacheErr == nil && id > 0 {
			session, err = s.sessions.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			// 缓存可能落后于数据库，会话已终结或易主时丢弃
			if session != nil && (session.Terminal() || session.UserID != userID) {
				session = nil
			}
		}
	}
	if session == nil {
		session, err = s.sessions.GetActiveByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	if session == nil {
		return nil, nil
	}
	return s.toSessionResponse(ctx, session), nil
}

// Reap 强制关闭已过期的未终结会话
// 由外部调度器（进程内的定时器，或任何 cron）以不大于阈值的
// 周期调用。走与 Stop 完全相同的终结路径，仅在生成的记录上
// 打回收标记。对同一批会话重复执行是幂等的：
// 已终结的会话不会再次入选，条件更新和 session_id 唯一索引
// 共同保证不会出现第二条记录
//
// 返回本轮被关闭的会话 ID 列表
func (s *TimerService) Reap(ctx context.Context, now time.Time, threshold time.Duration) ([]int64, error) {
	cutoff := now.Add(-threshold)
	stale, err := s.sessions.ListStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var closed []int64
	var lastErr error
	for i := range stale {
		session := stale[i]
		if session.Terminal() {
			continue
		}

		var delta int64
		if session.Status == model.SessionStatusRunning {
			delta = segmentSeconds(session.StartTime, now)
		}

		entry := s.buildEntry(ctx, &session, session.Description, now, delta, true)
		applied, err := s.sessions.CloseSession(ctx, &session, model.SessionStatusAutoStopped, delta, entry)
		if err != nil {
			// 单行失败不中断整轮扫描，留给下一轮重试
			lastErr = err
			continue
		}
		if !applied {
			// 用户抢在回收器之前操作了会话，跳过
			continue
		}

		closed = append(closed, session.ID)
		if s.cache != nil {
			_ = s.cache.ClearActiveSession(ctx, session.UserID)
		}
		s.notify(session.UserID, EventTimerAutoStopped, session.ID, entry.DurationSeconds)
	}
	return closed, lastErr
}

// getOwned 获取会话并校验所有权
// 无论会话处于什么状态，非所有者一律拒绝
func (s *TimerService) getOwned(ctx context.Context, userID, sessionID int64) (*model.TimeSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNoPermission
	}
	return session, nil
}

// concurrentStateError 条件更新没有命中行时，换算出应返回的错误
// 重新读取会话，根据它现在的状态告诉调用方拒绝原因
func (s *TimerService) concurrentStateError(ctx context.Context, sessionID int64, expected string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Terminal() {
		return ErrNotActive
	}
	switch expected {
	case model.SessionStatusRunning:
		if session.Status != model.SessionStatusRunning {
			return ErrNotRunning
		}
	case model.SessionStatusPaused:
		if session.Status != model.SessionStatusPaused {
			return ErrNotPaused
		}
	}
	// 状态没变但分段快照变了：一次暂停/恢复插在了读取与更新之间
	return ErrSessionConflict
}

// buildEntry 根据会话快照组装工时记录
// 记录的开始时间是会话的创建时间（整个计时的起点），
// 不是最后一个分段的开始时间
func (s *TimerService) buildEntry(ctx context.Context, session *model.TimeSession, description string, endTime time.Time, delta int64, autoStopped bool) *model.TimeEntry {
	sessionID := session.ID
	return &model.TimeEntry{
		UserID:          session.UserID,
		ProjectID:       session.ProjectID,
		TaskID:          session.TaskID,
		SessionID:       &sessionID,
		Description:     description,
		Category:        session.Category,
		StartTime:       session.CreatedAt,
		EndTime:         endTime,
		DurationSeconds: session.AccumulatedActiveSeconds + delta,
		IsBillable:      s.isBillable(ctx, session.ProjectID),
		AutoStopped:     autoStopped,
	}
}

// isBillable 查询项目的计费标记
// 项目为空、不存在或查询失败时一律不计费
func (s *TimerService) isBillable(ctx context.Context, projectID *int64) bool {
	if projectID == nil || s.projects == nil {
		return false
	}
	project, err := s.projects.GetProject(ctx, *projectID)
	if err != nil || project == nil {
		return false
	}
	return project.Billable
}

// notify 推送计时事件，通知器未设置时静默跳过
func (s *TimerService) notify(userID int64, event string, sessionID, durationSeconds int64) {
	if s.notifier != nil {
		s.notifier.NotifyTimerEvent(userID, event, sessionID, durationSeconds)
	}
}

// toSessionResponse 将会话模型转换为响应格式
// 附加实时时长和项目/任务标签，标签查不到就留空
func (s *TimerService) toSessionResponse(ctx context.Context, session *model.TimeSession) *SessionResponse {
	now := s.now()
	duration := session.CurrentDuration(now)

	resp := &SessionResponse{
		ID:                     session.ID,
		UserID:                 session.UserID,
		ProjectID:              session.ProjectID,
		TaskID:                 session.TaskID,
		Description:            session.Description,
		Category:               session.Category,
		Status:                 session.Status,
		StartTime:              session.StartTime.Format(time.RFC3339),
		CurrentDurationSeconds: duration,
		FormattedDuration:      util.FormatDuration(duration),
		CreatedAt:              session.CreatedAt.Format(time.RFC3339),
	}
	if session.PauseTime != nil {
		formatted := session.PauseTime.Format(time.RFC3339)
		resp.PauseTime = &formatted
	}
	resp.ProjectName, resp.TaskName = s.lookupLabels(ctx, session.ProjectID, session.TaskID)
	return resp
}

// lookupLabels 查询项目/任务的名称标签
// 悬空引用只导致标签为空，从不导致错误
func (s *TimerService) lookupLabels(ctx context.Context, projectID, taskID *int64) (string, string) {
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

// segmentSeconds 计算一个分段的秒数，负数截断为 0
// 时钟回拨不应产生负的工时
func segmentSeconds(start, end time.Time) int64 {
	seconds := int64(end.Sub(start).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// normalizeCategory 校验并规范化工时分类
// 留空默认 work，未知值在边界直接拒绝
func normalizeCategory(category string) (string, error) {
	if category == "" {
		return model.CategoryWork, nil
	}
	if !model.ValidCategory(category) {
		return "", newValidationError("未知的工时分类: %s", category)
	}
	return category, nil
}
