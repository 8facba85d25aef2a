package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
)

// SessionRepository 计时会话数据访问层（MySQL 实现）
// 状态机的并发保证全部落在这里：
//   - 同一用户最多一个未终结会话：(user_id, active) 唯一索引，
//     查重与创建就是一次原子插入，并发 start 只有一个能成功
//   - 状态迁移：UPDATE 的 WHERE 子句携带期望状态和分段快照，
//     RowsAffected 为 0 说明有并发请求抢先改变了会话
//   - 终结迁移与记录写入在同一事务中提交，要么都生效要么都不生效
type SessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建 SessionRepository 实例
func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create 创建新会话
// 依赖 (user_id, active) 唯一索引保证单活跃会话不变量：
// 应用层"先查再插"在并发下是不够的（比如用户开了两个浏览器标签页），
// 这里必须让数据库来做这个判定
func (r *SessionRepository) Create(ctx context.Context, session *model.TimeSession) error {
	err := r.db.WithContext(ctx).Create(session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveSession
		}
		return err
	}
	return nil
}

// GetByID 根据 ID 获取会话
// 未找到返回 nil，不作为错误
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.TimeSession, error) {
	var session model.TimeSession
	err := r.db.WithContext(ctx).First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetActiveByUserID 获取用户当前未终结的会话
// 唯一索引保证最多只有一条
func (r *SessionRepository) GetActiveByUserID(ctx context.Context, userID int64) (*model.TimeSession, error) {
	var session model.TimeSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// ListStale 列出已过期的未终结会话
// 计时中的会话看当前分段的开始时间，
// 暂停中的会话看暂停时间（暂停期间分段没有在走）
func (r *SessionRepository) ListStale(ctx context.Context, cutoff time.Time) ([]model.TimeSession, error) {
	var sessions []model.TimeSession
	err := r.db.WithContext(ctx).
		Where("(status = ? AND start_time < ?) OR (status = ? AND pause_time < ?)",
			model.SessionStatusRunning, cutoff,
			model.SessionStatusPaused, cutoff).
		Order("id ASC").
		Find(&sessions).Error
	return sessions, err
}

// PauseSegment 结束当前分段并将会话置为暂停
// WHERE 携带 status=running 和分段开始时间：
// 若在读取与更新之间会话被并发地暂停/恢复/停止，
// 状态或 start_time 必然已经变化，更新不会命中任何行
func (r *SessionRepository) PauseSegment(ctx context.Context, id int64, segmentStart, pausedAt time.Time, deltaSeconds int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSession{}).
		Where("id = ? AND status = ? AND start_time = ?", id, model.SessionStatusRunning, segmentStart).
		Updates(map[string]interface{}{
			"accumulated_active_seconds": gorm.Expr("accumulated_active_seconds + ?", deltaSeconds),
			"pause_time":                 pausedAt,
			"status":                     model.SessionStatusPaused,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResumeSegment 开启新分段并将会话置为计时中
// start_time 被重置为恢复时刻，新分段从这里开始计
func (r *SessionRepository) ResumeSegment(ctx context.Context, id int64, pausedAt, resumedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSession{}).
		Where("id = ? AND status = ? AND pause_time = ?", id, model.SessionStatusPaused, pausedAt).
		Updates(map[string]interface{}{
			"start_time": resumedAt,
			"pause_time": nil,
			"status":     model.SessionStatusRunning,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CloseSession 终结会话并写入工时记录
// 两个写操作在同一事务里：状态迁移没有命中行就不写记录，
// 记录因 session_id 冲突写不进去就回滚状态迁移。
// 回收器和用户的 stop 使用同一条路径，不可能把一个会话关闭两次
func (r *SessionRepository) CloseSession(ctx context.Context, session *model.TimeSession, status string, deltaSeconds int64, entry *model.TimeEntry) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TimeSession{}).
			Where("id = ? AND status = ? AND start_time = ?", session.ID, session.Status, session.StartTime).
			Updates(map[string]interface{}{
				"accumulated_active_seconds": gorm.Expr("accumulated_active_seconds + ?", deltaSeconds),
				"status":                     status,
				"pause_time":                 nil,
				"active":                     nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 会话已被并发请求抢先迁移，整个事务不产生任何效果
			return nil
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 该会话已经生成过记录，视为已被关闭
			return false, nil
		}
		return false, err
	}
	return applied, nil
}
