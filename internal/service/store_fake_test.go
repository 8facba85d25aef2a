package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
)

// memDB 内存数据库，用于单元测试
// 语义与 MySQL 实现对齐：
//   - 会话创建模拟 (user_id, active) 唯一索引
//   - 状态迁移是带前置条件的条件更新
//   - CloseSession 模拟事务和 session_id 唯一索引
type memDB struct {
	mu sync.Mutex

	sessions      map[int64]*model.TimeSession
	entries       map[int64]*model.TimeEntry
	projects      map[int64]*model.Project
	tasks         map[int64]*model.Task
	nextSessionID int64
	nextEntryID   int64
}

func newMemDB() *memDB {
	return &memDB{
		sessions: make(map[int64]*model.TimeSession),
		entries:  make(map[int64]*model.TimeEntry),
		projects: make(map[int64]*model.Project),
		tasks:    make(map[int64]*model.Task),
	}
}

func (db *memDB) sessionStore() repository.SessionStore { return &memSessionStore{db} }
func (db *memDB) entryStore() repository.EntryStore     { return &memEntryStore{db} }
func (db *memDB) directory() repository.ProjectDirectory {
	return &memDirectory{db}
}

func (db *memDB) addProject(p *model.Project) {
	db.mu.Lock()
	defer db.mu.Unlock()
	copied := *p
	db.projects[p.ID] = &copied
}

func (db *memDB) addTask(t *model.Task) {
	db.mu.Lock()
	defer db.mu.Unlock()
	copied := *t
	db.tasks[t.ID] = &copied
}

func (db *memDB) entryCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.entries)
}

// insertEntry 在持锁状态下写入记录，调用方负责加锁
func (db *memDB) insertEntry(entry *model.TimeEntry) {
	db.nextEntryID++
	entry.ID = db.nextEntryID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = entry.EndTime
	}
	copied := *entry
	db.entries[entry.ID] = &copied
}

// ==================== SessionStore ====================

type memSessionStore struct {
	db *memDB
}

func (m *memSessionStore) Create(ctx context.Context, session *model.TimeSession) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	// (user_id, active) 唯一索引：NULL 不参与约束
	if session.Active != nil {
		for _, s := range m.db.sessions {
			if s.UserID == session.UserID && s.Active != nil {
				return repository.ErrDuplicateActiveSession
			}
		}
	}

	m.db.nextSessionID++
	session.ID = m.db.nextSessionID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.StartTime
	}
	copied := *session
	m.db.sessions[session.ID] = &copied
	return nil
}

func (m *memSessionStore) GetByID(ctx context.Context, id int64) (*model.TimeSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *memSessionStore) GetActiveByUserID(ctx context.Context, userID int64) (*model.TimeSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	for _, s := range m.db.sessions {
		if s.UserID == userID && s.Active != nil {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memSessionStore) ListStale(ctx context.Context, cutoff time.Time) ([]model.TimeSession, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var stale []model.TimeSession
	for _, s := range m.db.sessions {
		switch {
		case s.Status == model.SessionStatusRunning && s.StartTime.Before(cutoff):
			stale = append(stale, *s)
		case s.Status == model.SessionStatusPaused && s.PauseTime != nil && s.PauseTime.Before(cutoff):
			stale = append(stale, *s)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale, nil
}

func (m *memSessionStore) PauseSegment(ctx context.Context, id int64, segmentStart, pausedAt time.Time, deltaSeconds int64) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[id]
	if !ok || s.Status != model.SessionStatusRunning || !s.StartTime.Equal(segmentStart) {
		return false, nil
	}
	s.AccumulatedActiveSeconds += deltaSeconds
	paused := pausedAt
	s.PauseTime = &paused
	s.Status = model.SessionStatusPaused
	return true, nil
}

func (m *memSessionStore) ResumeSegment(ctx context.Context, id int64, pausedAt, resumedAt time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[id]
	if !ok || s.Status != model.SessionStatusPaused || s.PauseTime == nil || !s.PauseTime.Equal(pausedAt) {
		return false, nil
	}
	s.StartTime = resumedAt
	s.PauseTime = nil
	s.Status = model.SessionStatusRunning
	return true, nil
}

func (m *memSessionStore) CloseSession(ctx context.Context, session *model.TimeSession, status string, deltaSeconds int64, entry *model.TimeEntry) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	s, ok := m.db.sessions[session.ID]
	if !ok || s.Status != session.Status || !s.StartTime.Equal(session.StartTime) {
		return false, nil
	}

	// session_id 唯一索引：已有记录时整个事务不生效
	if entry.SessionID != nil {
		for _, e := range m.db.entries {
			if e.SessionID != nil && *e.SessionID == *entry.SessionID {
				return false, nil
			}
		}
	}

	s.AccumulatedActiveSeconds += deltaSeconds
	s.Status = status
	s.PauseTime = nil
	s.Active = nil
	m.db.insertEntry(entry)
	return true, nil
}

// ==================== EntryStore ====================

type memEntryStore struct {
	db *memDB
}

func (m *memEntryStore) Create(ctx context.Context, entry *model.TimeEntry) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	m.db.insertEntry(entry)
	return nil
}

func (m *memEntryStore) GetByID(ctx context.Context, id int64) (*model.TimeEntry, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	e, ok := m.db.entries[id]
	if !ok {
		return nil, nil
	}
	copied := *e
	return &copied, nil
}

func (m *memEntryStore) Update(ctx context.Context, entry *model.TimeEntry) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	copied := *entry
	m.db.entries[entry.ID] = &copied
	return nil
}

func (m *memEntryStore) Delete(ctx context.Context, id int64) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	delete(m.db.entries, id)
	return nil
}

func (m *memEntryStore) List(ctx context.Context, filter repository.EntryFilter, page, pageSize int) ([]model.TimeEntry, int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	var matched []model.TimeEntry
	for _, e := range m.db.entries {
		if matchEntry(e, filter) {
			matched = append(matched, *e)
		}
	}
	// 按开始时间倒序
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartTime.After(matched[j].StartTime) })

	total := int64(len(matched))
	offset := (page - 1) * pageSize
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *memEntryStore) Aggregate(ctx context.Context, filter repository.ReportFilter) ([]repository.ReportBucket, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	buckets := make(map[string]*repository.ReportBucket)
	for _, e := range m.db.entries {
		if filter.UserID != nil && e.UserID != *filter.UserID {
			continue
		}
		if filter.ProjectID != nil && (e.ProjectID == nil || *e.ProjectID != *filter.ProjectID) {
			continue
		}
		if e.StartTime.Before(filter.From) || !e.StartTime.Before(filter.To) {
			continue
		}

		key := bucketKey(e.StartTime, filter.GroupBy)
		b, ok := buckets[key]
		if !ok {
			b = &repository.ReportBucket{BucketKey: key}
			buckets[key] = b
		}
		b.TotalDurationSeconds += e.DurationSeconds
		if e.IsBillable {
			b.BillableDurationSeconds += e.DurationSeconds
		}
		b.EntryCount++
	}

	result := make([]repository.ReportBucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}
	// 按分组键倒序
	sort.Slice(result, func(i, j int) bool { return result[i].BucketKey > result[j].BucketKey })
	return result, nil
}

// bucketKey 生成分组键，格式与 MySQL 的 DATE_FORMAT 对齐
func bucketKey(t time.Time, groupBy string) string {
	switch groupBy {
	case repository.GroupByWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case repository.GroupByMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func matchEntry(e *model.TimeEntry, filter repository.EntryFilter) bool {
	if e.UserID != filter.UserID {
		return false
	}
	if filter.ProjectID != nil && (e.ProjectID == nil || *e.ProjectID != *filter.ProjectID) {
		return false
	}
	if filter.Category != "" && e.Category != filter.Category {
		return false
	}
	if filter.From != nil && e.StartTime.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !e.StartTime.Before(*filter.To) {
		return false
	}
	if filter.Billable != nil && e.IsBillable != *filter.Billable {
		return false
	}
	return true
}

// ==================== ProjectDirectory ====================

type memDirectory struct {
	db *memDB
}

func (m *memDirectory) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	p, ok := m.db.projects[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *memDirectory) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()

	t, ok := m.db.tasks[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}
