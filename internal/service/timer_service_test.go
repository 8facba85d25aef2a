package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
)

// testClock 可手动拨动的时钟
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier 记录推送过的事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyTimerEvent(userID int64, event string, sessionID, durationSeconds int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// setupTimerService 创建基于内存存储的计时服务
func setupTimerService(t *testing.T) (*TimerService, *memDB, *testClock) {
	t.Helper()
	db := newMemDB()
	clock := newTestClock(testEpoch)
	svc := NewTimerService(db.sessionStore(), db.entryStore(), db.directory(), nil)
	svc.now = clock.Now
	return svc, db, clock
}

func TestTimerService_StartCreatesRunningSession(t *testing.T) {
	svc, _, _ := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{Description: "修复登录问题"})
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusRunning, resp.Status)
	require.Equal(t, model.CategoryWork, resp.Category, "留空的分类应默认为 work")
	require.Equal(t, int64(0), resp.CurrentDurationSeconds)
}

func TestTimerService_StartRejectsSecondActiveSession(t *testing.T) {
	svc, _, _ := setupTimerService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, 1, &StartTimerRequest{Description: "第一个"})
	require.NoError(t, err)

	_, err = svc.Start(ctx, 1, &StartTimerRequest{Description: "第二个"})
	require.ErrorIs(t, err, ErrActiveSessionExists)

	// 其他用户不受影响
	_, err = svc.Start(ctx, 2, &StartTimerRequest{Description: "别人的"})
	require.NoError(t, err)
}

func TestTimerService_StartRejectsWhilePaused(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = svc.Pause(ctx, 1, resp.ID)
	require.NoError(t, err)

	// 暂停中的会话依然占用活跃槽位
	_, err = svc.Start(ctx, 1, &StartTimerRequest{})
	require.ErrorIs(t, err, ErrActiveSessionExists)
}

func TestTimerService_ConcurrentStartOnlyOneWins(t *testing.T) {
	svc, _, _ := setupTimerService(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Start(ctx, 42, &StartTimerRequest{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrActiveSessionExists)
		}
	}
	require.Equal(t, 1, succeeded, "并发 start 只能有一个成功")
}

func TestTimerService_StartRejectsUnknownCategory(t *testing.T) {
	svc, _, _ := setupTimerService(t)

	_, err := svc.Start(context.Background(), 1, &StartTimerRequest{Category: "vacation"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTimerService_SegmentAccounting(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{Description: "分段测试"})
	require.NoError(t, err)
	id := resp.ID

	// 计时 30 秒后暂停
	clock.Advance(30 * time.Second)
	paused, err := svc.Pause(ctx, 1, id)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusPaused, paused.Status)
	require.Equal(t, int64(30), paused.CurrentDurationSeconds)

	// 暂停 10 分钟，时长不走
	clock.Advance(10 * time.Minute)
	active, err := svc.GetActive(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(30), active.CurrentDurationSeconds, "暂停期间不应计入时长")

	// 恢复后再计时 60 秒
	resumed, err := svc.Resume(ctx, 1, id)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusRunning, resumed.Status)

	clock.Advance(60 * time.Second)
	stopped, err := svc.Stop(ctx, 1, id, nil)
	require.NoError(t, err)
	require.Equal(t, int64(90), stopped.DurationSeconds, "30 + 60 = 90 秒")
	require.Equal(t, "01:30", stopped.FormattedDuration)
}

func TestTimerService_StopWhilePaused(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	_, err = svc.Pause(ctx, 1, resp.ID)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	stopped, err := svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(45), stopped.DurationSeconds, "暂停中停止不应结算新分段")
	require.Equal(t, 1, db.entryCount())
}

func TestTimerService_ZeroDurationStopCreatesEntry(t *testing.T) {
	svc, db, _ := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	// 立即停止：时长为 0 的记录也要生成
	stopped, err := svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), stopped.DurationSeconds)
	require.Equal(t, 1, db.entryCount())
}

func TestTimerService_StopDescriptionOverride(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{Description: "初稿"})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	override := "终稿"
	_, err = svc.Stop(ctx, 1, resp.ID, &StopTimerRequest{Description: &override})
	require.NoError(t, err)

	entry, err := db.entryStore().GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "终稿", entry.Description)
}

func TestTimerService_EntrySpansWholeSession(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = svc.Pause(ctx, 1, resp.ID)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.Resume(ctx, 1, resp.ID)
	require.NoError(t, err)
	clock.Advance(20 * time.Second)
	_, err = svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)

	entry, err := db.entryStore().GetByID(ctx, 1)
	require.NoError(t, err)
	// 记录的起点是会话创建时间，不是最后一个分段的开始时间
	require.True(t, entry.StartTime.Equal(testEpoch))
	require.True(t, entry.EndTime.Equal(clock.Now()))
	require.Equal(t, int64(30), entry.DurationSeconds)
}

func TestTimerService_BillableFromProject(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	db.addProject(&model.Project{ID: 7, OwnerID: 1, Name: "客户项目", Billable: true})
	projectID := int64(7)

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{ProjectID: &projectID})
	require.NoError(t, err)
	require.Equal(t, "客户项目", resp.ProjectName)

	clock.Advance(time.Minute)
	stopped, err := svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)
	require.True(t, stopped.IsBillable, "计费标记应取自项目")
}

func TestTimerService_DanglingProjectNotBillable(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	missing := int64(999)
	resp, err := svc.Start(ctx, 1, &StartTimerRequest{ProjectID: &missing})
	require.NoError(t, err)
	require.Empty(t, resp.ProjectName, "悬空项目的标签应为空")

	clock.Advance(time.Minute)
	stopped, err := svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)
	require.False(t, stopped.IsBillable)
}

func TestTimerService_WrongStateTransitions(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)
	id := resp.ID

	// 计时中不能恢复
	_, err = svc.Resume(ctx, 1, id)
	require.ErrorIs(t, err, ErrNotPaused)

	clock.Advance(time.Second)
	_, err = svc.Pause(ctx, 1, id)
	require.NoError(t, err)

	// 暂停中不能再暂停
	_, err = svc.Pause(ctx, 1, id)
	require.ErrorIs(t, err, ErrNotRunning)

	_, err = svc.Stop(ctx, 1, id, nil)
	require.NoError(t, err)

	// 已终结的会话拒绝一切迁移
	_, err = svc.Pause(ctx, 1, id)
	require.ErrorIs(t, err, ErrNotRunning)
	_, err = svc.Resume(ctx, 1, id)
	require.ErrorIs(t, err, ErrNotPaused)
	_, err = svc.Stop(ctx, 1, id, nil)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestTimerService_OwnershipAlwaysChecked(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)
	id := resp.ID

	// 非所有者对任何状态的会话都只能得到权限错误
	_, err = svc.Pause(ctx, 2, id)
	require.ErrorIs(t, err, ErrNoPermission)
	_, err = svc.Resume(ctx, 2, id)
	require.ErrorIs(t, err, ErrNoPermission)
	_, err = svc.Stop(ctx, 2, id, nil)
	require.ErrorIs(t, err, ErrNoPermission)

	clock.Advance(time.Second)
	_, err = svc.Stop(ctx, 1, id, nil)
	require.NoError(t, err)

	// 终结后依然是权限错误，不泄露状态
	_, err = svc.Stop(ctx, 2, id, nil)
	require.ErrorIs(t, err, ErrNoPermission)
}

func TestTimerService_SessionNotFound(t *testing.T) {
	svc, _, _ := setupTimerService(t)
	ctx := context.Background()

	_, err := svc.Pause(ctx, 1, 12345)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Stop(ctx, 1, 12345, nil)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTimerService_GetActiveAfterStop(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	active, err := svc.GetActive(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, resp.ID, active.ID)

	clock.Advance(time.Minute)
	_, err = svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)

	active, err = svc.GetActive(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, active, "终结后不应再有活跃会话")
}

func TestTimerService_NotifierReceivesEvents(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = svc.Pause(ctx, 1, resp.ID)
	require.NoError(t, err)
	_, err = svc.Resume(ctx, 1, resp.ID)
	require.NoError(t, err)
	_, err = svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)

	require.Equal(t, []string{
		EventTimerStarted,
		EventTimerPaused,
		EventTimerResumed,
		EventTimerStopped,
	}, notifier.Events())
}

func TestTimerService_ReapClosesStaleRunningSession(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{Description: "忘记停了"})
	require.NoError(t, err)

	// 25 小时后回收器扫描，阈值 24 小时
	clock.Advance(25 * time.Hour)
	closed, err := svc.Reap(ctx, clock.Now(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, []int64{resp.ID}, closed)

	session, err := db.sessionStore().GetByID(ctx, resp.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusAutoStopped, session.Status)

	entry, err := db.entryStore().GetByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, entry.AutoStopped, "回收生成的记录应带标记")
	require.Equal(t, int64(25*3600), entry.DurationSeconds)

	// 用户可以立即开始新计时
	_, err = svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)
}

func TestTimerService_ReapStalePausedUsesPauseTime(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = svc.Pause(ctx, 1, resp.ID)
	require.NoError(t, err)

	// 暂停后 12 小时还不到阈值
	clock.Advance(12 * time.Hour)
	closed, err := svc.Reap(ctx, clock.Now(), 24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, closed)

	// 暂停满 24 小时后入选
	clock.Advance(13 * time.Hour)
	closed, err = svc.Reap(ctx, clock.Now(), 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, []int64{resp.ID}, closed)

	// 暂停中的会话不结算新分段，只有第一个分段的 1 小时
	entry, err := db.entryStore().GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3600), entry.DurationSeconds)
}

func TestTimerService_ReapIsIdempotent(t *testing.T) {
	svc, db, clock := setupTimerService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)

	closed, err := svc.Reap(ctx, clock.Now(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, closed, 1)

	// 第二轮扫描不应关闭任何会话、不应产生第二条记录
	closed, err = svc.Reap(ctx, clock.Now(), 24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, closed)
	require.Equal(t, 1, db.entryCount())
}

func TestTimerService_ClockRollbackClampsToZero(t *testing.T) {
	svc, _, clock := setupTimerService(t)
	ctx := context.Background()

	resp, err := svc.Start(ctx, 1, &StartTimerRequest{})
	require.NoError(t, err)

	// 时钟回拨：分段时长截断为 0 而不是负数
	clock.Advance(-time.Minute)
	stopped, err := svc.Stop(ctx, 1, resp.ID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), stopped.DurationSeconds)
}
