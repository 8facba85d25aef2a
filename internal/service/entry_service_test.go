package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/util"
)

func setupEntryService(t *testing.T) (*EntryService, *memDB) {
	t.Helper()
	db := newMemDB()
	return NewEntryService(db.entryStore(), db.directory()), db
}

func TestEntryService_CreateManualEntry(t *testing.T) {
	svc, _ := setupEntryService(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour + time.Minute + time.Second)

	view, err := svc.CreateEntry(ctx, 1, &CreateEntryRequest{
		Description: "补录昨天的评审",
		Category:    model.CategoryMeeting,
		StartTime:   start,
		EndTime:     end,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3661), view.DurationSeconds, "省略时长时按 end - start 计算")
	require.Equal(t, "01:01:01", view.FormattedDuration)
	require.Nil(t, view.SessionID, "手工补录不关联会话")
	require.False(t, view.AutoStopped)
}

func TestEntryService_CreateExplicitDuration(t *testing.T) {
	svc, _ := setupEntryService(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	explicit := int64(1800)

	view, err := svc.CreateEntry(ctx, 1, &CreateEntryRequest{
		Description:     "只算一半的时间",
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationSeconds: &explicit,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1800), view.DurationSeconds, "显式时长优先于起止时间")
}

func TestEntryService_CreateValidation(t *testing.T) {
	svc, _ := setupEntryService(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  *CreateEntryRequest
	}{
		{"空描述", &CreateEntryRequest{StartTime: start, EndTime: start.Add(time.Hour)}},
		{"未知分类", &CreateEntryRequest{Description: "x", Category: "vacation", StartTime: start, EndTime: start.Add(time.Hour)}},
		{"缺少时间", &CreateEntryRequest{Description: "x"}},
		{"结束早于开始", &CreateEntryRequest{Description: "x", StartTime: start, EndTime: start.Add(-time.Hour)}},
		{"零时长", &CreateEntryRequest{Description: "x", StartTime: start, EndTime: start}},
		{"负的显式时长", &CreateEntryRequest{Description: "x", StartTime: start, EndTime: start.Add(time.Hour), DurationSeconds: util.Int64Ptr(-1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEntry(ctx, 1, tc.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestEntryService_BillableDefaultsFromProject(t *testing.T) {
	svc, db := setupEntryService(t)
	ctx := context.Background()

	db.addProject(&model.Project{ID: 3, OwnerID: 1, Name: "计费项目", Billable: true})
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	projectID := int64(3)

	view, err := svc.CreateEntry(ctx, 1, &CreateEntryRequest{
		ProjectID:   &projectID,
		Description: "客户支持",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, view.IsBillable, "未显式指定时取项目的计费标记")

	// 显式指定时覆盖项目标记
	view, err = svc.CreateEntry(ctx, 1, &CreateEntryRequest{
		ProjectID:   &projectID,
		Description: "内部讨论",
		StartTime:   start.Add(2 * time.Hour),
		EndTime:     start.Add(3 * time.Hour),
		IsBillable:  util.BoolPtr(false),
	})
	require.NoError(t, err)
	require.False(t, view.IsBillable)
}

func TestEntryService_UpdateRecomputesDurationOnTimeEdit(t *testing.T) {
	svc, _ := setupEntryService(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	view, err := svc.CreateEntry(ctx, 1, &CreateEntryRequest{
		Description: "原始记录",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
	})
	require.NoError(t, err)

	// 只改描述：时长不变
	updated, err := svc.UpdateEntry(ctx, 1, view.ID, &UpdateEntryRequest{
		Description: util.StringPtr("改了描述"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(3600), updated.DurationSeconds)

	// 修正结束时间：时长重算
	newEnd := start.Add(2 * time.Hour)
	updated, err = svc.UpdateEntry(ctx, 1, view.ID, &UpdateEntryRequest{
		EndTime: &newEnd,
	})
	require.NoError(t, err)
	require.Equal(t, int64(7200), updated.DurationSeconds)

	// 修正后的区间不合法则拒绝
	badEnd := start.Add(-time.Hour)
	_, err = svc.UpdateEntry(ctx, 1, view.ID, &UpdateEntryRequest{
		EndTime: &badEnd,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEntryService_OwnerOnlyAccess(t *testing.T) {
	svc, _ := setupEntryService(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	view, err := svc.CreateEntry(ctx, 1, &CreateEntryRequest{
		Description: "私有记录",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.GetEntry(ctx, 2, view.ID)
	require.ErrorIs(t, err, ErrNoPermission)
	_, err = svc.UpdateEntry(ctx, 2, view.ID, &UpdateEntryRequest{Description: util.StringPtr("篡改")})
	require.ErrorIs(t, err, ErrNoPermission)
	err = svc.DeleteEntry(ctx, 2, view.ID)
	require.ErrorIs(t, err, ErrNoPermission)

	// 所有者可以删除
	err = svc.DeleteEntry(ctx, 1, view.ID)
	require.NoError(t, err)
	_, err = svc.GetEntry(ctx, 1, view.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEntryService_ListFiltersAndPaginates(t *testing.T) {
	svc, _ := setupEntryService(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		category := model.CategoryWork
		if i%2 == 1 {
			category = model.CategoryMeeting
		}
		_, err := svc.CreateEntry(ctx, 1, &CreateEntryRequest{
			Description: "记录",
			Category:    category,
			StartTime:   base.AddDate(0, 0, i),
			EndTime:     base.AddDate(0, 0, i).Add(time.Hour),
		})
		require.NoError(t, err)
	}
	// 别人的记录不可见
	_, err := svc.CreateEntry(ctx, 2, &CreateEntryRequest{
		Description: "别人的",
		StartTime:   base,
		EndTime:     base.Add(time.Hour),
	})
	require.NoError(t, err)

	views, total, err := svc.ListEntries(ctx, 1, &ListEntriesRequest{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.Len(t, views, 2)
	// 按开始时间倒序
	require.True(t, views[0].StartTime > views[1].StartTime)

	// 按分类过滤
	views, total, err = svc.ListEntries(ctx, 1, &ListEntriesRequest{Category: model.CategoryMeeting})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	// 时间范围 [From, To)
	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 3)
	_, total, err = svc.ListEntries(ctx, 1, &ListEntriesRequest{From: &from, To: &to})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	// 未知分类在边界拒绝
	_, _, err = svc.ListEntries(ctx, 1, &ListEntriesRequest{Category: "vacation"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
