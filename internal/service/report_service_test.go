package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/util"
)

func setupReportService(t *testing.T) (*ReportService, *memDB) {
	t.Helper()
	db := newMemDB()
	return NewReportService(db.entryStore()), db
}

// seedEntry 直接写入一条工时记录
func seedEntry(t *testing.T, db *memDB, userID int64, start time.Time, seconds int64, billable bool) {
	t.Helper()
	err := db.entryStore().Create(context.Background(), &model.TimeEntry{
		UserID:          userID,
		Description:     "seed",
		Category:        model.CategoryWork,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(seconds) * time.Second),
		DurationSeconds: seconds,
		IsBillable:      billable,
	})
	require.NoError(t, err)
}

func TestReportService_DayBuckets(t *testing.T) {
	svc, db := setupReportService(t)
	ctx := context.Background()

	day1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	seedEntry(t, db, 1, day1, 1800, true)
	seedEntry(t, db, 1, day1.Add(4*time.Hour), 600, false)
	// 中间空一天，1 月 3 日再来一条
	seedEntry(t, db, 1, day1.AddDate(0, 0, 2), 900, true)

	buckets, err := svc.Report(ctx, &ReportRequest{
		UserID:  util.Int64Ptr(1),
		From:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		GroupBy: repository.GroupByDay,
	})
	require.NoError(t, err)

	// 倒序，且没有记录的 1 月 2 日不出现
	require.Equal(t, []repository.ReportBucket{
		{BucketKey: "2024-01-03", TotalDurationSeconds: 900, BillableDurationSeconds: 900, EntryCount: 1},
		{BucketKey: "2024-01-01", TotalDurationSeconds: 2400, BillableDurationSeconds: 1800, EntryCount: 2},
	}, buckets)
}

func TestReportService_WeekAndMonthBuckets(t *testing.T) {
	svc, db := setupReportService(t)
	ctx := context.Background()

	// 2024-01-01 是周一，ISO 第 1 周；01-08 进入第 2 周
	seedEntry(t, db, 1, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), 3600, false)
	seedEntry(t, db, 1, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), 1800, false)
	seedEntry(t, db, 1, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), 600, false)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	buckets, err := svc.Report(ctx, &ReportRequest{From: from, To: to, GroupBy: repository.GroupByWeek})
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	require.Equal(t, "2024-W05", buckets[0].BucketKey)
	require.Equal(t, "2024-W02", buckets[1].BucketKey)
	require.Equal(t, "2024-W01", buckets[2].BucketKey)

	buckets, err = svc.Report(ctx, &ReportRequest{From: from, To: to, GroupBy: repository.GroupByMonth})
	require.NoError(t, err)
	require.Equal(t, []repository.ReportBucket{
		{BucketKey: "2024-02", TotalDurationSeconds: 600, EntryCount: 1},
		{BucketKey: "2024-01", TotalDurationSeconds: 5400, EntryCount: 2},
	}, buckets)
}

func TestReportService_FiltersByUserAndProject(t *testing.T) {
	svc, db := setupReportService(t)
	ctx := context.Background()

	day := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	seedEntry(t, db, 1, day, 1000, false)
	seedEntry(t, db, 2, day, 2000, false)

	projectID := int64(9)
	err := db.entryStore().Create(ctx, &model.TimeEntry{
		UserID:          1,
		ProjectID:       &projectID,
		Description:     "项目内",
		Category:        model.CategoryWork,
		StartTime:       day,
		EndTime:         day.Add(time.Hour),
		DurationSeconds: 500,
	})
	require.NoError(t, err)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	buckets, err := svc.Report(ctx, &ReportRequest{
		UserID:  util.Int64Ptr(1),
		From:    from,
		To:      to,
		GroupBy: repository.GroupByDay,
	})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, int64(1500), buckets[0].TotalDurationSeconds, "只统计指定用户")

	buckets, err = svc.Report(ctx, &ReportRequest{
		ProjectID: &projectID,
		From:      from,
		To:        to,
		GroupBy:   repository.GroupByDay,
	})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, int64(500), buckets[0].TotalDurationSeconds, "只统计指定项目")
}

func TestReportService_EmptyRangeReturnsEmptySlice(t *testing.T) {
	svc, _ := setupReportService(t)

	buckets, err := svc.Report(context.Background(), &ReportRequest{
		From:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		GroupBy: repository.GroupByDay,
	})
	require.NoError(t, err)
	require.NotNil(t, buckets)
	require.Empty(t, buckets)
}

func TestReportService_Validation(t *testing.T) {
	svc, _ := setupReportService(t)
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var verr *ValidationError

	_, err := svc.Report(ctx, &ReportRequest{From: from, To: from.AddDate(0, 0, 7), GroupBy: "hour"})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Report(ctx, &ReportRequest{GroupBy: repository.GroupByDay})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Report(ctx, &ReportRequest{From: from, To: from.AddDate(0, 0, -1), GroupBy: repository.GroupByDay})
	require.ErrorAs(t, err, &verr)
}
