package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/service-api-go/internal/task/entity"
)

// noon on a fixed day so "today" windows are unambiguous
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type staticLister []entity.Task

func (s staticLister) ListByUser(_ context.Context, _ string) ([]entity.Task, error) {
	return s, nil
}

func newTestService(tasks []entity.Task) *Service {
	return NewService(nil, staticLister(tasks), clockwork.NewFakeClockAt(testNow))
}

func taskAt(updated time.Time, totalTime int64) entity.Task {
	return entity.Task{
		Status:    entity.StatusTodo,
		Category:  entity.DefaultCategory,
		TotalTime: totalTime,
		UpdatedAt: updated,
	}
}

func completedAt(done time.Time, totalTime int64) entity.Task {
	t := taskAt(done, totalTime)
	t.Status = entity.StatusCompleted
	t.CompletedAt = &done
	return t
}

func TestSummary(t *testing.T) {
	t.Run("time and average over today's tasks", func(t *testing.T) {
		svc := newTestService([]entity.Task{
			taskAt(testNow.Add(-1*time.Hour), 100),
			taskAt(testNow.Add(-2*time.Hour), 200),
			taskAt(testNow.Add(-3*time.Hour), 300),
		})

		s, err := svc.Summary(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(600), s.TimeToday)
		assert.Equal(t, int64(600), s.TimeThisWeek)
		assert.Equal(t, 200.00, s.AverageTimePerTask)
		assert.Equal(t, 3, s.TotalTasks)
	})

	t.Run("yesterday's work counts for the week but not today", func(t *testing.T) {
		svc := newTestService([]entity.Task{
			taskAt(testNow.Add(-26*time.Hour), 500),
			taskAt(testNow.Add(-8*24*time.Hour), 900), // beyond the week window
		})

		s, err := svc.Summary(context.Background(), "u1")
		require.NoError(t, err)
		assert.Zero(t, s.TimeToday)
		assert.Equal(t, int64(500), s.TimeThisWeek)
	})

	t.Run("completion exactly at midnight counts toward that day", func(t *testing.T) {
		midnight := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		svc := newTestService([]entity.Task{completedAt(midnight, 0)})

		s, err := svc.Summary(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, s.CompletedToday)
	})

	t.Run("completion just before midnight belongs to the previous day", func(t *testing.T) {
		justBefore := time.Date(2025, 6, 14, 23, 59, 59, 0, time.UTC)
		svc := newTestService([]entity.Task{completedAt(justBefore, 0)})

		s, err := svc.Summary(context.Background(), "u1")
		require.NoError(t, err)
		assert.Zero(t, s.CompletedToday)
		assert.Equal(t, 1, s.CompletedThisWeek)
	})

	t.Run("empty list is all zeros, not an error", func(t *testing.T) {
		svc := newTestService(nil)

		s, err := svc.Summary(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, &Summary{}, s)
	})
}

func TestCategoryDistribution(t *testing.T) {
	work1 := taskAt(testNow, 60)
	work1.Category = "work"
	work2 := taskAt(testNow, 120)
	work2.Category = "work"
	hobby := taskAt(testNow, 30)
	hobby.Category = "hobby"

	svc := newTestService([]entity.Task{hobby, work1, work2})

	stats, err := svc.CategoryDistribution(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, CategoryStat{Category: "work", Time: 180, TimeMinutes: 3}, stats[0])
	assert.Equal(t, CategoryStat{Category: "hobby", Time: 30, TimeMinutes: 1}, stats[1])
}

func TestCategoryDistributionEmpty(t *testing.T) {
	svc := newTestService(nil)
	stats, err := svc.CategoryDistribution(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestDailyProgress(t *testing.T) {
	twoDaysAgo := testNow.AddDate(0, 0, -2)
	svc := newTestService([]entity.Task{
		completedAt(twoDaysAgo, 300),
		taskAt(testNow, 90),
	})

	days, err := svc.DailyProgress(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, days, 7)

	// series runs oldest to newest and ends today
	assert.Equal(t, "2025-06-09", days[0].Date)
	assert.Equal(t, "2025-06-15", days[6].Date)

	assert.Equal(t, DailyStat{Date: "2025-06-13", Completed: 1, TimeMinutes: 5}, days[4])
	assert.Equal(t, DailyStat{Date: "2025-06-15", Completed: 0, TimeMinutes: 2}, days[6])
	assert.Equal(t, DailyStat{Date: "2025-06-09", Completed: 0, TimeMinutes: 0}, days[0])
}
