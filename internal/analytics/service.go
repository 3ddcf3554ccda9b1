package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/taskpilot/service-api-go/internal/task/entity"
	taskrepo "github.com/taskpilot/service-api-go/internal/task/repo"
)

// TaskLister is the slice of the task repo the aggregator needs.
type TaskLister interface {
	ListByUser(ctx context.Context, userID string) ([]entity.Task, error)
}

// Summary is the dashboard headline view. Time windows key on a task's
// updated_at; completion windows key on completed_at.
type Summary struct {
	TimeToday          int64   `json:"time_today"`
	TimeThisWeek       int64   `json:"time_this_week"`
	CompletedToday     int     `json:"completed_today"`
	CompletedThisWeek  int     `json:"completed_this_week"`
	TotalTasks         int     `json:"total_tasks"`
	TotalCompleted     int     `json:"total_completed"`
	AverageTimePerTask float64 `json:"average_time_per_task"`
}

// CategoryStat is one slice of the time-by-category distribution.
type CategoryStat struct {
	Category    string `json:"category"`
	Time        int64  `json:"time"`
	TimeMinutes int64  `json:"time_minutes"`
}

// DailyStat is one calendar day of the 7-day progress series.
type DailyStat struct {
	Date        string `json:"date"`
	Completed   int    `json:"completed"`
	TimeMinutes int64  `json:"time_minutes"`
}

// Service derives all analytics views from the full task list at call
// time; it holds no state of its own.
type Service struct {
	tasks TaskLister
	clock clockwork.Clock
}

func NewService(db *sqlx.DB, tasks TaskLister, clock clockwork.Clock) *Service {
	if tasks == nil {
		tasks = taskrepo.NewTaskRepo(db)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{tasks: tasks, clock: clock}
}

// Summary computes the headline aggregates. An empty task list yields an
// all-zero summary.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	dayStart := startOfDay(now)
	weekStart := now.Add(-7 * 24 * time.Hour)

	var out Summary
	out.TotalTasks = len(tasks)
	var totalTime int64
	for _, t := range tasks {
		totalTime += t.TotalTime
		if inWindow(t.UpdatedAt, dayStart, now) {
			out.TimeToday += t.TotalTime
		}
		if inWindow(t.UpdatedAt, weekStart, now) {
			out.TimeThisWeek += t.TotalTime
		}
		if t.Status == entity.StatusCompleted {
			out.TotalCompleted++
			if t.CompletedAt != nil {
				if inWindow(*t.CompletedAt, dayStart, now) {
					out.CompletedToday++
				}
				if inWindow(*t.CompletedAt, weekStart, now) {
					out.CompletedThisWeek++
				}
			}
		}
	}
	if len(tasks) > 0 {
		out.AverageTimePerTask = math.Round(float64(totalTime)/float64(len(tasks))*100) / 100
	}
	return &out, nil
}

// CategoryDistribution groups tracked time by category label, largest
// first.
func (s *Service) CategoryDistribution(ctx context.Context, userID string) ([]CategoryStat, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byCategory := map[string]int64{}
	for _, t := range tasks {
		byCategory[t.Category] += t.TotalTime
	}
	out := make([]CategoryStat, 0, len(byCategory))
	for category, seconds := range byCategory {
		out = append(out, CategoryStat{
			Category:    category,
			Time:        seconds,
			TimeMinutes: roundMinutes(seconds),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time > out[j].Time
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// DailyProgress covers the 7 calendar days ending today. Per day:
// completed count for tasks whose completed_at falls in the day's
// [00:00, 24:00) window, and minutes of total_time for tasks whose
// updated_at falls in it. A timestamp exactly at midnight belongs to the
// day it opens.
func (s *Service) DailyProgress(ctx context.Context, userID string) ([]DailyStat, error) {
	tasks, err := s.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := startOfDay(s.clock.Now())
	out := make([]DailyStat, 0, 7)
	for i := 6; i >= 0; i-- {
		dayStart := today.AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)

		var stat DailyStat
		stat.Date = dayStart.Format("2006-01-02")
		var seconds int64
		for _, t := range tasks {
			if t.Status == entity.StatusCompleted && t.CompletedAt != nil &&
				inWindow(*t.CompletedAt, dayStart, dayEnd) {
				stat.Completed++
			}
			if inWindow(t.UpdatedAt, dayStart, dayEnd) {
				seconds += t.TotalTime
			}
		}
		stat.TimeMinutes = roundMinutes(seconds)
		out = append(out, stat)
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// inWindow is the half-open interval check [start, end).
func inWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}

func roundMinutes(seconds int64) int64 {
	return int64(math.Round(float64(seconds) / 60.0))
}
