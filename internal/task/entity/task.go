package entity

import (
	"time"

	"github.com/lib/pq"
)

// Status is the task workflow state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority is the task urgency level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// DefaultCategory labels tasks created without an explicit category.
const DefaultCategory = "general"

// Task is a row in the `tasks` table. TotalTime is cumulative tracked
// whole seconds; IsTracking means the timer is currently running — at most
// one task per user may have it set.
type Task struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Status      Status         `db:"status" json:"status"`
	Priority    Priority       `db:"priority" json:"priority"`
	Category    string         `db:"category" json:"category"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	TotalTime   int64          `db:"total_time" json:"total_time"`
	IsTracking  bool           `db:"is_tracking" json:"is_tracking"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// TaskPatch is a partial update: nil fields are left untouched.
// ClearCompletedAt writes NULL regardless of CompletedAt.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Category    *string
	Tags        *[]string
	TotalTime   *int64
	IsTracking  *bool
	CompletedAt *time.Time

	ClearCompletedAt bool
}

// Empty reports whether the patch names no field at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Category == nil && p.Tags == nil &&
		p.TotalTime == nil && p.IsTracking == nil && p.CompletedAt == nil &&
		!p.ClearCompletedAt
}
