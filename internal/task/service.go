package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskpilot/service-api-go/internal/task/entity"
	taskrepo "github.com/taskpilot/service-api-go/internal/task/repo"
	"github.com/taskpilot/service-api-go/internal/validate"
	"github.com/taskpilot/service-api-go/pkg/utilities"
)

var ErrNotFound = errors.New("task not found")

const (
	maxTitleLen       = 255
	maxDescriptionLen = 1000
	maxCategoryLen    = 100
)

// CreateInput carries the caller-supplied fields for a new task. Zero
// values fall back to the documented defaults.
type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	Category    string
	Tags        []string
}

// TaskService enforces the task lifecycle rules: field validation,
// completion stamping and the single-active-timer invariant.
type TaskService struct {
	repo *taskrepo.TaskRepo
	now  func() time.Time
}

func NewTaskService(db *sqlx.DB, r *taskrepo.TaskRepo) *TaskService {
	if r == nil {
		r = taskrepo.NewTaskRepo(db)
	}
	return &TaskService{repo: r, now: time.Now}
}

// Create validates input, applies defaults and persists the task.
func (s *TaskService) Create(ctx context.Context, ownerID string, in CreateInput) (*entity.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	var v validate.Errors
	if in.Title == "" {
		v.Add("title", "Task title is required")
	} else if utf8.RuneCountInString(in.Title) > maxTitleLen {
		v.Add("title", fmt.Sprintf("Title must not exceed %d characters", maxTitleLen))
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		v.Add("description", fmt.Sprintf("Description must not exceed %d characters", maxDescriptionLen))
	}
	if utf8.RuneCountInString(in.Category) > maxCategoryLen {
		v.Add("category", fmt.Sprintf("Category must not exceed %d characters", maxCategoryLen))
	}

	status := entity.StatusTodo
	if in.Status != "" {
		status = entity.Status(in.Status)
		if !status.Valid() {
			v.Add("status", "Status must be one of: todo, in-progress, completed")
		}
	}
	priority := entity.PriorityMedium
	if in.Priority != "" {
		priority = entity.Priority(in.Priority)
		if !priority.Valid() {
			v.Add("priority", "Priority must be one of: low, medium, high")
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	category := in.Category
	if category == "" {
		category = entity.DefaultCategory
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	t := &entity.Task{
		ID:          utilities.NewKSUID(),
		UserID:      ownerID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		Category:    category,
		Tags:        pq.StringArray(tags),
	}
	if status == entity.StatusCompleted {
		now := s.now()
		t.CompletedAt = &now
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns the owner's tasks, newest first.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]entity.Task, error) {
	return s.repo.ListByUser(ctx, ownerID)
}

// Get returns one task scoped to its owner.
func (s *TaskService) Get(ctx context.Context, id, ownerID string) (*entity.Task, error) {
	t, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Update applies a partial patch. A transition to completed without an
// explicit completion time stamps now; a transition away from completed
// clears it. Setting tracking=true first clears tracking on the owner's
// other tasks so at most one timer runs.
func (s *TaskService) Update(ctx context.Context, id, ownerID string, patch entity.TaskPatch) (*entity.Task, error) {
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}
	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if *patch.Status == entity.StatusCompleted {
			if patch.CompletedAt == nil {
				now := s.now()
				patch.CompletedAt = &now
			}
		} else {
			patch.CompletedAt = nil
			patch.ClearCompletedAt = true
		}
	}

	if patch.IsTracking != nil && *patch.IsTracking {
		if err := s.repo.StopAllTracking(ctx, ownerID); err != nil {
			return nil, err
		}
	}

	t, err := s.repo.Update(ctx, id, ownerID, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// Delete removes the task when the caller owns it.
func (s *TaskService) Delete(ctx context.Context, id, ownerID string) error {
	removed, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// StartTimer makes the task the owner's only tracking task and moves it to
// in-progress.
func (s *TaskService) StartTimer(ctx context.Context, id, ownerID string) (*entity.Task, error) {
	t, err := s.repo.StartExclusive(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// StopTimer clears the tracking flag on the named task only. Stopping an
// already-stopped task is a no-op that still succeeds.
func (s *TaskService) StopTimer(ctx context.Context, id, ownerID string) (*entity.Task, error) {
	tracking := false
	t, err := s.repo.Update(ctx, id, ownerID, entity.TaskPatch{IsTracking: &tracking})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TaskService) validatePatch(patch entity.TaskPatch) error {
	var v validate.Errors
	if patch.Title != nil {
		if *patch.Title == "" {
			v.Add("title", "Task title cannot be empty")
		} else if utf8.RuneCountInString(*patch.Title) > maxTitleLen {
			v.Add("title", fmt.Sprintf("Title must not exceed %d characters", maxTitleLen))
		}
	}
	if patch.Description != nil && utf8.RuneCountInString(*patch.Description) > maxDescriptionLen {
		v.Add("description", fmt.Sprintf("Description must not exceed %d characters", maxDescriptionLen))
	}
	if patch.Category != nil && utf8.RuneCountInString(*patch.Category) > maxCategoryLen {
		v.Add("category", fmt.Sprintf("Category must not exceed %d characters", maxCategoryLen))
	}
	if patch.Status != nil && !patch.Status.Valid() {
		v.Add("status", "Status must be one of: todo, in-progress, completed")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		v.Add("priority", "Priority must be one of: low, medium, high")
	}
	if patch.TotalTime != nil && *patch.TotalTime < 0 {
		v.Add("total_time", "Total time must be a positive integer")
	}
	return v.Err()
}
