package repo

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/taskpilot/service-api-go/internal/task/entity"
)

const taskColumns = `id, user_id, title, description, status, priority, category, tags,
	total_time, is_tracking, created_at, updated_at, completed_at`

// TaskRepo provides data access for the tasks table using sqlx. Dynamic
// partial updates are built with squirrel so a patch can name any subset
// of columns.
type TaskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) *TaskRepo { return &TaskRepo{db: db} }

// EnsureTable creates the tasks table if not exists (idempotent).
func (r *TaskRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
  id VARCHAR(27) PRIMARY KEY,
  user_id VARCHAR(27) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  title VARCHAR(255) NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'todo',
  priority TEXT NOT NULL DEFAULT 'medium',
  category TEXT NOT NULL DEFAULT 'general',
  tags TEXT[] NOT NULL DEFAULT '{}',
  total_time BIGINT NOT NULL DEFAULT 0,
  is_tracking BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_user_tracking ON tasks(user_id) WHERE is_tracking;
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a task and fills in the db-assigned timestamps.
func (r *TaskRepo) Create(ctx context.Context, t *entity.Task) error {
	const q = `INSERT INTO tasks
		(id, user_id, title, description, status, priority, category, tags, total_time, is_tracking)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`
	return r.db.QueryRowxContext(ctx, q,
		t.ID, t.UserID, t.Title, t.Description, t.Status, t.Priority,
		t.Category, t.Tags, t.TotalTime, t.IsTracking,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

// ListByUser returns all of a user's tasks, newest first.
func (r *TaskRepo) ListByUser(ctx context.Context, userID string) ([]entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id=$1 ORDER BY created_at DESC`
	tasks := []entity.Task{}
	if err := r.db.SelectContext(ctx, &tasks, q, userID); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetByID fetches one task scoped to its owner, or sql.ErrNoRows.
func (r *TaskRepo) GetByID(ctx context.Context, id, userID string) (*entity.Task, error) {
	const q = `SELECT ` + taskColumns + ` FROM tasks WHERE id=$1 AND user_id=$2`
	var row entity.Task
	if err := r.db.GetContext(ctx, &row, q, id, userID); err != nil {
		return nil, err
	}
	return &row, nil
}

// Update applies a partial patch scoped to the owner and returns the
// updated row, or sql.ErrNoRows when the task is absent or foreign.
// updated_at is stamped on every call.
func (r *TaskRepo) Update(ctx context.Context, id, userID string, patch entity.TaskPatch) (*entity.Task, error) {
	b := sq.Update("tasks").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING " + taskColumns).
		PlaceholderFormat(sq.Dollar)

	if patch.Title != nil {
		b = b.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		b = b.Set("description", *patch.Description)
	}
	if patch.Status != nil {
		b = b.Set("status", *patch.Status)
	}
	if patch.Priority != nil {
		b = b.Set("priority", *patch.Priority)
	}
	if patch.Category != nil {
		b = b.Set("category", *patch.Category)
	}
	if patch.Tags != nil {
		b = b.Set("tags", pq.Array(*patch.Tags))
	}
	if patch.TotalTime != nil {
		b = b.Set("total_time", *patch.TotalTime)
	}
	if patch.IsTracking != nil {
		b = b.Set("is_tracking", *patch.IsTracking)
	}
	switch {
	case patch.ClearCompletedAt:
		b = b.Set("completed_at", nil)
	case patch.CompletedAt != nil:
		b = b.Set("completed_at", *patch.CompletedAt)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var row entity.Task
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes a task scoped to its owner and reports whether a row went
// away.
func (r *TaskRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	const q = `DELETE FROM tasks WHERE id=$1 AND user_id=$2`
	res, err := r.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StopAllTracking clears the tracking flag on every task the user owns.
func (r *TaskRepo) StopAllTracking(ctx context.Context, userID string) error {
	const q = `UPDATE tasks SET is_tracking=false, updated_at=NOW()
		WHERE user_id=$1 AND is_tracking=true`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}

// StartExclusive makes the named task the user's only tracking task in a
// single transaction, so concurrent starts cannot leave two timers running.
// Returns the updated task or sql.ErrNoRows when it is absent or foreign.
func (r *TaskRepo) StartExclusive(ctx context.Context, id, userID string) (*entity.Task, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const stopOthers = `UPDATE tasks SET is_tracking=false, updated_at=NOW()
		WHERE user_id=$1 AND is_tracking=true AND id <> $2`
	if _, err := tx.ExecContext(ctx, stopOthers, userID, id); err != nil {
		return nil, err
	}

	const startOne = `UPDATE tasks SET is_tracking=true, status=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING ` + taskColumns
	var row entity.Task
	if err := tx.GetContext(ctx, &row, startOne, id, userID, entity.StatusInProgress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// absent task must not strip tracking from the others
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &row, nil
}
