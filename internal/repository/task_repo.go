package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"todo-api/internal/model"
	"todo-api/pkg/db"
)

const taskColumns = "id, title, description, due_date, completed, created_at, updated_at"

type TaskRepository struct {
	db     *db.DB
	logger *zap.Logger
}

func NewTaskRepository(db *db.DB, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// List returns all tasks ordered by id, optionally restricted by completion.
func (r *TaskRepository) List(ctx context.Context, completed *bool) ([]model.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any
	if completed != nil {
		query += " WHERE completed = ?"
		args = append(args, boolToInt(*completed))
	}
	query += " ORDER BY id ASC"

	tasks := []model.Task{}
	if err := r.db.FetchMany(ctx, &tasks, query, args...); err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	r.logger.Debug("Tasks listed", zap.Int("count", len(tasks)))
	return tasks, nil
}

// ListDueCandidates returns incomplete tasks that carry a due date, ordered
// by the stored due date text.
func (r *TaskRepository) ListDueCandidates(ctx context.Context) ([]model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE completed = 0
        AND due_date IS NOT NULL
        AND due_date <> ''
        ORDER BY due_date ASC, id ASC
    `
	tasks := []model.Task{}
	if err := r.db.FetchMany(ctx, &tasks, query); err != nil {
		r.logger.Error("Failed to query tasks with due dates", zap.Error(err))
		return nil, fmt.Errorf("listing due tasks: %w", err)
	}
	return tasks, nil
}

// GetByID returns the task with id; found is false when there is none.
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (task *model.Task, found bool, err error) {
	var t model.Task
	found, err = r.db.FetchOne(ctx, &t, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to get task", zap.Int64("task_id", id), zap.Error(err))
		return nil, false, fmt.Errorf("getting task %d: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	return &t, true, nil
}

// Insert stores t and returns the id the database assigned to it.
func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) (int64, error) {
	r.logger.Debug("Inserting task", zap.String("title", t.Title))

	res, err := r.db.Execute(ctx, `
        INSERT INTO tasks (title, description, due_date, completed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.DueDate, boolToInt(t.Completed),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert task", zap.Error(err))
		return 0, fmt.Errorf("creating task: %w", err)
	}

	r.logger.Info("Task inserted", zap.Int64("task_id", res.InsertedID))
	return res.InsertedID, nil
}

// Update applies the non-nil fields of in and sets updated_at to now.
// matched is false when no task has the id.
func (r *TaskRepository) Update(
	ctx context.Context,
	id int64,
	in model.UpdateTaskInput,
	now time.Time,
) (matched bool, err error) {
	var sets []string
	var args []any

	if in.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *in.Title)
	}
	if in.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *in.Description)
	}
	if in.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, nullIfEmpty(*in.DueDate))
	}
	if in.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*in.Completed))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := r.db.Execute(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Int64("task_id", id), zap.Error(err))
		return false, fmt.Errorf("updating task %d: %w", id, err)
	}

	r.logger.Info("Task updated",
		zap.Int64("task_id", id),
		zap.Int64("rows_affected", res.RowsAffected),
	)
	return res.RowsAffected > 0, nil
}

// Delete removes the task with id. matched is false when there was none.
func (r *TaskRepository) Delete(ctx context.Context, id int64) (matched bool, err error) {
	res, err := r.db.Execute(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		r.logger.Error("Failed to delete task", zap.Int64("task_id", id), zap.Error(err))
		return false, fmt.Errorf("deleting task %d: %w", id, err)
	}

	r.logger.Info("Task deleted",
		zap.Int64("task_id", id),
		zap.Int64("rows_affected", res.RowsAffected),
	)
	return res.RowsAffected > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
