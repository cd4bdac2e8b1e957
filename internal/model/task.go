package model

import "time"

// Task is a single to-do item.
type Task struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description *string   `json:"description" db:"description"`
	DueDate     *string   `json:"due_date" db:"due_date"`
	Completed   bool      `json:"completed" db:"completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CreateTaskInput is the body accepted by POST /tasks.
type CreateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
}

// UpdateTaskInput is the body accepted by PUT /tasks/:id. A nil field is
// left unchanged.
type UpdateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
	Completed   *bool   `json:"completed"`
}

// Empty reports whether the input changes nothing.
func (in UpdateTaskInput) Empty() bool {
	return in.Title == nil && in.Description == nil && in.DueDate == nil && in.Completed == nil
}

// TaskFilter narrows GET /tasks.
type TaskFilter struct {
	Completed *bool
	DueSoon   bool
}
