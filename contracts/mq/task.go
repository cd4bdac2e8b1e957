package mq

import "time"

// Routing keys for task lifecycle events.
const (
	RoutingKeyTaskCreated = "task.created"
	RoutingKeyTaskUpdated = "task.updated"
	RoutingKeyTaskDeleted = "task.deleted"
)

type TaskEventPayload struct {
	TaskID     int64     `json:"task_id"`
	Title      string    `json:"title,omitempty"`
	Completed  bool      `json:"completed"`
	DueDate    *string   `json:"due_date,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
