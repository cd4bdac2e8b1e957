package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"todo-api/internal/model"
	"todo-api/pkg/apperr"
)

// TaskService is what the handlers need from the task service.
type TaskService interface {
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	DueSoon(ctx context.Context) ([]model.Task, error)
	Get(ctx context.Context, id int64) (*model.Task, error)
	Create(ctx context.Context, in model.CreateTaskInput) (*model.Task, error)
	Update(ctx context.Context, id int64, in model.UpdateTaskInput) (*model.Task, error)
	Delete(ctx context.Context, id int64) error
}

// TaskHandler serves /tasks. Failures are handed to the error middleware
// with c.Error; no handler writes an error body itself.
type TaskHandler struct {
	svc    TaskService
	logger *zap.Logger
}

func NewTaskHandler(svc TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

// ListTasks handles GET /tasks?completed=&due_soon=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var filter model.TaskFilter

	if raw := c.Query("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperr.Validation("Invalid completed filter"))
			return
		}
		filter.Completed = &v
	}
	if raw := c.Query("due_soon"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperr.Validation("Invalid due_soon filter"))
			return
		}
		filter.DueSoon = v
	}

	tasks, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// DueSoon handles GET /tasks/due-soon
func (h *TaskHandler) DueSoon(c *gin.Context) {
	tasks, err := h.svc.DueSoon(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	t, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in model.CreateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Debug("CreateTask: invalid body", zap.Error(err))
		_ = c.Error(apperr.Validation("Invalid request body"))
		return
	}

	t, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var in model.UpdateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Debug("UpdateTask: invalid body", zap.Int64("task_id", id), zap.Error(err))
		_ = c.Error(apperr.Validation("Invalid request body"))
		return
	}

	t, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Task deleted successfully",
		"id":      id,
	})
}

// taskID parses the :id path parameter, recording a validation error when
// it is not a positive integer.
func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperr.Validation("Invalid task ID"))
		return 0, false
	}
	return id, true
}
