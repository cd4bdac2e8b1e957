package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	contractsmq "todo-api/contracts/mq"
	"todo-api/internal/model"
	"todo-api/pkg/apperr"
	"todo-api/pkg/logger"
	"todo-api/pkg/metrics"
	"todo-api/pkg/mq"
)

// Repository is the storage the service needs.
type Repository interface {
	List(ctx context.Context, completed *bool) ([]model.Task, error)
	ListDueCandidates(ctx context.Context) ([]model.Task, error)
	GetByID(ctx context.Context, id int64) (*model.Task, bool, error)
	Insert(ctx context.Context, t *model.Task) (int64, error)
	Update(ctx context.Context, id int64, in model.UpdateTaskInput, now time.Time) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Service implements the task operations: validation, not-found detection,
// the due-soon filter and lifecycle events.
type Service struct {
	repo      Repository
	publisher mq.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
	// loc decides which calendar day a date-only due date falls on.
	loc *time.Location
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone due dates without an offset are read in.
// The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(repo Repository, publisher mq.EventPublisher, logger *zap.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	s := &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	if filter.DueSoon {
		tasks, err := s.DueSoon(ctx)
		if err != nil || filter.Completed == nil {
			return tasks, err
		}
		// due-soon tasks are never completed
		if *filter.Completed {
			return []model.Task{}, nil
		}
		return tasks, nil
	}
	return s.repo.List(ctx, filter.Completed)
}

// DueSoon returns the incomplete tasks due within DueSoonWindow from now,
// earliest first.
func (s *Service) DueSoon(ctx context.Context) ([]model.Task, error) {
	candidates, err := s.repo.ListDueCandidates(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	type dueTask struct {
		task model.Task
		due  time.Time
	}
	var matched []dueTask
	for _, t := range candidates {
		due, dateOnlyValue, ok := parseDueDate(*t.DueDate, s.loc)
		if !ok {
			logger.WithTrace(ctx, s.logger).Debug("Skipping task with unparseable due date",
				zap.Int64("task_id", t.ID),
				zap.String("due_date", *t.DueDate),
			)
			continue
		}
		if dueWithin(due, dateOnlyValue, now, DueSoonWindow, s.loc) {
			matched = append(matched, dueTask{task: t, due: due})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].due.Before(matched[j].due)
	})

	tasks := make([]model.Task, 0, len(matched))
	for _, m := range matched {
		tasks = append(tasks, m.task)
	}
	return tasks, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Task, error) {
	t, found, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound("Task not found")
	}
	return t, nil
}

func (s *Service) Create(ctx context.Context, in model.CreateTaskInput) (t *model.Task, err error) {
	defer func() { metrics.IncrementTaskOperation("create", err) }()

	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, apperr.Validation("Title is required")
	}
	dueDate, err := normalizeDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &model.Task{
		Title:       *in.Title,
		Description: in.Description,
		DueDate:     dueDate,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := s.repo.Insert(ctx, task)
	if err != nil {
		return nil, err
	}

	created, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading created task %d: %w", id, err)
	}

	s.publish(ctx, contractsmq.RoutingKeyTaskCreated, created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, in model.UpdateTaskInput) (t *model.Task, err error) {
	defer func() { metrics.IncrementTaskOperation("update", err) }()

	if in.Empty() {
		return nil, apperr.Validation("No fields to update")
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperr.Validation("Title cannot be empty")
	}
	if in.DueDate != nil {
		due, err := normalizeDueDate(in.DueDate)
		if err != nil {
			return nil, err
		}
		// blank clears the due date
		if due == nil {
			due = new(string)
		}
		in.DueDate = due
	}

	matched, err := s.repo.Update(ctx, id, in, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, apperr.NotFound("Task not found")
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, contractsmq.RoutingKeyTaskUpdated, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer func() { metrics.IncrementTaskOperation("delete", err) }()

	matched, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !matched {
		return apperr.NotFound("Task not found")
	}

	s.publish(ctx, contractsmq.RoutingKeyTaskDeleted, &model.Task{ID: id})
	return nil
}

// publish never fails the request: the row is already written.
func (s *Service) publish(ctx context.Context, routingKey string, t *model.Task) {
	payload := contractsmq.TaskEventPayload{
		TaskID:     t.ID,
		Title:      t.Title,
		Completed:  t.Completed,
		DueDate:    t.DueDate,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish task event",
			zap.String("routing_key", routingKey),
			zap.Int64("task_id", t.ID),
			zap.Error(err),
		)
	}
}

// normalizeDueDate validates a due date. Blank means "no due date".
func normalizeDueDate(in *string) (*string, error) {
	if in == nil || strings.TrimSpace(*in) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*in)
	if _, _, ok := parseDueDate(v, time.UTC); !ok {
		return nil, apperr.Validation("Invalid due_date, expected YYYY-MM-DD or an RFC 3339 timestamp")
	}
	return &v, nil
}
