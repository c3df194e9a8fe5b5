package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhive/internal/auth"
	"taskhive/internal/ids"
)

// Status is the task workflow state.
type Status int16

const (
	StatusOpening Status = iota + 1
	StatusProgressing
	StatusTesting
	StatusDone
	StatusRejected
)

func (s Status) Valid() bool {
	return s >= StatusOpening && s <= StatusRejected
}

var (
	ErrNotFound     = errors.New("todo: not found")
	ErrInvalidInput = errors.New("todo: invalid input")
)

// Task is a single todo item.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Update carries optional field changes.
type Update struct {
	Title       *string
	Description *string
	Status      *Status
}

// PageFilter clamps pagination input. Zero values page from the start.
type PageFilter struct {
	Number int
	Size   int
}

func (f PageFilter) Clamped() PageFilter {
	if f.Number < 1 {
		f.Number = 1
	}
	if f.Size < 1 || f.Size > 100 {
		f.Size = 10
	}
	return f
}

func (f PageFilter) Limit() int  { return f.Size }
func (f PageFilter) Offset() int { return (f.Number - 1) * f.Size }

// Page is one page of tasks plus the total count for the caller's paging UI.
type Page struct {
	Items        []*Task
	PageNumber   int
	PageSize     int
	TotalRecords int
}

// Store is the persistence seam for tasks.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, limit, offset int) ([]*Task, int, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
}

// Service implements task operations. Authorization has already happened at
// the boundary; the acting principal is threaded in explicitly for audit
// fields, never pulled from ambient state.
type Service struct {
	logger *slog.Logger
	store  Store
	now    func() time.Time
}

func NewService(logger *slog.Logger, store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("todo store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, store: store, now: time.Now}, nil
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

func (s *Service) Create(ctx context.Context, actor auth.Principal, title, description string) (*Task, error) {
	const op = "todo.Service.Create"

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%s: %w: title is required", op, ErrInvalidInput)
	}
	now := s.now().UTC()
	task := &Task{
		ID:          ids.New(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      StatusOpening,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("task created",
		slog.String("op", op),
		slog.String("taskID", task.ID),
		slog.String("actorID", actor.UserID),
	)
	return task, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	const op = "todo.Service.Get"
	task, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, filter PageFilter) (*Page, error) {
	const op = "todo.Service.List"

	filter = filter.Clamped()
	items, total, err := s.store.List(ctx, filter.Limit(), filter.Offset())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Page{
		Items:        items,
		PageNumber:   filter.Number,
		PageSize:     filter.Size,
		TotalRecords: total,
	}, nil
}

func (s *Service) Apply(ctx context.Context, actor auth.Principal, id string, upd Update) (*Task, error) {
	const op = "todo.Service.Apply"

	task, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, fmt.Errorf("%s: %w: title is required", op, ErrInvalidInput)
		}
		task.Title = title
	}
	if upd.Description != nil {
		task.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("%s: %w: unknown status %d", op, ErrInvalidInput, *upd.Status)
		}
		task.Status = *upd.Status
	}
	task.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("task updated",
		slog.String("op", op),
		slog.String("taskID", task.ID),
		slog.String("actorID", actor.UserID),
	)
	return task, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	const op = "todo.Service.Delete"

	if _, err := s.store.Find(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("task deleted",
		slog.String("op", op),
		slog.String("taskID", id),
		slog.String("actorID", actor.UserID),
	)
	return nil
}
