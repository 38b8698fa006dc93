package task

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
)

// TaskService defines the task operations. Ownership of the task passed to
// Update and Delete must already have been checked through Get.
type TaskService interface {
	// Create stores a new pending task owned by ownerID.
	Create(ctx context.Context, ownerID string, in domain.NewTask) (*domain.Task, error)
	// Get returns the task when it exists and the scope allows it, domain.ErrNotFound otherwise.
	Get(ctx context.Context, id uint, scope domain.Scope) (*domain.Task, error)
	// Update applies a partial update and derives completed_at from the resulting status.
	Update(ctx context.Context, t *domain.Task, patch domain.Patch) (*domain.Task, error)
	// Delete permanently removes the task.
	Delete(ctx context.Context, t *domain.Task) error
	// List returns one page of the owner's tasks, newest first.
	List(ctx context.Context, q domain.ListQuery) (*domain.Page, error)
	// Stats counts the owner's tasks for every status.
	Stats(ctx context.Context, ownerID string) (domain.StatusCounts, error)
}

// DefaultMaxPageSize is the largest page size List accepts unless configured otherwise.
const DefaultMaxPageSize = 100

// Engine implements TaskService on top of a Repository.
type Engine struct {
	repo        Repository
	now         func() time.Time
	maxPageSize int
}

var _ TaskService = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxPageSize sets the largest accepted page size.
func WithMaxPageSize(size int) EngineOption {
	return func(e *Engine) {
		if size > 0 {
			e.maxPageSize = size
		}
	}
}

// NewEngine creates an Engine over repo.
func NewEngine(repo Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:        repo,
		now:         defaultClock,
		maxPageSize: DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// defaultClock truncates to microseconds, the precision PostgreSQL keeps.
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (e *Engine) Create(ctx context.Context, ownerID string, in domain.NewTask) (*domain.Task, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	title, err := domain.NormalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	priority := domain.PriorityMedium
	if in.Priority != "" {
		if !in.Priority.IsValid() {
			return nil, domain.NewValidationError("priority", "must be one of low, medium, high, urgent")
		}
		priority = in.Priority
	}

	now := e.now()
	t := &domain.Task{
		Title:       title,
		Description: in.Description,
		UserID:      ownerID,
		Status:      domain.StatusPending,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.repo.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) Get(ctx context.Context, id uint, scope domain.Scope) (*domain.Task, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	t, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(t) {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (e *Engine) Update(ctx context.Context, t *domain.Task, patch domain.Patch) (*domain.Task, error) {
	updated := t.Clone()

	if patch.Title.Set {
		if patch.Title.Null {
			return nil, domain.NewValidationError("title", "must not be null")
		}
		title, err := domain.NormalizeTitle(patch.Title.Value)
		if err != nil {
			return nil, err
		}
		updated.Title = title
	}
	if patch.Description.Set {
		updated.Description = patch.Description.Ptr()
	}
	if patch.Priority.Set {
		if patch.Priority.Null || !patch.Priority.Value.IsValid() {
			return nil, domain.NewValidationError("priority", "must be one of low, medium, high, urgent")
		}
		updated.Priority = patch.Priority.Value
	}
	if patch.DueDate.Set {
		updated.DueDate = patch.DueDate.Ptr()
	}

	next := updated.Status
	if patch.Status.Set {
		if patch.Status.Null || !patch.Status.Value.IsValid() {
			return nil, domain.NewValidationError("status", "must be one of pending, in_progress, completed, cancelled")
		}
		next = patch.Status.Value
	}

	now := e.now()
	domain.ApplyStatusTransition(updated, next, now)
	updated.UpdatedAt = now

	if err := e.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (e *Engine) Delete(ctx context.Context, t *domain.Task) error {
	return e.repo.Delete(ctx, t)
}

func (e *Engine) List(ctx context.Context, q domain.ListQuery) (*domain.Page, error) {
	if err := validateOwner(q.OwnerID); err != nil {
		return nil, err
	}
	if q.Page < 1 {
		return nil, domain.NewValidationError("page", "must be at least 1")
	}
	if q.Size < 1 || q.Size > e.maxPageSize {
		return nil, domain.NewValidationError("size", "must be between 1 and "+strconv.Itoa(e.maxPageSize))
	}
	if q.Page > domain.MaxPage(q.Size) {
		return nil, domain.NewValidationError("page", "must be at most "+strconv.Itoa(domain.MaxPage(q.Size)))
	}
	if q.Status != "" && !q.Status.IsValid() {
		return nil, domain.NewValidationError("status", "must be one of pending, in_progress, completed, cancelled")
	}
	if q.Priority != "" && !q.Priority.IsValid() {
		return nil, domain.NewValidationError("priority", "must be one of low, medium, high, urgent")
	}
	q.Search = strings.TrimSpace(q.Search)
	if utf8.RuneCountInString(q.Search) > domain.MaxSearchLength {
		return nil, domain.NewValidationError("search", "must be at most 255 characters")
	}

	tasks, total, err := e.repo.FindPage(ctx, q.Filter, q.Offset(), q.Size)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	return &domain.Page{
		Tasks:      tasks,
		Total:      total,
		Page:       q.Page,
		Size:       q.Size,
		TotalPages: domain.TotalPages(total, q.Size),
	}, nil
}

func (e *Engine) Stats(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}
	found, err := e.repo.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	counts := domain.NewStatusCounts()
	for status, n := range found {
		if status.IsValid() {
			counts[status] = n
		}
	}
	return counts, nil
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return domain.NewValidationError("user_id", "must not be empty")
	}
	if len(ownerID) > domain.MaxOwnerIDLength {
		return domain.NewValidationError("user_id", "must be at most 128 characters")
	}
	return nil
}
