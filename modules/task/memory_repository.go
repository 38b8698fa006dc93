package task

import (
	"context"
	"sort"
	"sync"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
)

// MemoryRepository keeps tasks in process memory. Stored values are copies,
// so callers can never mutate the store through a returned task.
type MemoryRepository struct {
	mu     sync.RWMutex
	tasks  map[uint]*domain.Task
	nextID uint
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[uint]*domain.Task),
	}
}

func (r *MemoryRepository) Insert(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t.ID = r.nextID
	r.tasks[t.ID] = t.Clone()
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uint) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) FindPage(_ context.Context, filter domain.Filter, offset, limit int) ([]domain.Task, int64, error) {
	r.mu.RLock()
	matched := make([]*domain.Task, 0)
	for _, t := range r.tasks {
		if filter.Matches(t) {
			matched = append(matched, t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	page := make([]domain.Task, 0, limit)
	if offset < 0 {
		return page, total, nil
	}
	for i := offset; i < len(matched) && len(page) < limit; i++ {
		page = append(page, *matched[i])
	}
	return page, total, nil
}

func (r *MemoryRepository) CountByStatus(_ context.Context, ownerID string) (domain.StatusCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(domain.StatusCounts)
	for _, t := range r.tasks {
		if t.UserID == ownerID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

func (r *MemoryRepository) Update(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return domain.ErrNotFound
	}
	r.tasks[t.ID] = t.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, t *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.tasks, t.ID)
	return nil
}

func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
