package task

import (
	"context"
	"strings"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
)

// Repository is the task store. Every method is atomic on its own.
// Listings are ordered newest first, ties broken by the higher id.
type Repository interface {
	// Insert assigns t.ID and stores t.
	Insert(ctx context.Context, t *domain.Task) error
	// FindByID returns domain.ErrNotFound when the id does not exist.
	FindByID(ctx context.Context, id uint) (*domain.Task, error)
	// FindPage returns one page of matching tasks and the total match count.
	FindPage(ctx context.Context, filter domain.Filter, offset, limit int) ([]domain.Task, int64, error)
	// CountByStatus returns the owner's task count per status. Absent statuses may be missing.
	CountByStatus(ctx context.Context, ownerID string) (domain.StatusCounts, error)
	// Update overwrites the stored row of t.ID.
	Update(ctx context.Context, t *domain.Task) error
	// Delete removes t permanently.
	Delete(ctx context.Context, t *domain.Task) error
	Ping(ctx context.Context) error
	Close() error
}

// likePattern builds a lower-cased LIKE pattern matching search as a literal
// substring. Use with ESCAPE '\'.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(search)) + "%"
}
