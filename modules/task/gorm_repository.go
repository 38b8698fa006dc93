package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLite's built-in LOWER only folds ASCII, so search goes through
// unicode_lower, registered on every connection of the sqlite3_tasks driver.
const searchClause = `(unicode_lower(title) LIKE ? ESCAPE '\' OR unicode_lower(COALESCE(description, '')) LIKE ? ESCAPE '\')`

const sqliteDriverName = "sqlite3_tasks"

var registerSQLiteDriver sync.Once

// GormRepository stores tasks through GORM. It is used with SQLite.
type GormRepository struct {
	db *gorm.DB
}

var _ Repository = (*GormRepository)(nil)

// OpenSQLite opens a SQLite database at path (":memory:" for an in-memory one).
func OpenSQLite(path string) (*gorm.DB, error) {
	registerSQLiteDriver.Do(func() {
		sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
			},
		})
	})

	dialector := sqlite.New(sqlite.Config{
		DriverName: sqliteDriverName,
		DSN:        path,
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewGormRepository creates a repository over db.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the tasks table.
func (r *GormRepository) Migrate() error {
	return r.db.AutoMigrate(&domain.Task{})
}

// Insert stores a new task.
func (r *GormRepository) Insert(ctx context.Context, t *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindByID retrieves a task by ID.
func (r *GormRepository) FindByID(ctx context.Context, id uint) (*domain.Task, error) {
	var t domain.Task
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task %d: %w", id, err)
	}
	return &t, nil
}

// FindPage retrieves one page of tasks matching filter.
func (r *GormRepository) FindPage(ctx context.Context, filter domain.Filter, offset, limit int) ([]domain.Task, int64, error) {
	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&domain.Task{}).Where("user_id = ?", filter.OwnerID)
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Priority != "" {
			q = q.Where("priority = ?", filter.Priority)
		}
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			q = q.Where(searchClause, pattern, pattern)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, limit)
	// GORM drops a negative offset instead of rejecting it.
	if total == 0 || offset < 0 {
		return tasks, total, nil
	}

	if err := query().
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// CountByStatus groups the owner's tasks by status.
func (r *GormRepository) CountByStatus(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	var rows []struct {
		Status domain.Status
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", ownerID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	counts := make(domain.StatusCounts, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Update overwrites every mutable column of t.
func (r *GormRepository) Update(ctx context.Context, t *domain.Task) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"title":        t.Title,
			"description":  t.Description,
			"status":       t.Status,
			"priority":     t.Priority,
			"due_date":     t.DueDate,
			"updated_at":   t.UpdatedAt,
			"completed_at": t.CompletedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes t by ID.
func (r *GormRepository) Delete(ctx context.Context, t *domain.Task) error {
	result := r.db.WithContext(ctx).Delete(&domain.Task{}, t.ID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete task %d: %w", t.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
