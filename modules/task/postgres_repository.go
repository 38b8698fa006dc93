package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/task"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id, title, description, user_id, status, priority, due_date, created_at, updated_at, completed_at`

// PostgresRepository stores tasks in PostgreSQL through a pgx pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository over pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the tasks table and its indexes if they don't exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id           BIGSERIAL PRIMARY KEY,
			title        VARCHAR(255) NOT NULL,
			description  TEXT,
			user_id      VARCHAR(128) NOT NULL,
			status       VARCHAR(20) NOT NULL DEFAULT 'pending',
			priority     VARCHAR(20) NOT NULL DEFAULT 'medium',
			due_date     TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks(user_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Insert stores a new task and assigns its ID.
func (r *PostgresRepository) Insert(ctx context.Context, t *domain.Task) error {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, user_id, status, priority, due_date, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		t.Title, t.Description, t.UserID, string(t.Status), string(t.Priority),
		t.DueDate, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	).Scan(&id)
	if err != nil {
		return translatePgError("insert task", err)
	}
	t.ID = uint(id)
	return nil
}

// FindByID retrieves a task by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id uint) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, int64(id))
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task %d: %w", id, err)
	}
	return t, nil
}

// FindPage retrieves one page of tasks matching filter.
func (r *PostgresRepository) FindPage(ctx context.Context, filter domain.Filter, offset, limit int) ([]domain.Task, int64, error) {
	conds := []string{"user_id = $1"}
	args := []any{filter.OwnerID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(LOWER(title) LIKE $%d ESCAPE '\' OR LOWER(description) LIKE $%d ESCAPE '\')`, n, n))
	}
	where := strings.Join(conds, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, limit)
	if total == 0 || offset < 0 {
		return tasks, total, nil
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// CountByStatus groups the owner's tasks by status.
func (r *PostgresRepository) CountByStatus(ctx context.Context, ownerID string) (domain.StatusCounts, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM tasks WHERE user_id = $1 GROUP BY status`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(domain.StatusCounts)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	return counts, nil
}

// Update overwrites every mutable column of t.
func (r *PostgresRepository) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, due_date = $5, updated_at = $6, completed_at = $7
		WHERE id = $8`,
		t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.UpdatedAt, t.CompletedAt, int64(t.ID),
	)
	if err != nil {
		return translatePgError("update task", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes t by ID.
func (r *PostgresRepository) Delete(ctx context.Context, t *domain.Task) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, int64(t.ID))
	if err != nil {
		return fmt.Errorf("failed to delete task %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping checks the pool can reach the server.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes every pooled connection.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t        domain.Task
		id       int64
		status   string
		priority string
	)
	if err := row.Scan(&id, &t.Title, &t.Description, &t.UserID, &status, &priority,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	t.ID = uint(id)
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// translatePgError maps constraint violations to validation errors.
func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		field := pgErr.ColumnName
		if field == "" {
			field = "task"
		}
		switch pgErr.Code {
		case "22001": // string_data_right_truncation
			return domain.NewValidationError(field, "value too long")
		case "23502": // not_null_violation
			return domain.NewValidationError(field, "must not be null")
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// connectPostgres opens a pool and verifies the connection.
func connectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
