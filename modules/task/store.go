package task

import (
	"context"
	"fmt"
	"strings"
)

// Store kinds selected by the database URL scheme.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// parseDatabaseURL returns the store kind and the driver-specific DSN.
func parseDatabaseURL(raw string) (kind, dsn string, err error) {
	switch {
	case strings.HasPrefix(raw, "postgresql+asyncpg://"):
		return StorePostgres, "postgresql://" + strings.TrimPrefix(raw, "postgresql+asyncpg://"), nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return StorePostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite database url has no path: %q", raw)
		}
		return StoreSQLite, path, nil
	case raw == "memory://" || raw == "memory":
		return StoreMemory, "", nil
	default:
		return "", "", fmt.Errorf("unsupported database url: %q", raw)
	}
}

// openRepository opens and prepares the store named by databaseURL.
func openRepository(ctx context.Context, databaseURL string) (Repository, string, error) {
	kind, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	switch kind {
	case StorePostgres:
		pool, err := connectPostgres(ctx, dsn)
		if err != nil {
			return nil, "", err
		}
		repo := NewPostgresRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, "", err
		}
		return repo, kind, nil

	case StoreSQLite:
		db, err := OpenSQLite(dsn)
		if err != nil {
			return nil, "", err
		}
		if dsn == ":memory:" {
			// Every pooled connection would get its own empty database.
			sqlDB, err := db.DB()
			if err != nil {
				return nil, "", fmt.Errorf("failed to get database connection: %w", err)
			}
			sqlDB.SetMaxOpenConns(1)
		}
		repo := NewGormRepository(db)
		if err := repo.Migrate(); err != nil {
			repo.Close()
			return nil, "", fmt.Errorf("failed to migrate database: %w", err)
		}
		return repo, kind, nil

	default:
		return NewMemoryRepository(), kind, nil
	}
}
