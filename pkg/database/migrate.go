package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	createUsersTable = `CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL,
	full_name TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`
	createEmailIndex     = `CREATE UNIQUE INDEX IF NOT EXISTS ix_users_email ON users (email)`
	createCreatedAtIndex = `CREATE INDEX IF NOT EXISTS ix_users_created_at ON users (created_at DESC)`
	insertSeedUser       = `INSERT INTO users (id, email, full_name, role, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`
)

// SeedUser is a row inserted by Migrate when it is missing.
type SeedUser struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	Role      string
	CreatedAt time.Time
}

// SeedUsers are the rows every fresh database starts with.
var SeedUsers = []SeedUser{
	{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Email:     "john@example.com",
		FullName:  "John Smith",
		Role:      "Admin",
		CreatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	},
	{
		ID:        uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Email:     "alice@example.com",
		FullName:  "Alice Johnson",
		Role:      "User",
		CreatedAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
	},
}

// MigrateOptions controls the startup retry loop.
type MigrateOptions struct {
	Attempts int
	Interval time.Duration
	Logger   *zap.Logger
}

// Migrate creates the users schema and inserts SeedUsers, retrying while the database is unreachable.
func Migrate(ctx context.Context, db *sqlx.DB, opts MigrateOptions) error {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		opts.Logger.Info("applying database migrations", zap.Int("attempt", attempt), zap.Int("max", opts.Attempts))
		if lastErr = applySchema(ctx, db); lastErr == nil {
			opts.Logger.Info("database migrations applied")
			return nil
		}
		opts.Logger.Warn("failed to apply migrations", zap.Int("attempt", attempt), zap.Int("max", opts.Attempts), zap.Error(lastErr))

		if attempt == opts.Attempts {
			break
		}
		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("apply migrations: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("apply migrations after %d attempts: %w", opts.Attempts, lastErr)
}

func applySchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{createUsersTable, createEmailIndex, createCreatedAtIndex} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	for _, u := range SeedUsers {
		if _, err := tx.ExecContext(ctx, insertSeedUser, u.ID, u.Email, u.FullName, u.Role, u.CreatedAt); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
