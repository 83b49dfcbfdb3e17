// Package db provides database connection pooling via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// NewPool creates a new pgx connection pool from the given database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}

	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}

// RunMigrations applies SQL migration files in order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrationFiles []string) error {
	slog.Info(fmt.Sprintf("%s - Running %d migrations", logPrefix, len(migrationFiles)))

	for _, sql := range migrationFiles {
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("%s - migration failed: %w", logPrefix, err)
		}
	}

	slog.Info(fmt.Sprintf("%s - Migrations complete", logPrefix))
	return nil
}

// MigrationStatus reports whether migrations have been applied by checking for the
// workflow_sessions table.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, migrationPath string) error {
	const statusLogPrefix = "db:MigrationStatus"

	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'workflow_sessions')`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s - failed to check schema: %w", statusLogPrefix, err)
	}

	files, err := LoadMigrationFiles(migrationPath)
	if err != nil {
		return fmt.Errorf("%s - load migration list: %w", statusLogPrefix, err)
	}

	source := migrationPath
	if source == "" {
		source = "embedded set"
	}
	if exists {
		fmt.Printf("Migration status: applied (schema present, %d migration files in %s)\n", len(files), source)
	} else {
		fmt.Printf("Migration status: not applied (run 'po-assistant migrate up'). %d migration files in %s\n", len(files), source)
	}
	return nil
}

// downStep undoes one migration by dropping the table it created.
type downStep struct {
	Migration string
	Table     string
}

// downSteps lists the migrations newest first.
var downSteps = []downStep{
	{Migration: "0002_session_turns", Table: "session_turns"},
	{Migration: "0001_workflow_sessions", Table: "workflow_sessions"},
}

// MigrationDown rolls back the newest applied migration by dropping its table. It is a
// no-op when no migration is applied.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, _ string) error {
	const downLogPrefix = "db:MigrationDown"

	for _, step := range downSteps {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
			step.Table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("%s - failed to check %s: %w", downLogPrefix, step.Table, err)
		}
		if !exists {
			continue
		}
		if _, err := pool.Exec(ctx, "DROP TABLE "+quoteIdent(step.Table)); err != nil {
			return fmt.Errorf("%s - failed to roll back %s: %w", downLogPrefix, step.Migration, err)
		}
		slog.Info(fmt.Sprintf("%s - Rolled back %s", downLogPrefix, step.Migration))
		fmt.Printf("Migration down: rolled back %s\n", step.Migration)
		return nil
	}
	fmt.Println("Migration down: nothing to roll back.")
	return nil
}
