package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearSessions truncates the session tables. Schema is preserved and RESTART IDENTITY
// resets the turn sequence.
func ClearSessions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing session tables", clearLogPrefix))

	_, err := pool.Exec(ctx, `TRUNCATE TABLE session_turns, workflow_sessions RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Sessions cleared", clearLogPrefix))
	return nil
}
