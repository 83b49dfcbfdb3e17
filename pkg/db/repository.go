package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

const sessionColumns = `id, stage, state, history, revision, created, modified`

// StateRepository persists conversation sessions and their workflow state.
type StateRepository struct {
	pool *pgxpool.Pool
}

// NewStateRepository creates a StateRepository with the given connection pool.
func NewStateRepository(pool *pgxpool.Pool) *StateRepository {
	return &StateRepository{pool: pool}
}

// GetSession finds a session by id. A missing session returns nil, nil.
func (r *StateRepository) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	slog.Debug(fmt.Sprintf("%s - GetSession id=%s", repoLogPrefix, id))

	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workflow_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// UpsertSessionParams holds parameters for UpsertSession.
type UpsertSessionParams struct {
	ID      string
	Stage   string
	State   []byte
	History []byte
}

// UpsertSession creates or replaces a session, bumping its revision on update.
func (r *StateRepository) UpsertSession(ctx context.Context, params UpsertSessionParams) (*SessionRecord, error) {
	slog.Debug(fmt.Sprintf("%s - UpsertSession id=%s stage=%s", repoLogPrefix, params.ID, params.Stage))

	state, history := params.State, params.History
	if len(state) == 0 {
		state = []byte("{}")
	}
	if len(history) == 0 {
		history = []byte("[]")
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO workflow_sessions (id, stage, state, history, created, modified)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   stage = $2,
		   state = $3,
		   history = $4,
		   revision = workflow_sessions.revision + 1,
		   modified = $5
		 RETURNING `+sessionColumns,
		params.ID, params.Stage, state, history, now)
	return scanSession(row)
}

// DeleteSession removes a session and its turns. It reports whether a row was deleted.
func (r *StateRepository) DeleteSession(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM workflow_sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("%s - delete session %s failed: %w", repoLogPrefix, id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSessionsParams filters ListSessions.
type ListSessionsParams struct {
	Stage string
	Limit int
}

// ListSessions returns sessions, most recently modified first.
func (r *StateRepository) ListSessions(ctx context.Context, params ListSessionsParams) ([]SessionRecord, error) {
	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	query := `SELECT ` + sessionColumns + ` FROM workflow_sessions`
	args := []any{}
	if params.Stage != "" {
		query += ` WHERE stage = $1`
		args = append(args, params.Stage)
	}
	query += fmt.Sprintf(` ORDER BY modified DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s - list sessions failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		s, err := scanSessionFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// RecordTurn appends a turn to the session's audit trail.
func (r *StateRepository) RecordTurn(ctx context.Context, turn TurnRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_turns (session_id, from_stage, to_stage, intent) VALUES ($1, $2, $3, $4)`,
		turn.SessionID, turn.FromStage, turn.ToStage, turn.Intent)
	if err != nil {
		return fmt.Errorf("%s - record turn for %s failed: %w", repoLogPrefix, turn.SessionID, err)
	}
	return nil
}

// ListTurns returns the session's turns, oldest first.
func (r *StateRepository) ListTurns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, from_stage, to_stage, intent, created
		 FROM session_turns WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s - list turns failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.ID, &t.SessionID, &t.FromStage, &t.ToStage, &t.Intent, &t.Created); err != nil {
			return nil, fmt.Errorf("%s - scan turn failed: %w", repoLogPrefix, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Ping verifies the pool can reach the database.
func (r *StateRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanSession(row pgx.Row) (*SessionRecord, error) {
	var s SessionRecord
	err := row.Scan(&s.ID, &s.Stage, &s.State, &s.History, &s.Revision, &s.Created, &s.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan session failed: %w", repoLogPrefix, err)
	}
	return &s, nil
}

func scanSessionFromRows(rows pgx.Rows) (*SessionRecord, error) {
	var s SessionRecord
	if err := rows.Scan(&s.ID, &s.Stage, &s.State, &s.History, &s.Revision, &s.Created, &s.Modified); err != nil {
		return nil, fmt.Errorf("%s - scan session from rows failed: %w", repoLogPrefix, err)
	}
	return &s, nil
}
