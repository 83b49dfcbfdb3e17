package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/morezero/procurement-assistant/pkg/db"
	"github.com/morezero/procurement-assistant/pkg/orchestrator"
)

const postgresLogPrefix = "session:postgres"

// PostgresStore persists sessions through db.StateRepository.
type PostgresStore struct {
	repo *db.StateRepository
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(repo *db.StateRepository) *PostgresStore {
	return &PostgresStore{repo: repo}
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	rec, err := p.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load session %s: %w", postgresLogPrefix, id, err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return fromRecord(rec)
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	params, err := toParams(s)
	if err != nil {
		return err
	}
	rec, err := p.repo.UpsertSession(ctx, params)
	if err != nil {
		return fmt.Errorf("%s - failed to save session %s: %w", postgresLogPrefix, s.ID, err)
	}
	s.Revision, s.UpdatedAt = rec.Revision, rec.Modified
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	deleted, err := p.repo.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("%s - failed to delete session %s: %w", postgresLogPrefix, id, err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) RecordTurn(ctx context.Context, sessionID, fromStage, toStage, intent string) error {
	return p.repo.RecordTurn(ctx, db.TurnRecord{SessionID: sessionID, FromStage: fromStage, ToStage: toStage, Intent: intent})
}

func toParams(s *Session) (db.UpsertSessionParams, error) {
	state := s.State
	if state == nil {
		state = orchestrator.NewState()
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return db.UpsertSessionParams{}, fmt.Errorf("%s - failed to encode state: %w", postgresLogPrefix, err)
	}
	history := s.History
	if history == nil {
		history = []orchestrator.Message{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return db.UpsertSessionParams{}, fmt.Errorf("%s - failed to encode history: %w", postgresLogPrefix, err)
	}
	return db.UpsertSessionParams{ID: s.ID, Stage: string(state.Stage), State: stateJSON, History: historyJSON}, nil
}

func fromRecord(rec *db.SessionRecord) (*Session, error) {
	s := &Session{ID: rec.ID, Revision: rec.Revision, UpdatedAt: rec.Modified, State: orchestrator.NewState()}
	if len(rec.State) > 0 {
		if err := json.Unmarshal(rec.State, s.State); err != nil {
			return nil, fmt.Errorf("%s - failed to decode state of %s: %w", postgresLogPrefix, rec.ID, err)
		}
	}
	if len(rec.History) > 0 {
		if err := json.Unmarshal(rec.History, &s.History); err != nil {
			return nil, fmt.Errorf("%s - failed to decode history of %s: %w", postgresLogPrefix, rec.ID, err)
		}
	}
	return s, nil
}
