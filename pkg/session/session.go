// Package session keeps each conversation's workflow state and history between turns
// and runs turns through the orchestrator one session at a time.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/morezero/procurement-assistant/pkg/orchestrator"
)

// ErrNotFound is returned by Store.Get for an unknown session.
var ErrNotFound = errors.New("session not found")

// DefaultHistoryLimit is how many messages a session retains.
const DefaultHistoryLimit = 50

// Session is one conversation.
type Session struct {
	ID        string                      `json:"session_id"`
	State     *orchestrator.WorkflowState `json:"workflow_state"`
	History   []orchestrator.Message      `json:"conversation_history"`
	Revision  int                         `json:"revision"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// New returns an empty session at the initial stage.
func New(id string) *Session {
	return &Session{ID: id, State: orchestrator.NewState()}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.State = s.State.Clone()
	c.History = append([]orchestrator.Message(nil), s.History...)
	return &c
}

// Append adds messages to the history, keeping at most limit of the newest.
func (s *Session) Append(limit int, msgs ...orchestrator.Message) {
	s.History = append(s.History, msgs...)
	if limit > 0 && len(s.History) > limit {
		s.History = append([]orchestrator.Message(nil), s.History[len(s.History)-limit:]...)
	}
}

// Store persists sessions. Get returns ErrNotFound for unknown ids. Implementations
// must not retain the *Session passed to Save or hand out shared copies from Get.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// TurnRecorder is implemented by stores that keep an audit trail of turns.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID, fromStage, toStage, intent string) error
}
