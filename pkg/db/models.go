package db

import "time"

// SessionRecord represents a row in the workflow_sessions table. State and History are
// raw jsonb documents; callers own their shape.
type SessionRecord struct {
	ID       string    `json:"id"`
	Stage    string    `json:"stage"`
	State    []byte    `json:"state"`
	History  []byte    `json:"history"`
	Revision int       `json:"revision"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// TurnRecord represents a row in the session_turns table.
type TurnRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	FromStage string    `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	Intent    string    `json:"intent"`
	Created   time.Time `json:"created"`
}
