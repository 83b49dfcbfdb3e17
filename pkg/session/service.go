package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/morezero/procurement-assistant/pkg/hitl"
	"github.com/morezero/procurement-assistant/pkg/orchestrator"
)

const serviceLogPrefix = "session:service"

// Reply is the outcome of one turn.
type Reply struct {
	SessionID    string          `json:"session_id"`
	Response     string          `json:"response"`
	Stage        string          `json:"stage"`
	Intent       string          `json:"intent"`
	PendingGates []*hitl.Request `json:"pending_gates,omitempty"`
}

// ServiceOptions configures NewService.
type ServiceOptions struct {
	Store        Store
	Orchestrator *orchestrator.Orchestrator
	// GateConfigs override hitl.DefaultConfigs for every session's gate manager.
	GateConfigs map[hitl.Kind]hitl.GateConfig
	// DisableGates runs turns without approval gates.
	DisableGates bool
	HistoryLimit int
}

// Service runs turns for many sessions. Turns of one session are serialized; turns of
// different sessions run concurrently.
type Service struct {
	store        Store
	orch         *orchestrator.Orchestrator
	gateConfigs  map[hitl.Kind]hitl.GateConfig
	disableGates bool
	historyLimit int

	mu    sync.Mutex
	locks map[string]*sessionLock
	gates map[string]*hitl.Manager
}

// sessionLock serializes one session. refs counts holders and waiters; the entry is
// dropped when it reaches zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a Service. A nil Store uses a MemoryStore.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("%s - orchestrator is required", serviceLogPrefix)
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Service{
		store:        store,
		orch:         opts.Orchestrator,
		gateConfigs:  opts.GateConfigs,
		disableGates: opts.DisableGates,
		historyLimit: limit,
		locks:        make(map[string]*sessionLock),
		gates:        make(map[string]*hitl.Manager),
	}, nil
}

// Turn runs one user message against session id. An empty id starts a new session.
func (s *Service) Turn(ctx context.Context, id, message string) (*Reply, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	defer s.lock(id)()

	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		slog.Info(fmt.Sprintf("%s - Starting session %s", serviceLogPrefix, id))
		sess = New(id)
	} else if err != nil {
		return nil, fmt.Errorf("%s - failed to load session %s: %w", serviceLogPrefix, id, err)
	}

	gates := s.gatesFor(id, true)
	out := s.orch.Turn(ctx, orchestrator.TurnInput{
		SessionID:   id,
		UserMessage: message,
		History:     sess.History,
		State:       sess.State,
		Gates:       gates,
	})

	from := sess.State.Stage
	sess.State = out.State
	sess.Append(s.historyLimit,
		orchestrator.Message{Role: "user", Content: message},
		orchestrator.Message{Role: "assistant", Content: out.Response})
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s - failed to save session %s: %w", serviceLogPrefix, id, err)
	}
	if rec, ok := s.store.(TurnRecorder); ok {
		if err := rec.RecordTurn(ctx, id, string(from), string(out.State.Stage), out.Intent); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to record turn for %s: %v", serviceLogPrefix, id, err))
		}
	}

	reply := &Reply{SessionID: id, Response: out.Response, Stage: string(out.State.Stage), Intent: out.Intent}
	if gates != nil {
		reply.PendingGates = gates.Pending()
	}
	return reply, nil
}

// Get returns a copy of session id.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// Delete removes session id together with its gates.
func (s *Service) Delete(ctx context.Context, id string) error {
	defer s.lock(id)()

	err := s.store.Delete(ctx, id)
	s.mu.Lock()
	delete(s.gates, id)
	s.mu.Unlock()
	return err
}

// Gates returns the gate manager of session id, or nil when the session has none.
func (s *Service) Gates(id string) *hitl.Manager {
	return s.gatesFor(id, false)
}

// SessionCount returns how many sessions hold a gate manager in this process.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gates)
}

// lock blocks until the caller holds session id and returns the release func.
func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Service) gatesFor(id string, create bool) *hitl.Manager {
	if s.disableGates {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.gates[id]
	if !ok && create {
		m = hitl.NewManager()
		for kind, cfg := range s.gateConfigs {
			m.SetConfig(kind, cfg)
		}
		s.gates[id] = m
	}
	return m
}
