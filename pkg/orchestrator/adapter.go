package orchestrator

import (
	"context"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

type coordinateParams struct {
	SessionID     string         `json:"session_id"`
	UserMessage   string         `json:"user_message"`
	History       []Message      `json:"conversation_history"`
	WorkflowState *WorkflowState `json:"workflow_state"`
	WorkflowStage Stage          `json:"workflow_stage"`
}

func (p *coordinateParams) state() *WorkflowState {
	if p.WorkflowState != nil {
		return p.WorkflowState
	}
	s := NewState()
	if p.WorkflowStage != "" {
		s.Stage = p.WorkflowStage
	}
	return s
}

// NewWorker exposes o as the orchestrator worker so a turn can itself be routed.
// Turns routed this way carry their state in the request and raise no gates.
func NewWorker(o *Orchestrator) *worker.Server {
	s := worker.NewServer(cards.Orchestrator, "Orchestrator Agent", "")
	s.Register("coordinate_workflow", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		p, err := decodeCoordinate(params)
		if err != nil {
			return nil, err
		}
		out := o.Turn(ctx, TurnInput{SessionID: p.SessionID, UserMessage: p.UserMessage, History: p.History, State: p.state()})
		return envelope.ToParams(map[string]any{
			"agent_response": out.Response,
			"workflow_stage": out.State.Stage,
			"workflow_state": out.State,
		})
	}, worker.HandlerOpts{Description: "Run one conversation turn"})

	s.Register("parse_user_input", func(_ context.Context, params map[string]any) (map[string]any, error) {
		p, err := decodeCoordinate(params)
		if err != nil {
			return nil, err
		}
		st := p.state()
		intent := Classify(p.UserMessage, st.Stage)
		next := Advance(st, intent)
		return map[string]any{
			"intent":         intent.String(),
			"workflow_stage": string(next.Stage),
		}, nil
	}, worker.HandlerOpts{Description: "Interpret a user message for the current stage"})

	s.Register("generate_response", func(_ context.Context, params map[string]any) (map[string]any, error) {
		p, err := decodeCoordinate(params)
		if err != nil {
			return nil, err
		}
		text, next := Render(p.state())
		return envelope.ToParams(map[string]any{
			"agent_response": text,
			"workflow_stage": next.Stage,
		})
	}, worker.HandlerOpts{Description: "Render the reply for a workflow state"})
	return s
}

func decodeCoordinate(params map[string]any) (*coordinateParams, error) {
	var p coordinateParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Invalid orchestrator params", map[string]any{"error": err.Error()})
	}
	if p.WorkflowState != nil && !p.WorkflowState.Stage.Valid() {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Unknown workflow stage: "+string(p.WorkflowState.Stage), nil)
	}
	if p.WorkflowStage != "" && !p.WorkflowStage.Valid() {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Unknown workflow stage: "+string(p.WorkflowStage), nil)
	}
	return &p, nil
}
