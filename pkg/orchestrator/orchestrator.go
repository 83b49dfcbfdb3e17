package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/events"
	"github.com/morezero/procurement-assistant/pkg/hitl"
	"github.com/morezero/procurement-assistant/pkg/procurement"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

const logPrefix = "orchestrator:orchestrator"

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnInput is one user message together with the persisted conversation state.
type TurnInput struct {
	SessionID   string
	UserMessage string
	History     []Message
	State       *WorkflowState
	// Gates is the session's approval gate manager. Nil disables gates.
	Gates *hitl.Manager
}

// TurnOutput is the reply and the state to persist for the next turn.
type TurnOutput struct {
	Response string         `json:"agent_response"`
	State    *WorkflowState `json:"workflow_state"`
	Intent   string         `json:"intent"`
}

// Orchestrator runs conversation turns. It holds no per-session state and may be
// shared by every session.
type Orchestrator struct {
	client    *worker.Client
	publisher events.EventPublisher
	now       func() time.Time
}

// NewOrchestratorParams configures NewOrchestrator.
type NewOrchestratorParams struct {
	// Sender routes worker calls; ignored when Client is set.
	Sender    worker.Sender
	Client    *worker.Client
	Publisher events.EventPublisher
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(params NewOrchestratorParams) *Orchestrator {
	client := params.Client
	if client == nil {
		client = worker.NewClient(cards.Orchestrator, params.Sender)
	}
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Orchestrator{client: client, publisher: pub, now: time.Now}
}

// Client returns the client used for worker calls.
func (o *Orchestrator) Client() *worker.Client { return o.client }

// Turn processes one user message: interpret, advance, execute, render.
func (o *Orchestrator) Turn(ctx context.Context, in TurnInput) *TurnOutput {
	state := in.State.Clone()
	if !state.Stage.Valid() {
		slog.Warn(fmt.Sprintf("%s - Unknown stage %q, starting over", logPrefix, state.Stage))
		state.Stage = StageInitial
	}
	slog.Info(fmt.Sprintf("%s - Turn for session %s at stage %s (%d prior messages)",
		logPrefix, in.SessionID, state.Stage, len(in.History)))

	intent := o.interpret(state, in.UserMessage, in.Gates)
	advanced := Advance(state, intent)
	executed := o.Execute(ctx, advanced)
	if in.Gates != nil && executed.Stage == StageComplete {
		o.openHighValueGates(executed, in.Gates)
	}
	text, next := Render(executed)
	if in.Gates != nil {
		o.syncGates(state, next, intent, in.Gates)
	}

	slog.Info(fmt.Sprintf("%s - Session %s: %s -> %s (intent %s)", logPrefix, in.SessionID, state.Stage, next.Stage, intent))
	event := &events.TurnEvent{
		SessionID: in.SessionID,
		FromStage: string(state.Stage),
		ToStage:   string(next.Stage),
		Timestamp: o.now().UTC().Format(time.RFC3339Nano),
	}
	if err := o.publisher.PublishTurn(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish turn event: %v", logPrefix, err))
	}
	return &TurnOutput{Response: text, State: next, Intent: intent.String()}
}

// interpret resolves the reply through the open gate when there is one, and through
// Classify otherwise.
func (o *Orchestrator) interpret(state *WorkflowState, text string, gates *hitl.Manager) Intent {
	if gates == nil || state.PendingGateID == "" {
		return Classify(text, state.Stage)
	}
	gates.ExpireStale(o.now())
	resp := gates.ProcessResponse(state.PendingGateID, text, "")
	switch resp.Status {
	case hitl.StatusApproved:
		return IntentApprove
	case hitl.StatusRejected:
		return IntentReject
	case hitl.StatusModified:
		return IntentNone
	default:
		return Classify(text, state.Stage)
	}
}

// syncGates keeps exactly one open gate for the prompt the user is looking at.
func (o *Orchestrator) syncGates(before, after *WorkflowState, intent Intent, gates *hitl.Manager) {
	samePrompt := intent == IntentNone && before.Stage == after.Stage && before.ProductIndex == after.ProductIndex
	if samePrompt && after.PendingGateID != "" {
		if _, open := gates.Get(after.PendingGateID); open {
			return
		}
	}
	if after.PendingGateID != "" {
		gates.CancelRequest(after.PendingGateID)
		after.PendingGateID = ""
	}

	var req *hitl.Request
	switch after.Stage {
	case StageAwaitingApproval:
		if !gates.IsEnabled(hitl.KindPOCreation) {
			return
		}
		items := make([]hitl.OrderItem, 0, len(after.ReorderRecommendations))
		for _, r := range after.ReorderRecommendations {
			items = append(items, hitl.OrderItem{ProductName: r.Item.Name, Quantity: r.QuantityToOrder})
		}
		req = hitl.NewPOCreation(items)
	case StageAwaitingProductApproval:
		rec, ok := after.CurrentProduct()
		if !ok || !gates.IsEnabled(hitl.KindSupplierSelection) {
			return
		}
		req = hitl.NewSupplierSelection(rec.ProductName, []hitl.SupplierChoice{{
			SupplierID:   rec.RecommendedSupplierID,
			SupplierName: rec.RecommendedSupplierName,
			UnitPrice:    rec.UnitPrice,
			LeadTimeDays: rec.LeadTimeDays,
		}}, rec.RecommendedSupplierID)
	default:
		return
	}
	gates.Open(req)
	after.PendingGateID = req.ID
}

// openHighValueGates raises a sign-off gate for every order above the threshold and
// notes it in the reply.
func (o *Orchestrator) openHighValueGates(s *WorkflowState, gates *hitl.Manager) {
	if !gates.IsEnabled(hitl.KindHighValueApproval) {
		return
	}
	for _, po := range s.PurchaseOrders {
		if !gates.CheckHighValueThreshold(po.TotalAmount) {
			continue
		}
		req := gates.HighValueApproval(po.PONumber, po.TotalAmount, po.SupplierName, pricedLines(po))
		s.POSummary += fmt.Sprintf("\n⚠️  %s ($%s) exceeds the high-value threshold; sign-off request %s is pending.",
			po.PONumber, hitl.FormatMoney(po.TotalAmount), req.ID)
	}
}

func pricedLines(po procurement.PurchaseOrder) []hitl.PricedLine {
	lines := make([]hitl.PricedLine, 0, len(po.LineItems))
	for _, l := range po.LineItems {
		lines = append(lines, hitl.PricedLine{ProductName: l.ProductName, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return lines
}
