package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/events"
	"github.com/morezero/procurement-assistant/pkg/hitl"
	"github.com/morezero/procurement-assistant/pkg/procurement"
	"github.com/morezero/procurement-assistant/pkg/router"
	"github.com/morezero/procurement-assistant/pkg/worker"
	"github.com/morezero/procurement-assistant/pkg/workers"
)

func reorder(id, name string, stock, rp int) procurement.ReorderRecommendation {
	item := procurement.InventoryItem{ItemID: id, Name: name, CurrentStock: stock, ReorderPoint: rp}
	return workers.Recommend([]procurement.InventoryItem{item})[0]
}

func supplierRec(id, name, supplier string) procurement.SupplierRecommendation {
	return procurement.SupplierRecommendation{
		ProductID: id, ProductName: name, QuantityNeeded: 10,
		RecommendedSupplierID: "SUP001", RecommendedSupplierName: supplier,
		UnitPrice: 2.5, TotalCost: 25, LeadTimeDays: 4, Reason: "Only supplier available",
	}
}

// stubs is a router with scripted inventory, supplier and PO workers.
type stubs struct {
	router    *router.Router
	inventory []procurement.ReorderRecommendation
	suppliers []procurement.SupplierRecommendation

	inventoryCalls atomic.Int32
	supplierCalls  atomic.Int32
	poCalls        atomic.Int32
	lastPORecs     []procurement.SupplierRecommendation
}

func newStubs(t *testing.T, skip ...string) *stubs {
	t.Helper()
	reg, err := cards.NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	s := &stubs{router: router.NewRouter(router.NewRouterParams{Cards: reg})}
	skipped := map[string]bool{}
	for _, id := range skip {
		skipped[id] = true
	}

	inv := worker.NewServer(cards.InventoryMonitor, "Inventory", "")
	inv.Register(MethodCheckInventory, func(context.Context, map[string]any) (map[string]any, error) {
		s.inventoryCalls.Add(1)
		return envelope.ToParams(map[string]any{
			"reorder_recommendations": s.inventory,
			"summary_message":         workers.InventorySummary(s.inventory),
		})
	}, worker.HandlerOpts{})

	sup := worker.NewServer(cards.SupplierSelector, "Supplier", "")
	sup.Register(MethodSelectSupplier, func(context.Context, map[string]any) (map[string]any, error) {
		s.supplierCalls.Add(1)
		return envelope.ToParams(map[string]any{
			"recommendations": s.suppliers,
			"summary_message": workers.SupplierSummary(s.suppliers),
		})
	}, worker.HandlerOpts{})

	po := worker.NewServer(cards.PurchaseOrder, "PO", "")
	po.Register(MethodGeneratePurchaseOrder, func(_ context.Context, params map[string]any) (map[string]any, error) {
		s.poCalls.Add(1)
		if err := envelope.DecodeField(params, "recommendations", &s.lastPORecs); err != nil {
			return nil, err
		}
		return map[string]any{"purchase_orders": []any{}, "summary_message": "PO summary"}, nil
	}, worker.HandlerOpts{})

	for _, srv := range []*worker.Server{inv, sup, po} {
		if skipped[srv.ID()] {
			continue
		}
		if err := s.router.RegisterWorker(srv.ID(), srv); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func (s *stubs) orchestrator() *Orchestrator {
	return NewOrchestrator(NewOrchestratorParams{Sender: s.router})
}

func threeProducts() []procurement.SupplierRecommendation {
	return []procurement.SupplierRecommendation{
		supplierRec("P1", "Bearings", "Acme"),
		supplierRec("P2", "Pump", "Acme"),
		supplierRec("P3", "Gloves", "Acme"),
	}
}

func TestClassify_StageGated(t *testing.T) {
	tests := []struct {
		text  string
		stage Stage
		want  Intent
	}{
		{"yes", StageAwaitingApproval, IntentApprove},
		{"No thanks", StageAwaitingApproval, IntentReject},
		{"go ahead", StageAwaitingProductApproval, IntentApprove},
		{"yes", StageInitial, IntentNone},
		{"no", StageComplete, IntentNone},
		{"check inventory", StageInitial, IntentCheckInventory},
		{"what about stock levels", StageAwaitingApproval, IntentCheckInventory},
		{"hmm", StageAwaitingApproval, IntentNone},
		{"I cannot decide", StageAwaitingApproval, IntentNone},
		{"Approved.", StageAwaitingApproval, IntentApprove},
		{"proceeding", StageAwaitingApproval, IntentApprove},
		{"nope", StageAwaitingApproval, IntentReject},
		{"cancelled", StageAwaitingProductApproval, IntentReject},
	}
	for _, tt := range tests {
		if got := Classify(tt.text, tt.stage); got != tt.want {
			t.Errorf("orchestrator:orchestrator_test - Classify(%q, %s) = %s, want %s", tt.text, tt.stage, got, tt.want)
		}
	}
}

func TestAdvance_Table(t *testing.T) {
	recs := []procurement.ReorderRecommendation{reorder("P1", "Bearings", 1, 10)}
	tests := []struct {
		name   string
		state  WorkflowState
		intent Intent
		want   Stage
	}{
		{"approve reorder", WorkflowState{Stage: StageAwaitingApproval, ReorderRecommendations: recs}, IntentApprove, StageApproved},
		{"reject reorder", WorkflowState{Stage: StageAwaitingApproval}, IntentReject, StageRejected},
		{"unclear reorder", WorkflowState{Stage: StageAwaitingApproval}, IntentNone, StageAwaitingApproval},
		{"restart from approval", WorkflowState{Stage: StageAwaitingApproval}, IntentCheckInventory, StageInitial},
		{"unclear product", WorkflowState{Stage: StageAwaitingProductApproval, SupplierRecommendations: threeProducts()}, IntentNone, StageAwaitingProductApproval},
		{"initial", WorkflowState{Stage: StageInitial}, IntentNone, StageInitial},
		{"complete restarts", WorkflowState{Stage: StageComplete}, IntentApprove, StageInitial},
		{"approved resumes", WorkflowState{Stage: StageApproved}, IntentNone, StageApproved},
		{"supplier approved resumes", WorkflowState{Stage: StageSupplierApproved}, IntentNone, StageSupplierApproved},
	}
	for _, tt := range tests {
		before := tt.state.Clone()
		got := Advance(&tt.state, tt.intent)
		if got.Stage != tt.want {
			t.Errorf("orchestrator:orchestrator_test - %s: stage = %s, want %s", tt.name, got.Stage, tt.want)
		}
		if tt.state.Stage != before.Stage || tt.state.ProductIndex != before.ProductIndex {
			t.Errorf("orchestrator:orchestrator_test - %s: Advance modified its input", tt.name)
		}
	}
}

func TestScenarioA_InventoryFindsItems(t *testing.T) {
	s := newStubs(t)
	s.inventory = []procurement.ReorderRecommendation{reorder("P1", "Bearings", 5, 50), reorder("P2", "Pump", 1, 4)}

	out := s.orchestrator().Turn(context.Background(), TurnInput{SessionID: "a", UserMessage: "check inventory"})
	if out.State.Stage != StageAwaitingApproval {
		t.Fatalf("orchestrator:orchestrator_test - stage = %s", out.State.Stage)
	}
	for _, name := range []string{"Bearings", "Pump"} {
		if !strings.Contains(out.Response, name) {
			t.Errorf("orchestrator:orchestrator_test - response missing %s:\n%s", name, out.Response)
		}
	}
	if !strings.HasSuffix(out.Response, CreateOrdersPrompt) {
		t.Errorf("orchestrator:orchestrator_test - response lacks approval prompt:\n%s", out.Response)
	}
}

func TestInventory_NothingToReorder(t *testing.T) {
	s := newStubs(t)
	out := s.orchestrator().Turn(context.Background(), TurnInput{UserMessage: "hello"})
	if out.State.Stage != StageInitial || out.Response != workers.AllStockedMessage {
		t.Errorf("orchestrator:orchestrator_test - stage %s response %q", out.State.Stage, out.Response)
	}
	if s.inventoryCalls.Load() != 1 {
		t.Errorf("orchestrator:orchestrator_test - inventory calls = %d", s.inventoryCalls.Load())
	}
}

func TestScenarioB_ApproveRunsSupplierSelection(t *testing.T) {
	s := newStubs(t)
	s.suppliers = threeProducts()
	state := &WorkflowState{
		Stage:                  StageAwaitingApproval,
		ReorderRecommendations: []procurement.ReorderRecommendation{reorder("P1", "Bearings", 5, 50)},
		ProductIndex:           2,
	}

	out := s.orchestrator().Turn(context.Background(), TurnInput{UserMessage: "yes", State: state})
	if s.supplierCalls.Load() != 1 {
		t.Fatalf("orchestrator:orchestrator_test - supplier calls = %d", s.supplierCalls.Load())
	}
	if out.State.Stage != StageAwaitingProductApproval || out.State.ProductIndex != 0 || len(out.State.ApprovedProducts) != 0 {
		t.Errorf("orchestrator:orchestrator_test - state = %+v", out.State)
	}
	for _, part := range []string{"📊 **Supplier Analysis Complete:**", "🛒 **Product 1 of 3:**", "🤔 **Order Bearings from Acme?** (yes/no)"} {
		if !strings.Contains(out.Response, part) {
			t.Errorf("orchestrator:orchestrator_test - response missing %q:\n%s", part, out.Response)
		}
	}
	if state.Stage != StageAwaitingApproval {
		t.Error("orchestrator:orchestrator_test - Turn modified the caller's state")
	}
}

func TestScenarioC_RejectFirstProduct(t *testing.T) {
	s := newStubs(t)
	state := &WorkflowState{Stage: StageAwaitingProductApproval, SupplierRecommendations: threeProducts()}

	out := s.orchestrator().Turn(context.Background(), TurnInput{UserMessage: "no", State: state})
	if out.State.Stage != StageAwaitingProductApproval || out.State.ProductIndex != 1 || len(out.State.ApprovedProducts) != 0 {
		t.Errorf("orchestrator:orchestrator_test - state = %+v", out.State)
	}
	for _, part := range []string{"📋 Progress: 1 of 3 products reviewed", "✅ Approved so far: 0", "🛒 **Product 2 of 3:**"} {
		if !strings.Contains(out.Response, part) {
			t.Errorf("orchestrator:orchestrator_test - response missing %q:\n%s", part, out.Response)
		}
	}
	if strings.Contains(out.Response, "Supplier Analysis Complete") {
		t.Error("orchestrator:orchestrator_test - supplier summary repeated after first product")
	}
}

func TestScenarioD_LastProductApproved(t *testing.T) {
	recs := threeProducts()
	state := &WorkflowState{Stage: StageAwaitingProductApproval, SupplierRecommendations: recs, ProductIndex: 2}

	next := Advance(state, IntentApprove)
	if next.Stage != StageSupplierApproved || len(next.ApprovedProducts) != 1 || next.ApprovedProducts[0].ProductID != "P3" {
		t.Fatalf("orchestrator:orchestrator_test - next = %+v", next)
	}

	s := newStubs(t)
	out := s.orchestrator().Turn(context.Background(), TurnInput{UserMessage: "yes", State: state})
	if s.poCalls.Load() != 1 || len(s.lastPORecs) != 1 || s.lastPORecs[0].ProductID != "P3" {
		t.Errorf("orchestrator:orchestrator_test - PO worker got %+v", s.lastPORecs)
	}
	if out.State.Stage != StageInitial || !strings.Contains(out.Response, "📋 **Purchase Order Generation:**\nPO summary") {
		t.Errorf("orchestrator:orchestrator_test - stage %s response:\n%s", out.State.Stage, out.Response)
	}
}

func TestScenarioE_UnregisteredWorker(t *testing.T) {
	s := newStubs(t, cards.InventoryMonitor)
	req := envelope.NewRequest(MethodCheckInventory, nil, cards.Orchestrator, cards.InventoryMonitor)
	resp := s.router.Route(context.Background(), req)
	if resp.Error == nil || resp.Error.Code != envelope.CodeAgentUnavailable || resp.Result != nil {
		t.Errorf("orchestrator:orchestrator_test - response = %+v", resp)
	}
}

func TestProductLoop_TakesExactlyNTurns(t *testing.T) {
	tests := []struct {
		name      string
		decisions []Intent
		wantStage Stage
		wantIDs   []string
	}{
		{"mixed", []Intent{IntentApprove, IntentReject, IntentApprove}, StageSupplierApproved, []string{"P1", "P3"}},
		{"all approved", []Intent{IntentApprove, IntentApprove, IntentApprove}, StageSupplierApproved, []string{"P1", "P2", "P3"}},
		{"all rejected", []Intent{IntentReject, IntentReject, IntentReject}, StageRejected, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &WorkflowState{Stage: StageAwaitingProductApproval, SupplierRecommendations: threeProducts()}
			for i, d := range tt.decisions {
				before := len(state.ApprovedProducts)
				state = Advance(state, IntentNone)
				if state.Stage != StageAwaitingProductApproval || state.ProductIndex != i {
					t.Fatalf("orchestrator:orchestrator_test - unclear reply moved the loop: %+v", state)
				}
				state = Advance(state, d)
				grew := len(state.ApprovedProducts) - before
				if (d == IntentApprove && grew != 1) || (d == IntentReject && grew != 0) {
					t.Fatalf("orchestrator:orchestrator_test - turn %d: approved list grew by %d", i, grew)
				}
				if i < len(tt.decisions)-1 && state.Stage != StageAwaitingProductApproval {
					t.Fatalf("orchestrator:orchestrator_test - loop ended after %d turns", i+1)
				}
			}
			if state.Stage != tt.wantStage || len(state.ApprovedProducts) != len(tt.wantIDs) {
				t.Fatalf("orchestrator:orchestrator_test - final = %s with %d approved", state.Stage, len(state.ApprovedProducts))
			}
			for i, id := range tt.wantIDs {
				if state.ApprovedProducts[i].ProductID != id {
					t.Errorf("orchestrator:orchestrator_test - approved[%d] = %s, want %s", i, state.ApprovedProducts[i].ProductID, id)
				}
			}
		})
	}
}

func TestReplayFromApproved_IsIdempotent(t *testing.T) {
	s := newStubs(t)
	s.suppliers = threeProducts()
	o := s.orchestrator()
	start := &WorkflowState{Stage: StageApproved, ReorderRecommendations: []procurement.ReorderRecommendation{reorder("P1", "Bearings", 1, 9)}}

	run := func() []string {
		state := o.Execute(context.Background(), start)
		for _, d := range []Intent{IntentApprove, IntentReject, IntentApprove} {
			state = Advance(state, d)
		}
		var ids []string
		for _, r := range state.ApprovedProducts {
			ids = append(ids, r.ProductID)
		}
		return ids
	}
	first, second := run(), run()
	if strings.Join(first, ",") != "P1,P3" || strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("orchestrator:orchestrator_test - replays differ: %v vs %v", first, second)
	}
}

func TestFailureSemantics(t *testing.T) {
	awaiting := &WorkflowState{
		Stage:                  StageAwaitingApproval,
		ReorderRecommendations: []procurement.ReorderRecommendation{reorder("P1", "Bearings", 1, 9)},
		InventorySummary:       "inventory summary",
	}
	tests := []struct {
		name      string
		missing   string
		message   string
		state     *WorkflowState
		wantStage Stage
		wantText  string
	}{
		{"inventory", cards.InventoryMonitor, "check inventory", nil, StageInitial,
			"❌ Error checking inventory: Agent workflow not registered: inventory_monitor"},
		{"supplier", cards.SupplierSelector, "yes", awaiting, StageAwaitingApproval,
			"❌ Error during supplier selection: Agent workflow not registered: supplier_selector"},
		{"po", cards.PurchaseOrder, "yes", &WorkflowState{Stage: StageAwaitingProductApproval, SupplierRecommendations: threeProducts()[:1]},
			StageInitial, "❌ Error during PO generation: Agent workflow not registered: purchase_order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStubs(t, tt.missing)
			out := s.orchestrator().Turn(context.Background(), TurnInput{UserMessage: tt.message, State: tt.state})
			if out.State.Stage != tt.wantStage {
				t.Errorf("orchestrator:orchestrator_test - stage = %s, want %s", out.State.Stage, tt.wantStage)
			}
			if !strings.Contains(out.Response, tt.wantText) {
				t.Errorf("orchestrator:orchestrator_test - response missing %q:\n%s", tt.wantText, out.Response)
			}
		})
	}
}

func TestSupplierSelection_NoQuotes(t *testing.T) {
	s := newStubs(t)
	state := &WorkflowState{Stage: StageApproved}
	out := s.orchestrator().Turn(context.Background(), TurnInput{UserMessage: "", State: state})
	if out.State.Stage != StageInitial || !strings.HasPrefix(out.Response, NoSupplierMessage) {
		t.Errorf("orchestrator:orchestrator_test - stage %s response %q", out.State.Stage, out.Response)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		state     WorkflowState
		wantText  string
		wantStage Stage
	}{
		{"rejected", WorkflowState{Stage: StageRejected}, CancelledMessage, StageInitial},
		{"complete without details", WorkflowState{Stage: StageComplete}, NoDetailsMessage, StageInitial},
		{"complete", WorkflowState{Stage: StageComplete, SupplierSummary: "S", POSummary: "P"},
			"📊 **Supplier Selection Results:**\nS\n\n📋 **Purchase Order Generation:**\nP", StageInitial},
		{"awaiting list", WorkflowState{Stage: StageAwaitingApproval, ReorderRecommendations: []procurement.ReorderRecommendation{reorder("P1", "Bearings", 3, 9)}},
			"📦 Items needing reorder (1 items):\n  • Bearings: 3 in stock (reorder at 9)\n" + AwaitingPrompt, StageAwaitingApproval},
		{"notice first", WorkflowState{Stage: StageError, Notice: "boom"}, "boom\n" + RestartHint, StageInitial},
		{"mid execution", WorkflowState{Stage: StageApproved}, ProcessingMessage, StageApproved},
	}
	for _, tt := range tests {
		text, next := Render(&tt.state)
		if text != tt.wantText || next.Stage != tt.wantStage || next.Notice != "" {
			t.Errorf("orchestrator:orchestrator_test - %s: got %q (%s)", tt.name, text, next.Stage)
		}
	}
}

func TestTurn_Gates(t *testing.T) {
	s := newStubs(t)
	s.inventory = []procurement.ReorderRecommendation{reorder("P1", "Bearings", 5, 50)}
	s.suppliers = threeProducts()[:2]
	o := s.orchestrator()
	gates := hitl.NewManager()
	ctx := context.Background()

	out := o.Turn(ctx, TurnInput{UserMessage: "check inventory", Gates: gates})
	poGate := out.State.PendingGateID
	if req, ok := gates.Get(poGate); !ok || req.Kind != hitl.KindPOCreation {
		t.Fatalf("orchestrator:orchestrator_test - PO creation gate not open: %q", poGate)
	}

	out = o.Turn(ctx, TurnInput{UserMessage: "maybe later", State: out.State, Gates: gates})
	if out.State.PendingGateID != poGate || out.State.Stage != StageAwaitingApproval {
		t.Errorf("orchestrator:orchestrator_test - unclear reply replaced gate: %+v", out.State)
	}

	out = o.Turn(ctx, TurnInput{UserMessage: "1", State: out.State, Gates: gates})
	if resp, ok := gates.Response(poGate); !ok || resp.Status != hitl.StatusApproved {
		t.Fatalf("orchestrator:orchestrator_test - PO gate response = %+v", resp)
	}
	productGate := out.State.PendingGateID
	if req, ok := gates.Get(productGate); !ok || req.Kind != hitl.KindSupplierSelection || out.State.Stage != StageAwaitingProductApproval {
		t.Fatalf("orchestrator:orchestrator_test - product gate not open: %+v", out.State)
	}

	out = o.Turn(ctx, TurnInput{UserMessage: "Acme", State: out.State, Gates: gates})
	if resp, _ := gates.Response(productGate); resp == nil || resp.Status != hitl.StatusApproved || resp.SelectedOption != "SUP001" {
		t.Errorf("orchestrator:orchestrator_test - supplier pick = %+v", resp)
	}
	if out.State.ProductIndex != 1 || len(out.State.ApprovedProducts) != 1 {
		t.Errorf("orchestrator:orchestrator_test - loop state = %+v", out.State)
	}

	out = o.Turn(ctx, TurnInput{UserMessage: "check inventory", State: out.State, Gates: gates})
	if len(gates.Pending()) != 1 || gates.Pending()[0].Kind != hitl.KindSupplierSelection {
		t.Errorf("orchestrator:orchestrator_test - pending gates = %+v", gates.Pending())
	}

	out = o.Turn(ctx, TurnInput{UserMessage: "no", State: out.State, Gates: gates})
	if out.State.Stage != StageInitial || out.State.PendingGateID != "" || len(gates.Pending()) != 0 {
		t.Errorf("orchestrator:orchestrator_test - gates left open after completion: %+v", gates.Pending())
	}
	if s.poCalls.Load() != 1 {
		t.Errorf("orchestrator:orchestrator_test - po calls = %d", s.poCalls.Load())
	}
}

func TestTurn_PublishesEvents(t *testing.T) {
	s := newStubs(t)
	var got []*events.TurnEvent
	pub := events.NewCallbackPublisher(nil, func(_ context.Context, e *events.TurnEvent) error {
		got = append(got, e)
		return errors.New("sink offline")
	})
	o := NewOrchestrator(NewOrchestratorParams{Sender: s.router, Publisher: pub})

	out := o.Turn(context.Background(), TurnInput{SessionID: "s1", UserMessage: "hi", State: &WorkflowState{Stage: "bogus"}})
	if out.State.Stage != StageInitial {
		t.Errorf("orchestrator:orchestrator_test - stage = %s", out.State.Stage)
	}
	if len(got) != 1 || got[0].SessionID != "s1" || got[0].FromStage != string(StageInitial) || got[0].ToStage != string(StageInitial) {
		t.Errorf("orchestrator:orchestrator_test - events = %+v", got)
	}
}

func TestEndToEnd_WithReferenceWorkers(t *testing.T) {
	cat, err := workers.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	reg, err := cards.NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	r := router.NewRouter(router.NewRouterParams{Cards: reg})
	if err := workers.NewSet(cat, workers.Options{}).Register(r); err != nil {
		t.Fatal(err)
	}
	o := NewOrchestrator(NewOrchestratorParams{Sender: r})
	gates := hitl.NewManager()
	gates.SetConfig(hitl.KindHighValueApproval, hitl.GateConfig{Enabled: true, Threshold: 400})

	var state *WorkflowState
	var out *TurnOutput
	for _, msg := range []string{"check inventory", "yes", "yes", "no", "yes"} {
		out = o.Turn(context.Background(), TurnInput{SessionID: "e2e", UserMessage: msg, State: state, Gates: gates})
		state = out.State
	}
	if state.Stage != StageInitial || len(state.PurchaseOrders) != 1 {
		t.Fatalf("orchestrator:orchestrator_test - final state = %+v", state)
	}
	po := state.PurchaseOrders[0]
	if po.SupplierID != "SUP001" || len(po.LineItems) != 2 {
		t.Errorf("orchestrator:orchestrator_test - PO = %+v", po)
	}
	for _, part := range []string{"Supplier Selection Results", "Purchase Order Generation Complete!", "exceeds the high-value threshold"} {
		if !strings.Contains(out.Response, part) {
			t.Errorf("orchestrator:orchestrator_test - response missing %q:\n%s", part, out.Response)
		}
	}
	if pending := gates.Pending(); len(pending) != 1 || pending[0].Kind != hitl.KindHighValueApproval {
		t.Errorf("orchestrator:orchestrator_test - pending = %+v", pending)
	}
	if stats := o.Client().Stats(); stats.TotalRequests != 3 || stats.Failed != 0 {
		t.Errorf("orchestrator:orchestrator_test - client stats = %+v", stats)
	}
}

func TestWorkerAdapter(t *testing.T) {
	s := newStubs(t)
	s.inventory = []procurement.ReorderRecommendation{reorder("P1", "Bearings", 5, 50)}
	o := s.orchestrator()
	if err := s.router.RegisterWorker(cards.Orchestrator, NewWorker(o)); err != nil {
		t.Fatal(err)
	}

	resp := s.router.Route(context.Background(), envelope.NewRequest("coordinate_workflow",
		map[string]any{"user_message": "check inventory"}, "cli", ""))
	if resp.Error != nil || resp.Result["workflow_stage"] != string(StageAwaitingApproval) {
		t.Fatalf("orchestrator:orchestrator_test - coordinate = %+v", resp)
	}

	resp = s.router.Route(context.Background(), envelope.NewRequest("parse_user_input",
		map[string]any{"user_message": "yes", "workflow_stage": "awaiting_approval"}, "cli", ""))
	if resp.Error != nil || resp.Result["intent"] != "approve" || resp.Result["workflow_stage"] != string(StageApproved) {
		t.Errorf("orchestrator:orchestrator_test - parse = %+v", resp)
	}

	resp = s.router.Route(context.Background(), envelope.NewRequest("generate_response",
		map[string]any{"workflow_stage": "rejected"}, "cli", ""))
	if resp.Error != nil || resp.Result["agent_response"] != CancelledMessage {
		t.Errorf("orchestrator:orchestrator_test - render = %+v", resp)
	}

	resp = s.router.Route(context.Background(), envelope.NewRequest("generate_response",
		map[string]any{"workflow_stage": "sideways"}, "cli", ""))
	if resp.Error == nil || resp.Error.Code != envelope.CodeInvalidParams {
		t.Errorf("orchestrator:orchestrator_test - bad stage = %+v", resp)
	}
}
