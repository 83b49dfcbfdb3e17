package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/procurement"
)

const executeLogPrefix = "orchestrator:execute"

// Worker methods called by the orchestrator.
const (
	MethodCheckInventory        = "check_inventory"
	MethodSelectSupplier        = "select_supplier"
	MethodGeneratePurchaseOrder = "generate_purchase_order"
)

// NoSupplierMessage is shown when no supplier can source any item.
const NoSupplierMessage = "No supplier could quote the items needing reorder."

// Execute performs the worker call owed by the state's stage and returns the resulting
// state. Stages that owe no call are returned unchanged. Worker failures never escape:
// they become an inline message and a safe stage.
func (o *Orchestrator) Execute(ctx context.Context, state *WorkflowState) *WorkflowState {
	next := state.Clone()
	switch state.Stage {
	case StageInitial:
		o.runInventoryCheck(ctx, next)
	case StageApproved:
		o.runSupplierSelection(ctx, next)
	case StageSupplierApproved:
		o.runPOGeneration(ctx, next)
	}
	return next
}

func (o *Orchestrator) runInventoryCheck(ctx context.Context, s *WorkflowState) {
	var out struct {
		Recommendations []procurement.ReorderRecommendation `json:"reorder_recommendations"`
		Summary         string                              `json:"summary_message"`
	}
	err := o.call(ctx, MethodCheckInventory, map[string]any{"check_all": true}, cards.InventoryMonitor, &out)
	s.resetApproval()
	s.Stage = StageInitial
	if err != nil {
		s.ReorderRecommendations = nil
		s.InventorySummary = "❌ Error checking inventory: " + err.Error()
		return
	}
	s.ReorderRecommendations = out.Recommendations
	s.InventorySummary = out.Summary
	slog.Info(fmt.Sprintf("%s - Inventory check found %d item(s) to reorder", executeLogPrefix, len(out.Recommendations)))
}

func (o *Orchestrator) runSupplierSelection(ctx context.Context, s *WorkflowState) {
	params, err := envelope.ToParams(map[string]any{
		"items_to_source": procurement.SourcingItems(s.ReorderRecommendations),
	})
	var out struct {
		Recommendations []procurement.SupplierRecommendation `json:"recommendations"`
		Summary         string                               `json:"summary_message"`
	}
	if err == nil {
		err = o.call(ctx, MethodSelectSupplier, params, cards.SupplierSelector, &out)
	}
	s.resetApproval()
	if err != nil {
		s.Stage = StageAwaitingApproval
		s.Notice = "❌ Error during supplier selection: " + err.Error()
		return
	}
	if len(out.Recommendations) == 0 {
		s.Stage = StageError
		s.Notice = NoSupplierMessage
		return
	}
	s.SupplierRecommendations = out.Recommendations
	s.SupplierSummary = out.Summary
	s.Stage = StageAwaitingProductApproval
	slog.Info(fmt.Sprintf("%s - Supplier selection returned %d recommendation(s)", executeLogPrefix, len(out.Recommendations)))
}

func (o *Orchestrator) runPOGeneration(ctx context.Context, s *WorkflowState) {
	recs := s.ApprovedProducts
	if len(recs) == 0 {
		recs = s.SupplierRecommendations
	}
	params, err := envelope.ToParams(map[string]any{"recommendations": recs})
	var out struct {
		PurchaseOrders []procurement.PurchaseOrder `json:"purchase_orders"`
		Summary        string                      `json:"summary_message"`
	}
	if err == nil {
		err = o.call(ctx, MethodGeneratePurchaseOrder, params, cards.PurchaseOrder, &out)
	}
	s.Stage = StageComplete
	if err != nil {
		s.PurchaseOrders = nil
		s.POSummary = "❌ Error during PO generation: " + err.Error()
		return
	}
	s.PurchaseOrders = out.PurchaseOrders
	s.POSummary = out.Summary
	for _, po := range out.PurchaseOrders {
		slog.Info(fmt.Sprintf("%s - Generated %s for %s ($%.2f)", executeLogPrefix, po.PONumber, po.SupplierName, po.TotalAmount))
	}
}

// call routes method to target and decodes the result into out. A protocol error is
// returned with its message only.
func (o *Orchestrator) call(ctx context.Context, method string, params map[string]any, target string, out any) error {
	resp, err := o.client.Send(ctx, method, params, target)
	if err != nil {
		if info, ok := envelope.AsErrorInfo(err); ok {
			return errors.New(info.Message)
		}
		return err
	}
	if resp.Error != nil {
		return errors.New(resp.Error.Message)
	}
	if err := envelope.DecodeParams(resp.Result, out); err != nil {
		return fmt.Errorf("unexpected %s result: %w", method, err)
	}
	return nil
}
