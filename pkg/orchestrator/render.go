package orchestrator

import (
	"fmt"
	"strings"
)

// User-facing texts.
const (
	CancelledMessage     = "Operation cancelled. Type 'check inventory' to start a new check."
	NoDetailsMessage     = "Workflow completed but no details available."
	AwaitingPrompt       = "\n⏳ **Awaiting your approval.** Please type 'yes' to proceed with purchase orders or 'no' to cancel."
	CreateOrdersPrompt   = "\nWould you like me to help you create purchase orders for these items? (yes/no)"
	RestartHint          = "Type 'check inventory' to start a new check."
	ProcessingMessage    = "Processing..."
	maxListedReorderRecs = 5
)

// Render produces the reply for state and the state to persist. Terminal stages reset
// to INITIAL, and INITIAL with items to reorder moves to AWAITING_APPROVAL.
func Render(state *WorkflowState) (string, *WorkflowState) {
	next := state.Clone()
	var parts []string
	if state.Notice != "" {
		parts = append(parts, state.Notice)
	}

	switch state.Stage {
	case StageRejected:
		parts = append(parts, CancelledMessage)
		restart(next)

	case StageComplete:
		parts = append(parts, renderComplete(state)...)
		next.Stage = StageInitial

	case StageError:
		parts = append(parts, RestartHint)
		restart(next)

	case StageAwaitingProductApproval:
		parts = append(parts, renderProduct(state)...)

	case StageAwaitingApproval:
		parts = append(parts, renderReorderList(state)...)
		parts = append(parts, AwaitingPrompt)

	case StageInitial:
		parts = append(parts, state.InventorySummary)
		if len(state.ReorderRecommendations) > 0 {
			parts = append(parts, CreateOrdersPrompt)
			next.Stage = StageAwaitingApproval
		}

	default:
		parts = append(parts, ProcessingMessage)
	}

	next.Notice = ""
	return strings.Join(parts, "\n"), next
}

func renderComplete(s *WorkflowState) []string {
	var parts []string
	if s.SupplierSummary != "" {
		parts = append(parts, "📊 **Supplier Selection Results:**", s.SupplierSummary, "")
	}
	if s.POSummary != "" {
		parts = append(parts, "📋 **Purchase Order Generation:**", s.POSummary)
	}
	if len(parts) == 0 {
		parts = append(parts, NoDetailsMessage)
	}
	return parts
}

func renderProduct(s *WorkflowState) []string {
	var parts []string
	total := len(s.SupplierRecommendations)
	if s.ProductIndex == 0 && s.SupplierSummary != "" {
		parts = append(parts, "📊 **Supplier Analysis Complete:**", s.SupplierSummary, "")
	}
	if s.ProductIndex > 0 {
		parts = append(parts,
			fmt.Sprintf("📋 Progress: %d of %d products reviewed", s.ProductIndex, total),
			fmt.Sprintf("✅ Approved so far: %d", len(s.ApprovedProducts)),
			"")
	}

	rec, ok := s.CurrentProduct()
	if !ok {
		return parts
	}
	parts = append(parts,
		fmt.Sprintf("🛒 **Product %d of %d:**", s.ProductIndex+1, total),
		"",
		fmt.Sprintf("   📦 **%s** (#%s)", rec.ProductName, rec.ProductID),
		fmt.Sprintf("   📊 Quantity: %d units", rec.QuantityNeeded),
		fmt.Sprintf("   🏪 Supplier: %s", rec.RecommendedSupplierName),
		fmt.Sprintf("   💰 Price: $%.2f/unit", rec.UnitPrice),
		fmt.Sprintf("   💵 **Total: $%.2f**", rec.TotalCost),
		fmt.Sprintf("   🚚 Delivery: %d days", rec.LeadTimeDays),
	)
	if rec.Reason != "" {
		parts = append(parts, "   ℹ️  "+rec.Reason)
	}
	parts = append(parts, "", fmt.Sprintf("🤔 **Order %s from %s?** (yes/no)", rec.ProductName, rec.RecommendedSupplierName))
	return parts
}

func renderReorderList(s *WorkflowState) []string {
	if s.InventorySummary != "" {
		return []string{s.InventorySummary}
	}
	if len(s.ReorderRecommendations) == 0 {
		return nil
	}
	parts := []string{fmt.Sprintf("📦 Items needing reorder (%d items):", len(s.ReorderRecommendations))}
	for _, r := range s.ReorderRecommendations[:min(maxListedReorderRecs, len(s.ReorderRecommendations))] {
		parts = append(parts, fmt.Sprintf("  • %s: %d in stock (reorder at %d)", r.Item.Name, r.Item.CurrentStock, r.Item.ReorderPoint))
	}
	return parts
}
