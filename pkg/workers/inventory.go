package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/procurement"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

const inventoryLogPrefix = "workers:inventory"

// AllStockedMessage is the inventory summary when nothing needs reordering.
const AllStockedMessage = "✅ All items are adequately stocked. No reorders needed."

type inventoryMonitor struct {
	catalog *Catalog
}

type checkInventoryParams struct {
	CheckAll   *bool    `json:"check_all"`
	ProductIDs []string `json:"product_ids"`
}

type reorderParams struct {
	LowStockItems []procurement.InventoryItem `json:"low_stock_items"`
}

// NewInventoryMonitor builds the inventory_monitor worker over catalog.
func NewInventoryMonitor(catalog *Catalog) *worker.Server {
	m := &inventoryMonitor{catalog: catalog}
	s := worker.NewServer(cards.InventoryMonitor, "Inventory Monitor Agent", "")
	s.Register("check_inventory", m.checkInventory, worker.HandlerOpts{
		Description: "Check inventory levels and identify low stock items",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"check_all":   map[string]any{"type": "boolean"},
			"product_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}},
	})
	s.Register("calculate_reorder_quantities", m.calculateReorderQuantities, worker.HandlerOpts{
		Description: "Calculate recommended reorder quantities",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"low_stock_items": map[string]any{"type": "array"},
		}},
	})
	s.Register("get_low_stock_items", m.getLowStockItems, worker.HandlerOpts{
		Description: "Get all items currently below reorder point",
	})
	return s
}

func (m *inventoryMonitor) checkInventory(_ context.Context, params map[string]any) (map[string]any, error) {
	var p checkInventoryParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Invalid check_inventory params", map[string]any{"error": err.Error()})
	}

	items := m.catalog.Inventory()
	if p.CheckAll != nil && !*p.CheckAll && len(p.ProductIDs) > 0 {
		items = filterItems(items, p.ProductIDs)
	}
	low := lowStock(items)
	recs := Recommend(low)
	slog.Info(fmt.Sprintf("%s - Checked %d items, %d need reorder", inventoryLogPrefix, len(items), len(low)))

	return envelope.ToParams(map[string]any{
		"items_checked":           len(items),
		"low_stock_items":         low,
		"reorder_recommendations": recs,
		"summary_message":         InventorySummary(recs),
	})
}

func (m *inventoryMonitor) calculateReorderQuantities(_ context.Context, params map[string]any) (map[string]any, error) {
	var p reorderParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Invalid low_stock_items", map[string]any{"error": err.Error()})
	}
	recs := Recommend(lowStock(p.LowStockItems))
	return envelope.ToParams(map[string]any{
		"recommendations": recs,
		"total_items":     len(recs),
	})
}

func (m *inventoryMonitor) getLowStockItems(_ context.Context, _ map[string]any) (map[string]any, error) {
	low := lowStock(m.catalog.Inventory())
	return envelope.ToParams(map[string]any{"items": low, "count": len(low)})
}

func filterItems(items []procurement.InventoryItem, ids []string) []procurement.InventoryItem {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []procurement.InventoryItem
	for _, it := range items {
		if want[it.ItemID] {
			out = append(out, it)
		}
	}
	return out
}

func lowStock(items []procurement.InventoryItem) []procurement.InventoryItem {
	out := []procurement.InventoryItem{}
	for _, it := range items {
		if it.NeedsReorder() {
			out = append(out, it)
		}
	}
	return out
}

// Priority grades how far stock has fallen below the reorder point.
func Priority(item procurement.InventoryItem) string {
	if item.ReorderPoint <= 0 {
		return procurement.PriorityLow
	}
	shortage := float64(item.ReorderPoint-item.CurrentStock) / float64(item.ReorderPoint)
	switch {
	case shortage > 0.5:
		return procurement.PriorityHigh
	case shortage > 0.3:
		return procurement.PriorityNormal
	default:
		return procurement.PriorityLow
	}
}

// Recommend orders each low-stock item back up to its reorder point.
func Recommend(low []procurement.InventoryItem) []procurement.ReorderRecommendation {
	recs := make([]procurement.ReorderRecommendation, 0, len(low))
	for _, it := range low {
		recs = append(recs, procurement.ReorderRecommendation{
			Item:            it,
			QuantityToOrder: it.QuantityNeeded(),
			Reason:          fmt.Sprintf("Current stock (%d) below reorder point (%d)", it.CurrentStock, it.ReorderPoint),
			Priority:        Priority(it),
		})
	}
	return recs
}

// InventorySummary renders recommendations for the user.
func InventorySummary(recs []procurement.ReorderRecommendation) string {
	if len(recs) == 0 {
		return AllStockedMessage
	}
	lines := []string{fmt.Sprintf("\n⚠️  Found %d item(s) that need reordering:\n", len(recs))}
	for _, r := range recs {
		marker := "🟡"
		if r.Priority == procurement.PriorityHigh {
			marker = "🔴"
		}
		lines = append(lines, fmt.Sprintf("%s %s (#%s): %d units in stock (reorder at %d)",
			marker, r.Item.Name, r.Item.ItemID, r.Item.CurrentStock, r.Item.ReorderPoint))
	}
	return strings.Join(lines, "\n")
}
