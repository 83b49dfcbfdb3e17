package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/procurement"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

const supplierLogPrefix = "workers:supplier"

// Comparison criteria accepted by compare_suppliers.
const (
	CriteriaPrice    = "price"
	CriteriaLeadTime = "lead_time"
)

type supplierSelector struct {
	catalog *Catalog
}

type sourcingParams struct {
	ItemsToSource []procurement.SourcingItem `json:"items_to_source"`
	ItemsToOrder  []procurement.SourcingItem `json:"items_to_order"`
	SupplierIDs   []string                   `json:"supplier_ids"`
}

func (p sourcingParams) items() []procurement.SourcingItem {
	if len(p.ItemsToSource) > 0 {
		return p.ItemsToSource
	}
	return p.ItemsToOrder
}

type compareParams struct {
	Quotes   []procurement.SupplierQuote `json:"quotes"`
	Criteria string                      `json:"criteria"`
}

type quoteParams struct {
	SupplierID string `json:"supplier_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

// NewSupplierSelector builds the supplier_selector worker over catalog.
func NewSupplierSelector(catalog *Catalog) *worker.Server {
	sel := &supplierSelector{catalog: catalog}
	s := worker.NewServer(cards.SupplierSelector, "Supplier Selector Agent", "")
	s.Register("select_supplier", sel.selectSupplier, worker.HandlerOpts{
		Description: "Recommend the best supplier for each item to source",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"items_to_source": map[string]any{"type": "array"},
		}, "required": []string{"items_to_source"}},
	})
	s.Register("query_suppliers", sel.querySuppliers, worker.HandlerOpts{
		Description: "Query suppliers for quotes",
	})
	s.Register("compare_suppliers", sel.compareSuppliers, worker.HandlerOpts{
		Description: "Compare supplier quotes by price or lead time",
	})
	s.Register("get_supplier_quote", sel.getSupplierQuote, worker.HandlerOpts{
		Description: "Get a quote from a specific supplier",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"supplier_id": map[string]any{"type": "string"},
			"product_id":  map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "integer"},
		}, "required": []string{"supplier_id", "product_id", "quantity"}},
	})
	return s
}

func decodeSourcing(params map[string]any) (sourcingParams, error) {
	var p sourcingParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return p, envelope.NewError(envelope.CodeInvalidParams, "Invalid items_to_source", map[string]any{"error": err.Error()})
	}
	return p, nil
}

func (sel *supplierSelector) selectSupplier(_ context.Context, params map[string]any) (map[string]any, error) {
	p, err := decodeSourcing(params)
	if err != nil {
		return nil, err
	}
	if _, ok := params["items_to_source"]; !ok {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "items_to_source is required", nil)
	}
	quotes := sel.collectQuotes(p.items(), p.SupplierIDs)
	recs := RecommendSuppliers(quotes)
	slog.Info(fmt.Sprintf("%s - Generated %d recommendations from %d quotes", supplierLogPrefix, len(recs), len(quotes)))
	return envelope.ToParams(map[string]any{
		"recommendations": recs,
		"quotes":          quotes,
		"summary_message": SupplierSummary(recs),
	})
}

func (sel *supplierSelector) querySuppliers(_ context.Context, params map[string]any) (map[string]any, error) {
	p, err := decodeSourcing(params)
	if err != nil {
		return nil, err
	}
	quotes := sel.collectQuotes(p.items(), p.SupplierIDs)
	recs := RecommendSuppliers(quotes)
	return envelope.ToParams(map[string]any{
		"quotes":       quotes,
		"best_options": recs,
		"summary":      SupplierSummary(recs),
	})
}

func (sel *supplierSelector) compareSuppliers(_ context.Context, params map[string]any) (map[string]any, error) {
	var p compareParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Invalid quotes", map[string]any{"error": err.Error()})
	}
	if p.Criteria == "" {
		p.Criteria = CriteriaPrice
	}
	if len(p.Quotes) == 0 {
		return map[string]any{"comparison": []any{}, "winner": nil, "criteria": p.Criteria, "reason": "No quotes to compare"}, nil
	}

	sorted := append([]procurement.SupplierQuote(nil), p.Quotes...)
	switch p.Criteria {
	case CriteriaPrice:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalCost < sorted[j].TotalCost })
	case CriteriaLeadTime:
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LeadTimeDays < sorted[j].LeadTimeDays })
	default:
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Unsupported criteria: "+p.Criteria,
			map[string]any{"supported": []string{CriteriaPrice, CriteriaLeadTime}})
	}
	return envelope.ToParams(map[string]any{
		"comparison": sorted,
		"winner":     sorted[0],
		"criteria":   p.Criteria,
		"reason":     fmt.Sprintf("Best %s among %d options", p.Criteria, len(sorted)),
	})
}

func (sel *supplierSelector) getSupplierQuote(_ context.Context, params map[string]any) (map[string]any, error) {
	var p quoteParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Invalid quote request", map[string]any{"error": err.Error()})
	}
	if p.Quantity <= 0 {
		p.Quantity = 1
	}
	supplier, ok := sel.catalog.Supplier(p.SupplierID)
	if !ok {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Supplier not found: "+p.SupplierID, nil)
	}
	entry, ok := supplier.Catalog[p.ProductID]
	if !ok {
		return nil, envelope.NewError(envelope.CodeInvalidParams,
			fmt.Sprintf("Supplier %s does not carry product %s", p.SupplierID, p.ProductID), nil)
	}
	return envelope.ToParams(map[string]any{
		"supplier_id": p.SupplierID,
		"product_id":  p.ProductID,
		"quantity":    p.Quantity,
		"quote":       buildQuote(supplier, p.ProductID, entry, p.Quantity),
	})
}

// collectQuotes asks every supplier (or only supplierIDs) for every item it carries.
func (sel *supplierSelector) collectQuotes(items []procurement.SourcingItem, supplierIDs []string) []procurement.SupplierQuote {
	allowed := make(map[string]bool, len(supplierIDs))
	for _, id := range supplierIDs {
		allowed[id] = true
	}
	quotes := []procurement.SupplierQuote{}
	for _, item := range items {
		for _, s := range sel.catalog.Suppliers() {
			if len(allowed) > 0 && !allowed[s.ID] {
				continue
			}
			entry, ok := s.Catalog[item.ProductID]
			if !ok {
				continue
			}
			quotes = append(quotes, buildQuote(s, item.ProductID, entry, item.QuantityNeeded))
		}
	}
	return quotes
}

// buildQuote prices qty units, raised to the supplier's minimum order quantity.
func buildQuote(s Supplier, productID string, entry CatalogEntry, qty int) procurement.SupplierQuote {
	qty = max(qty, entry.MinOrderQuantity)
	return procurement.SupplierQuote{
		SupplierID:       s.ID,
		SupplierName:     s.Name,
		ProductID:        productID,
		ProductName:      entry.ProductName,
		UnitPrice:        entry.UnitPrice,
		LeadTimeDays:     entry.LeadTimeDays,
		MinOrderQuantity: entry.MinOrderQuantity,
		QuantityNeeded:   qty,
		TotalCost:        entry.UnitPrice * float64(qty),
	}
}

// RecommendSuppliers picks the cheapest quote per product, breaking ties on lead time.
// Products keep the order in which they first appear in quotes.
func RecommendSuppliers(quotes []procurement.SupplierQuote) []procurement.SupplierRecommendation {
	var order []string
	byProduct := map[string][]procurement.SupplierQuote{}
	for _, q := range quotes {
		if _, ok := byProduct[q.ProductID]; !ok {
			order = append(order, q.ProductID)
		}
		byProduct[q.ProductID] = append(byProduct[q.ProductID], q)
	}

	recs := make([]procurement.SupplierRecommendation, 0, len(order))
	for _, id := range order {
		qs := byProduct[id]
		sort.SliceStable(qs, func(i, j int) bool {
			if qs[i].TotalCost != qs[j].TotalCost {
				return qs[i].TotalCost < qs[j].TotalCost
			}
			return qs[i].LeadTimeDays < qs[j].LeadTimeDays
		})
		best := qs[0]
		recs = append(recs, procurement.SupplierRecommendation{
			ProductID:               best.ProductID,
			ProductName:             best.ProductName,
			QuantityNeeded:          best.QuantityNeeded,
			RecommendedSupplierID:   best.SupplierID,
			RecommendedSupplierName: best.SupplierName,
			UnitPrice:               best.UnitPrice,
			TotalCost:               best.TotalCost,
			LeadTimeDays:            best.LeadTimeDays,
			Reason:                  recommendationReason(qs),
		})
	}
	return recs
}

func recommendationReason(sorted []procurement.SupplierQuote) string {
	if len(sorted) == 1 {
		return "Only supplier available"
	}
	best, next := sorted[0], sorted[1]
	if savings := next.TotalCost - best.TotalCost; savings > 0 {
		return fmt.Sprintf("Lowest cost (saves $%.2f)", savings)
	}
	if best.LeadTimeDays < next.LeadTimeDays {
		return fmt.Sprintf("Fastest delivery (%d days faster)", next.LeadTimeDays-best.LeadTimeDays)
	}
	return "Best overall value"
}

// SupplierSummary renders recommendations for the user.
func SupplierSummary(recs []procurement.SupplierRecommendation) string {
	lines := []string{fmt.Sprintf("📊 Supplier Analysis Complete - Found best prices for %d item(s):\n", len(recs))}
	for _, r := range recs {
		lines = append(lines, fmt.Sprintf("🏷️  %s (x%d): %s - $%.2f/unit (Total: $%.2f, %d days) - %s",
			r.ProductName, r.QuantityNeeded, r.RecommendedSupplierName, r.UnitPrice, r.TotalCost, r.LeadTimeDays, r.Reason))
	}
	return strings.Join(lines, "\n")
}
