package workers

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/procurement"
	"github.com/morezero/procurement-assistant/pkg/router"
	"github.com/morezero/procurement-assistant/pkg/validation"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

func mustCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("workers:workers_test - DefaultCatalog: %v", err)
	}
	return cat
}

func call(t *testing.T, s *worker.Server, method string, params map[string]any) *envelope.Response {
	t.Helper()
	return s.HandleRequest(context.Background(), envelope.NewRequest(method, params, "orchestrator", s.ID()))
}

func decode[T any](t *testing.T, resp *envelope.Response, key string) T {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("workers:workers_test - unexpected error %+v", resp.Error)
	}
	var out T
	if err := envelope.DecodeField(resp.Result, key, &out); err != nil {
		t.Fatalf("workers:workers_test - decode %s: %v", key, err)
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 0.005 }

func TestParseCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "inventory: ["},
		{"missing item id", "inventory:\n  - name: x\n"},
		{"duplicate item", "inventory:\n  - item_id: A\n  - item_id: A\n"},
		{"missing supplier id", "suppliers:\n  - name: x\n"},
	}
	for _, tt := range tests {
		if _, err := ParseCatalog([]byte(tt.doc)); err == nil {
			t.Errorf("workers:workers_test - %s: expected error", tt.name)
		}
	}
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "inventory:\n  - item_id: X1\n    name: Widget\n    current_stock: 1\n    reorder_point: 10\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("workers:workers_test - LoadCatalog: %v", err)
	}
	if it, ok := cat.Item("X1"); !ok || it.QuantityNeeded() != 9 {
		t.Errorf("workers:workers_test - item = %+v", it)
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("workers:workers_test - expected error for missing file")
	}
	if cat.SupplierContact("SUP404") != "Contact information not available" {
		t.Error("workers:workers_test - unknown supplier contact")
	}
}

func TestInventory_CheckInventory(t *testing.T) {
	s := NewInventoryMonitor(mustCatalog(t))
	resp := call(t, s, "check_inventory", map[string]any{"check_all": true})

	recs := decode[[]procurement.ReorderRecommendation](t, resp, "reorder_recommendations")
	want := []struct {
		id       string
		qty      int
		priority string
	}{
		{"P001", 35, procurement.PriorityHigh},
		{"P002", 2, procurement.PriorityNormal},
		{"P004", 8, procurement.PriorityLow},
	}
	if len(recs) != len(want) {
		t.Fatalf("workers:workers_test - got %d recommendations, want %d", len(recs), len(want))
	}
	for i, w := range want {
		if recs[i].Item.ItemID != w.id || recs[i].QuantityToOrder != w.qty || recs[i].Priority != w.priority {
			t.Errorf("workers:workers_test - rec %d = %+v, want %+v", i, recs[i], w)
		}
	}
	if recs[0].Reason != "Current stock (15) below reorder point (50)" {
		t.Errorf("workers:workers_test - reason = %q", recs[0].Reason)
	}

	summary := decode[string](t, resp, "summary_message")
	for _, line := range []string{
		"Found 3 item(s) that need reordering",
		"🔴 Industrial Bearings (#P001): 15 units in stock (reorder at 50)",
		"🟡 Safety Gloves (#P004): 22 units in stock (reorder at 30)",
	} {
		if !strings.Contains(summary, line) {
			t.Errorf("workers:workers_test - summary missing %q:\n%s", line, summary)
		}
	}
}

func TestInventory_FilterAndAllStocked(t *testing.T) {
	cat := mustCatalog(t)
	s := NewInventoryMonitor(cat)

	resp := call(t, s, "check_inventory", map[string]any{"check_all": false, "product_ids": []string{"P002", "P003"}})
	if low := decode[[]procurement.InventoryItem](t, resp, "low_stock_items"); len(low) != 1 || low[0].ItemID != "P002" {
		t.Errorf("workers:workers_test - filtered low stock = %+v", low)
	}

	for _, id := range []string{"P001", "P002", "P004"} {
		cat.SetStock(id, 1000)
	}
	resp = call(t, s, "check_inventory", nil)
	if got := decode[string](t, resp, "summary_message"); got != AllStockedMessage {
		t.Errorf("workers:workers_test - summary = %q", got)
	}
	if n := decode[int](t, call(t, s, "get_low_stock_items", nil), "count"); n != 0 {
		t.Errorf("workers:workers_test - low stock count = %d", n)
	}
}

func TestInventory_CalculateReorderQuantities(t *testing.T) {
	s := NewInventoryMonitor(mustCatalog(t))
	resp := call(t, s, "calculate_reorder_quantities", map[string]any{
		"low_stock_items": []map[string]any{{"item_id": "Z", "name": "Zed", "current_stock": 2, "reorder_point": 10}},
	})
	if n := decode[int](t, resp, "total_items"); n != 1 {
		t.Errorf("workers:workers_test - total_items = %d", n)
	}
	resp = call(t, s, "calculate_reorder_quantities", map[string]any{"low_stock_items": "nope"})
	if resp.Error == nil || resp.Error.Code != envelope.CodeInvalidParams {
		t.Errorf("workers:workers_test - error = %+v", resp.Error)
	}
}

func sourcing(t *testing.T, cat *Catalog) []procurement.SourcingItem {
	t.Helper()
	inv := call(t, NewInventoryMonitor(cat), "check_inventory", map[string]any{"check_all": true})
	return procurement.SourcingItems(decode[[]procurement.ReorderRecommendation](t, inv, "reorder_recommendations"))
}

func TestSupplier_SelectSupplier(t *testing.T) {
	cat := mustCatalog(t)
	s := NewSupplierSelector(cat)
	items := sourcing(t, cat)

	params, err := envelope.ToParams(map[string]any{"items_to_source": items})
	if err != nil {
		t.Fatal(err)
	}
	resp := call(t, s, "select_supplier", params)
	recs := decode[[]procurement.SupplierRecommendation](t, resp, "recommendations")

	want := []struct {
		product, supplier string
		qty               int
		total             float64
		reason            string
	}{
		{"P001", "SUP001", 35, 413.00, "Lowest cost (saves $10.50)"},
		{"P002", "SUP003", 2, 860.00, "Lowest cost (saves $30.00)"},
		{"P004", "SUP001", 10, 45.00, "Lowest cost (saves $53.75)"},
	}
	if len(recs) != len(want) {
		t.Fatalf("workers:workers_test - got %d recommendations", len(recs))
	}
	for i, w := range want {
		r := recs[i]
		if r.ProductID != w.product || r.RecommendedSupplierID != w.supplier || r.QuantityNeeded != w.qty ||
			!near(r.TotalCost, w.total) || r.Reason != w.reason {
			t.Errorf("workers:workers_test - rec %d = %+v, want %+v", i, r, w)
		}
	}

	summary := decode[string](t, resp, "summary_message")
	if !strings.HasPrefix(summary, "📊 Supplier Analysis Complete - Found best prices for 3 item(s):") ||
		!strings.Contains(summary, "🏷️  Safety Gloves (x10): Acme Industrial Supply - $4.50/unit (Total: $45.00, 3 days)") {
		t.Errorf("workers:workers_test - summary:\n%s", summary)
	}

	missing := call(t, s, "select_supplier", map[string]any{})
	if missing.Error == nil || missing.Error.Code != envelope.CodeInvalidParams {
		t.Errorf("workers:workers_test - missing items error = %+v", missing.Error)
	}
}

func TestRecommendSuppliers_Reasons(t *testing.T) {
	q := func(sup string, total float64, lead int) procurement.SupplierQuote {
		return procurement.SupplierQuote{SupplierID: sup, ProductID: "P", TotalCost: total, LeadTimeDays: lead}
	}
	tests := []struct {
		name       string
		quotes     []procurement.SupplierQuote
		wantWinner string
		wantReason string
	}{
		{"only", []procurement.SupplierQuote{q("A", 10, 3)}, "A", "Only supplier available"},
		{"cheaper", []procurement.SupplierQuote{q("A", 12, 1), q("B", 10, 9)}, "B", "Lowest cost (saves $2.00)"},
		{"tie faster", []procurement.SupplierQuote{q("A", 10, 9), q("B", 10, 4)}, "B", "Fastest delivery (5 days faster)"},
		{"full tie", []procurement.SupplierQuote{q("A", 10, 4), q("B", 10, 4)}, "A", "Best overall value"},
	}
	for _, tt := range tests {
		recs := RecommendSuppliers(tt.quotes)
		if len(recs) != 1 || recs[0].RecommendedSupplierID != tt.wantWinner || recs[0].Reason != tt.wantReason {
			t.Errorf("workers:workers_test - %s: %+v", tt.name, recs)
		}
	}
}

func TestSupplier_QuoteAndCompare(t *testing.T) {
	s := NewSupplierSelector(mustCatalog(t))

	resp := call(t, s, "get_supplier_quote", map[string]any{"supplier_id": "SUP002", "product_id": "P004", "quantity": 5})
	quote := decode[procurement.SupplierQuote](t, resp, "quote")
	if quote.QuantityNeeded != 25 || !near(quote.TotalCost, 98.75) {
		t.Errorf("workers:workers_test - quote = %+v", quote)
	}

	for _, params := range []map[string]any{
		{"supplier_id": "SUP404", "product_id": "P004", "quantity": 1},
		{"supplier_id": "SUP003", "product_id": "P004", "quantity": 1},
	} {
		if r := call(t, s, "get_supplier_quote", params); r.Error == nil || r.Error.Code != envelope.CodeInvalidParams {
			t.Errorf("workers:workers_test - quote %v error = %+v", params, r.Error)
		}
	}

	quotes := []procurement.SupplierQuote{
		{SupplierID: "A", TotalCost: 50, LeadTimeDays: 2},
		{SupplierID: "B", TotalCost: 40, LeadTimeDays: 8},
	}
	params, _ := envelope.ToParams(map[string]any{"quotes": quotes, "criteria": CriteriaLeadTime})
	if w := decode[procurement.SupplierQuote](t, call(t, s, "compare_suppliers", params), "winner"); w.SupplierID != "A" {
		t.Errorf("workers:workers_test - lead time winner = %s", w.SupplierID)
	}
	params["criteria"] = CriteriaPrice
	if w := decode[procurement.SupplierQuote](t, call(t, s, "compare_suppliers", params), "winner"); w.SupplierID != "B" {
		t.Errorf("workers:workers_test - price winner = %s", w.SupplierID)
	}
	params["criteria"] = "rating"
	if r := call(t, s, "compare_suppliers", params); r.Error == nil {
		t.Error("workers:workers_test - expected unsupported criteria error")
	}
	if r := decode[string](t, call(t, s, "compare_suppliers", nil), "reason"); r != "No quotes to compare" {
		t.Errorf("workers:workers_test - empty compare reason = %q", r)
	}
}

func fixedClock() time.Time { return time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC) }

func TestPO_Generate(t *testing.T) {
	cat := mustCatalog(t)
	dir := t.TempDir()
	s := NewPurchaseOrderWorker(cat, POWorkerOptions{OutputDir: dir, Now: fixedClock})

	sel := call(t, NewSupplierSelector(cat), "select_supplier", mustParams(t, map[string]any{"items_to_source": sourcing(t, cat)}))
	recs := decode[[]procurement.SupplierRecommendation](t, sel, "recommendations")

	resp := call(t, s, "generate_purchase_order", mustParams(t, map[string]any{"recommendations": recs}))
	pos := decode[[]procurement.PurchaseOrder](t, resp, "purchase_orders")
	if len(pos) != 2 {
		t.Fatalf("workers:workers_test - got %d POs, want 2", len(pos))
	}

	first, second := pos[0], pos[1]
	if first.PONumber != "PO-20260102-001" || first.SupplierID != "SUP001" || len(first.LineItems) != 2 {
		t.Errorf("workers:workers_test - first PO = %+v", first)
	}
	if !near(first.Subtotal, 458.00) || !near(first.TaxAmount, 36.64) || !near(first.TotalAmount, 494.64) {
		t.Errorf("workers:workers_test - first PO totals = %.2f %.2f %.2f", first.Subtotal, first.TaxAmount, first.TotalAmount)
	}
	if first.SupplierContact != "orders@acme-industrial.example | 555-0101" || first.Notes != PONotes {
		t.Errorf("workers:workers_test - first PO contact/notes = %q %q", first.SupplierContact, first.Notes)
	}
	if second.PONumber != "PO-20260102-002" || second.SupplierID != "SUP003" || second.LineItems[0].LineNumber != 1 {
		t.Errorf("workers:workers_test - second PO = %+v", second)
	}

	summary := decode[string](t, resp, "summary_message")
	for _, part := range []string{
		"✅ Purchase Order Generation Complete!",
		"📄 PO-20260102-001:\n   Supplier: Acme Industrial Supply\n   Items: 2\n   Subtotal: $458.00\n   Tax (8%): $36.64\n   Total: $494.64",
		"✅ All purchase orders passed validation",
		"💾 Saved 2 file(s) to: " + dir,
	} {
		if !strings.Contains(summary, part) {
			t.Errorf("workers:workers_test - summary missing %q:\n%s", part, summary)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "PO-20260102-002.json")); err != nil {
		t.Errorf("workers:workers_test - PO file not written: %v", err)
	}
	if vs := decode[validation.Summary](t, resp, "validation_summary"); vs.Total != 2 || vs.Passed != 2 {
		t.Errorf("workers:workers_test - validation summary = %+v", vs)
	}

	// numbering continues within the day
	again := call(t, s, "create_po", mustParams(t, map[string]any{"recommendations": recs[:1]}))
	if pos := decode[[]procurement.PurchaseOrder](t, again, "purchase_orders"); pos[0].PONumber != "PO-20260102-003" {
		t.Errorf("workers:workers_test - next number = %s", pos[0].PONumber)
	}
}

func TestPO_ValidationFindingsStayInResult(t *testing.T) {
	s := NewPurchaseOrderWorker(mustCatalog(t), POWorkerOptions{Now: fixedClock})
	recs := []procurement.SupplierRecommendation{{
		ProductID: "P9", ProductName: "Press", QuantityNeeded: 150, RecommendedSupplierID: "SUP999",
		RecommendedSupplierName: "Shady Parts", UnitPrice: 10, TotalCost: 1500,
	}}
	resp := call(t, s, "generate_purchase_order", mustParams(t, map[string]any{"recommendations": recs}))
	errs := decode[[]string](t, resp, "validation_errors")
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "PO-20260102-001: Unknown or unapproved supplier") {
		t.Errorf("workers:workers_test - validation errors = %v", errs)
	}
	summary := decode[string](t, resp, "summary_message")
	if !strings.Contains(summary, "❌ Validation Errors (1):") || strings.Contains(summary, "Saved") {
		t.Errorf("workers:workers_test - summary:\n%s", summary)
	}

	empty := call(t, s, "generate_purchase_order", map[string]any{"recommendations": []any{}})
	if empty.Error == nil || empty.Error.Code != envelope.CodeInvalidParams {
		t.Errorf("workers:workers_test - empty recommendations error = %+v", empty.Error)
	}
}

func TestPO_ValidateAndSave(t *testing.T) {
	dir := t.TempDir()
	s := NewPurchaseOrderWorker(mustCatalog(t), POWorkerOptions{OutputDir: dir, Now: fixedClock})
	po := procurement.PurchaseOrder{
		PONumber: "PO-20260102-777", SupplierID: "SUP001",
		LineItems: []procurement.POLineItem{{LineNumber: 1, ProductName: "Widget", Quantity: 2, UnitPrice: 5, LineTotal: 10}},
		Subtotal:  10, TaxRate: procurement.TaxRate, TaxAmount: 0.8, TotalAmount: 10.8,
	}

	if valid := decode[bool](t, call(t, s, "validate_po", mustParams(t, map[string]any{"purchase_order": po})), "is_valid"); !valid {
		t.Error("workers:workers_test - expected valid PO")
	}
	if r := call(t, s, "validate_po", nil); r.Error == nil || r.Error.Code != envelope.CodeInvalidParams {
		t.Errorf("workers:workers_test - validate_po without order = %+v", r.Error)
	}

	saved := call(t, s, "save_po", mustParams(t, map[string]any{"purchase_order": po}))
	if path := decode[string](t, saved, "file_path"); path != filepath.Join(dir, "PO-20260102-777.json") {
		t.Errorf("workers:workers_test - file_path = %q", path)
	}
	pdf := call(t, s, "save_po", mustParams(t, map[string]any{"purchase_order": po, "format": "pdf"}))
	if ok := decode[bool](t, pdf, "success"); ok {
		t.Error("workers:workers_test - pdf format should not succeed")
	}

	noDir := NewPurchaseOrderWorker(mustCatalog(t), POWorkerOptions{})
	if r := call(t, noDir, "save_po", mustParams(t, map[string]any{"purchase_order": po})); r.Error == nil {
		t.Error("workers:workers_test - expected error without output dir")
	}
}

func TestSet_RegisterRoutesByCapability(t *testing.T) {
	set := NewSet(mustCatalog(t), Options{})
	reg, err := cards.NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	r := router.NewRouter(router.NewRouterParams{Cards: reg})
	if err := set.Register(r); err != nil {
		t.Fatalf("workers:workers_test - Register: %v", err)
	}
	if r.HandlerCount() != 3 {
		t.Errorf("workers:workers_test - handler count = %d", r.HandlerCount())
	}
	if _, ok := set.Server("purchase_order"); !ok {
		t.Error("workers:workers_test - purchase_order server missing")
	}
	resp := r.Route(context.Background(), envelope.NewRequest("get_low_stock_items", nil, "orchestrator", ""))
	if resp.Error != nil || resp.SourceWorker != "inventory_monitor" {
		t.Errorf("workers:workers_test - routed response = %+v", resp)
	}
}

func mustParams(t *testing.T, v any) map[string]any {
	t.Helper()
	p, err := envelope.ToParams(v)
	if err != nil {
		t.Fatalf("workers:workers_test - ToParams: %v", err)
	}
	return p
}
