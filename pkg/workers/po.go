package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/procurement"
	"github.com/morezero/procurement-assistant/pkg/validation"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

const poLogPrefix = "workers:po"

// PONotes is stamped on every generated purchase order.
const PONotes = "Auto-generated purchase order from inventory monitoring system"

// POWorkerOptions configures the purchase_order worker.
type POWorkerOptions struct {
	// Pool validates generated orders. Nil uses validation.NewPool with defaults.
	Pool *validation.Pool
	// OutputDir receives one JSON file per order. Empty disables saving.
	OutputDir string
	// Now is the clock used for PO numbers and dates. Nil uses time.Now.
	Now func() time.Time
}

type poWorker struct {
	catalog   *Catalog
	pool      *validation.Pool
	validator *validation.Validator
	outputDir string
	now       func() time.Time

	mu      sync.Mutex
	seqDate string
	seq     int
}

type generateParams struct {
	Recommendations []procurement.SupplierRecommendation `json:"recommendations"`
}

type singlePOParams struct {
	PurchaseOrder *procurement.PurchaseOrder `json:"purchase_order"`
	Format        string                     `json:"format"`
}

// NewPurchaseOrderWorker builds the purchase_order worker.
func NewPurchaseOrderWorker(catalog *Catalog, opts POWorkerOptions) *worker.Server {
	w := &poWorker{
		catalog:   catalog,
		pool:      opts.Pool,
		validator: validation.NewValidator(validation.DefaultRules()),
		outputDir: opts.OutputDir,
		now:       opts.Now,
	}
	if w.pool == nil {
		w.pool = validation.NewPool(validation.DefaultPoolConfig(), nil)
	}
	if w.now == nil {
		w.now = time.Now
	}

	s := worker.NewServer(cards.PurchaseOrder, "Purchase Order Agent", "")
	generate := worker.HandlerOpts{
		Description: "Create purchase order documents from recommendations",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{
			"recommendations": map[string]any{"type": "array"},
		}, "required": []string{"recommendations"}},
	}
	s.Register("generate_purchase_order", w.generate, generate)
	s.Register("create_po", w.generate, generate)
	s.Register("validate_po", w.validate, worker.HandlerOpts{
		Description: "Validate a purchase order document",
	})
	s.Register("save_po", w.save, worker.HandlerOpts{
		Description: "Save a purchase order to the output directory",
	})
	return s
}

func (w *poWorker) generate(ctx context.Context, params map[string]any) (map[string]any, error) {
	var p generateParams
	if err := envelope.DecodeParams(params, &p); err != nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "Invalid recommendations", map[string]any{"error": err.Error()})
	}
	if len(p.Recommendations) == 0 {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "No recommendations to order", nil)
	}

	pos := w.buildOrders(p.Recommendations)
	slog.Info(fmt.Sprintf("%s - Generated %d purchase order(s)", poLogPrefix, len(pos)))

	tasks := w.pool.ValidateAll(ctx, pos)
	var errs, warns []string
	for _, t := range tasks {
		if t.Result == nil {
			errs = append(errs, fmt.Sprintf("%s: validation %s (%s)", t.PONumber, t.Status, t.Error))
			continue
		}
		for _, e := range t.Result.Errors {
			errs = append(errs, t.PONumber+": "+e)
		}
		for _, wn := range t.Result.Warnings {
			warns = append(warns, t.PONumber+": "+wn)
		}
	}
	switch {
	case len(errs) > 0:
		slog.Error(fmt.Sprintf("%s - Validation found %d errors", poLogPrefix, len(errs)))
	case len(warns) > 0:
		slog.Warn(fmt.Sprintf("%s - Validation found %d warnings", poLogPrefix, len(warns)))
	}

	var saved []string
	if w.outputDir != "" {
		for i := range pos {
			path, err := w.write(&pos[i])
			if err != nil {
				return nil, envelope.NewError(envelope.CodeInternalError, "Error saving PO files", map[string]any{"error": err.Error()})
			}
			saved = append(saved, path)
		}
	}

	return envelope.ToParams(map[string]any{
		"purchase_orders":     pos,
		"validation_results":  tasks,
		"validation_summary":  validation.Summarize(tasks),
		"validation_errors":   errs,
		"validation_warnings": warns,
		"saved_files":         saved,
		"summary_message":     w.summary(pos, errs, warns, saved),
	})
}

// buildOrders groups recommendations by supplier, in first-seen order, and prices each
// group into one purchase order.
func (w *poWorker) buildOrders(recs []procurement.SupplierRecommendation) []procurement.PurchaseOrder {
	var order []string
	bySupplier := map[string][]procurement.SupplierRecommendation{}
	for _, r := range recs {
		if _, ok := bySupplier[r.RecommendedSupplierID]; !ok {
			order = append(order, r.RecommendedSupplierID)
		}
		bySupplier[r.RecommendedSupplierID] = append(bySupplier[r.RecommendedSupplierID], r)
	}

	now := w.now()
	pos := make([]procurement.PurchaseOrder, 0, len(order))
	for _, id := range order {
		items := bySupplier[id]
		lines := make([]procurement.POLineItem, 0, len(items))
		var subtotal float64
		for i, r := range items {
			lines = append(lines, procurement.POLineItem{
				LineNumber:  i + 1,
				ProductID:   r.ProductID,
				ProductName: r.ProductName,
				Quantity:    r.QuantityNeeded,
				UnitPrice:   r.UnitPrice,
				LineTotal:   r.TotalCost,
			})
			subtotal += r.TotalCost
		}
		tax := subtotal * procurement.TaxRate
		pos = append(pos, procurement.PurchaseOrder{
			PONumber:        w.nextNumber(now),
			DateCreated:     now.Format(time.RFC3339),
			SupplierID:      id,
			SupplierName:    items[0].RecommendedSupplierName,
			SupplierContact: w.catalog.SupplierContact(id),
			LineItems:       lines,
			Subtotal:        subtotal,
			TaxRate:         procurement.TaxRate,
			TaxAmount:       tax,
			TotalAmount:     subtotal + tax,
			Notes:           PONotes,
		})
	}
	return pos
}

// nextNumber returns PO-YYYYMMDD-NNN. The sequence restarts each day.
func (w *poWorker) nextNumber(now time.Time) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	date := now.Format("20060102")
	if date != w.seqDate {
		w.seqDate, w.seq = date, 0
	}
	w.seq++
	return fmt.Sprintf("PO-%s-%03d", date, w.seq)
}

func (w *poWorker) summary(pos []procurement.PurchaseOrder, errs, warns, saved []string) string {
	parts := []string{"✅ Purchase Order Generation Complete!\n"}
	for _, po := range pos {
		parts = append(parts, fmt.Sprintf("📄 %s:\n   Supplier: %s\n   Items: %d\n   Subtotal: $%.2f\n   Tax (8%%): $%.2f\n   Total: $%.2f",
			po.PONumber, po.SupplierName, len(po.LineItems), po.Subtotal, po.TaxAmount, po.TotalAmount))
	}
	switch {
	case len(errs) > 0:
		parts = append(parts, fmt.Sprintf("\n❌ Validation Errors (%d):", len(errs)))
		for _, e := range errs[:min(3, len(errs))] {
			parts = append(parts, "   "+e)
		}
	case len(warns) > 0:
		parts = append(parts, fmt.Sprintf("\n⚠️  Validation Warnings (%d):", len(warns)))
		for _, wn := range warns[:min(3, len(warns))] {
			parts = append(parts, "   "+wn)
		}
	default:
		parts = append(parts, "\n✅ All purchase orders passed validation")
	}
	if len(saved) > 0 {
		parts = append(parts, fmt.Sprintf("\n💾 Saved %d file(s) to: %s", len(saved), w.outputDir))
	}
	return strings.Join(parts, "\n")
}

func (w *poWorker) validate(_ context.Context, params map[string]any) (map[string]any, error) {
	var p singlePOParams
	if err := envelope.DecodeParams(params, &p); err != nil || p.PurchaseOrder == nil {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "purchase_order is required", nil)
	}
	return envelope.ToParams(w.validator.Validate(p.PurchaseOrder))
}

func (w *poWorker) save(_ context.Context, params map[string]any) (map[string]any, error) {
	var p singlePOParams
	if err := envelope.DecodeParams(params, &p); err != nil || p.PurchaseOrder == nil || p.PurchaseOrder.PONumber == "" {
		return nil, envelope.NewError(envelope.CodeInvalidParams, "purchase_order with po_number is required", nil)
	}
	if p.Format == "" {
		p.Format = "json"
	}
	if p.Format != "json" {
		return map[string]any{"success": false, "error": "Format not supported: " + p.Format}, nil
	}
	if w.outputDir == "" {
		return nil, envelope.NewError(envelope.CodeInternalError, "PO output directory is not configured", nil)
	}
	path, err := w.write(p.PurchaseOrder)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}, nil
	}
	return map[string]any{"success": true, "file_path": path, "format": p.Format}, nil
}

func (w *poWorker) write(po *procurement.PurchaseOrder) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%s - failed to create %s: %w", poLogPrefix, w.outputDir, err)
	}
	data, err := json.MarshalIndent(po, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s - failed to encode %s: %w", poLogPrefix, po.PONumber, err)
	}
	path := filepath.Join(w.outputDir, po.PONumber+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%s - failed to write %s: %w", poLogPrefix, path, err)
	}
	slog.Info(fmt.Sprintf("%s - Saved PO to %s", poLogPrefix, path))
	return path, nil
}
