// Package validation checks generated purchase orders against business rules and runs
// those checks as bounded, time-limited sub-tasks.
package validation

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/morezero/procurement-assistant/pkg/procurement"
)

const logPrefix = "validation:validator"

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

const tolerance = 0.01

// Issue is one structured finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Field    string   `json:"field,omitempty"`
}

// Result is the outcome of validating one purchase order. Errors block, warnings do not.
type Result struct {
	Valid           bool     `json:"is_valid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Issues          []Issue  `json:"issues"`
	ChecksPerformed int      `json:"checks_performed"`
	ChecksPassed    int      `json:"checks_passed"`
}

func (r *Result) add(sev Severity, field, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if sev == SeverityError {
		r.Errors = append(r.Errors, msg)
	} else {
		r.Warnings = append(r.Warnings, msg)
	}
	r.Issues = append(r.Issues, Issue{Severity: sev, Message: msg, Field: field})
}

// Count returns the number of issues of sev.
func (r *Result) Count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// Rules configures the Validator.
type Rules struct {
	HighValueThreshold float64
	MaxQuantity        int
	MaxOrderTotal      float64
	KnownSuppliers     []string
}

// DefaultRules returns the standard business rules.
func DefaultRules() Rules {
	return Rules{
		HighValueThreshold: 5000,
		MaxQuantity:        100,
		MaxOrderTotal:      50000,
		KnownSuppliers:     []string{"SUP001", "SUP002", "SUP003"},
	}
}

// Validator applies Rules to purchase orders. It is stateless and safe for concurrent use.
type Validator struct {
	rules Rules
	known map[string]bool
}

// NewValidator creates a Validator.
func NewValidator(rules Rules) *Validator {
	known := make(map[string]bool, len(rules.KnownSuppliers))
	for _, s := range rules.KnownSuppliers {
		known[s] = true
	}
	return &Validator{rules: rules, known: known}
}

// IsKnownSupplier reports whether id is an approved supplier.
func (v *Validator) IsKnownSupplier(id string) bool {
	return v.known[id]
}

// Validate runs every check against po.
func (v *Validator) Validate(po *procurement.PurchaseOrder) *Result {
	r := &Result{Errors: []string{}, Warnings: []string{}, Issues: []Issue{}}
	checks := []func(*procurement.PurchaseOrder, *Result) bool{
		v.checkHighValue,
		v.checkSupplier,
		v.checkQuantities,
		v.checkLineItems,
		v.checkTotals,
		v.checkMaximum,
	}
	for _, check := range checks {
		r.ChecksPerformed++
		if check(po, r) {
			r.ChecksPassed++
		}
	}
	r.Valid = len(r.Errors) == 0

	if r.Valid {
		slog.Info(fmt.Sprintf("%s - PO %s passed validation (%d/%d checks, %d warnings)",
			logPrefix, po.PONumber, r.ChecksPassed, r.ChecksPerformed, len(r.Warnings)))
	} else {
		slog.Warn(fmt.Sprintf("%s - PO %s failed validation: %d errors", logPrefix, po.PONumber, len(r.Errors)))
	}
	return r
}

func (v *Validator) checkHighValue(po *procurement.PurchaseOrder, r *Result) bool {
	if po.TotalAmount <= v.rules.HighValueThreshold {
		return true
	}
	r.add(SeverityWarning, "total_amount", "High-value order: $%.2f exceeds threshold ($%.2f) - Requires manager approval",
		po.TotalAmount, v.rules.HighValueThreshold)
	return false
}

func (v *Validator) checkSupplier(po *procurement.PurchaseOrder, r *Result) bool {
	if v.known[po.SupplierID] {
		return true
	}
	r.add(SeverityError, "supplier_id", "Unknown or unapproved supplier: %s. Valid suppliers: %s",
		po.SupplierID, strings.Join(v.rules.KnownSuppliers, ", "))
	return false
}

func (v *Validator) checkQuantities(po *procurement.PurchaseOrder, r *Result) bool {
	ok := true
	for _, li := range po.LineItems {
		if li.Quantity > v.rules.MaxQuantity {
			r.add(SeverityWarning, "line_items.quantity", "Large quantity for %s: %d units (threshold: %d)",
				li.ProductName, li.Quantity, v.rules.MaxQuantity)
			ok = false
		}
	}
	return ok
}

func (v *Validator) checkLineItems(po *procurement.PurchaseOrder, r *Result) bool {
	if len(po.LineItems) == 0 {
		r.add(SeverityError, "line_items", "Purchase order has no line items")
		return false
	}
	before := len(r.Errors)
	for i, li := range po.LineItems {
		n := i + 1
		if li.Quantity <= 0 {
			r.add(SeverityError, fmt.Sprintf("line_items[%d].quantity", n),
				"Line item %d (%s): Invalid quantity %d", n, li.ProductName, li.Quantity)
		}
		if li.UnitPrice <= 0 {
			r.add(SeverityError, fmt.Sprintf("line_items[%d].unit_price", n),
				"Line item %d (%s): Invalid unit price $%.2f", n, li.ProductName, li.UnitPrice)
		}
		expected := float64(li.Quantity) * li.UnitPrice
		if math.Abs(li.LineTotal-expected) > tolerance {
			r.add(SeverityError, fmt.Sprintf("line_items[%d].line_total", n),
				"Line item %d (%s): Line total mismatch (expected $%.2f, got $%.2f)", n, li.ProductName, expected, li.LineTotal)
		}
	}
	return len(r.Errors) == before
}

func (v *Validator) checkTotals(po *procurement.PurchaseOrder, r *Result) bool {
	before := len(r.Errors)
	var subtotal float64
	for _, li := range po.LineItems {
		subtotal += li.LineTotal
	}
	tax := subtotal * po.TaxRate
	total := subtotal + tax

	if math.Abs(po.Subtotal-subtotal) > tolerance {
		r.add(SeverityError, "subtotal", "Subtotal mismatch: expected $%.2f, got $%.2f", subtotal, po.Subtotal)
	}
	if math.Abs(po.TaxAmount-tax) > tolerance {
		r.add(SeverityError, "tax_amount", "Tax amount mismatch: expected $%.2f, got $%.2f", tax, po.TaxAmount)
	}
	if math.Abs(po.TotalAmount-total) > tolerance {
		r.add(SeverityError, "total_amount", "Total amount mismatch: expected $%.2f, got $%.2f", total, po.TotalAmount)
	}
	return len(r.Errors) == before
}

func (v *Validator) checkMaximum(po *procurement.PurchaseOrder, r *Result) bool {
	if po.TotalAmount <= v.rules.MaxOrderTotal {
		return true
	}
	r.add(SeverityError, "total_amount", "Order total $%.2f exceeds maximum allowed ($%.2f)",
		po.TotalAmount, v.rules.MaxOrderTotal)
	return false
}
