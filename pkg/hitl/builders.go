package hitl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderItem is one line in a PO-creation gate.
type OrderItem struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// SupplierChoice is one supplier offered in a supplier-selection gate.
type SupplierChoice struct {
	SupplierID   string  `json:"supplier_id"`
	SupplierName string  `json:"supplier_name"`
	UnitPrice    float64 `json:"unit_price"`
	LeadTimeDays int     `json:"lead_time_days"`
}

// PricedLine is one line item in a high-value approval gate.
type PricedLine struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Action is a caller-suggested option for an exception-handling gate.
type Action struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

func newRequest(kind Kind, title, message string) *Request {
	return &Request{
		ID:             uuid.NewString()[:8],
		Kind:           kind,
		Title:          title,
		Message:        message,
		Data:           map[string]any{},
		CreatedAt:      time.Now().UTC(),
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// NewPOCreation asks whether purchase orders should be created for items.
func NewPOCreation(items []OrderItem) *Request {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		name := it.ProductName
		if name == "" {
			name = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("  - %s: %d units", name, it.Quantity))
	}
	msg := "The following items need to be ordered:\n" + strings.Join(lines, "\n") +
		"\n\nWould you like to create purchase orders for these items?"

	req := newRequest(KindPOCreation, "Create Purchase Orders", msg)
	req.Options = []Option{
		{ID: OptionApprove, Label: "Yes, create POs", Description: "Proceed with creating purchase orders", Recommended: true},
		{ID: OptionReject, Label: "No, cancel", Description: "Cancel the operation"},
	}
	req.Data["items"] = items
	return req
}

// NewSupplierSelection offers one option per supplier for product.
func NewSupplierSelection(product string, suppliers []SupplierChoice, recommendedID string) *Request {
	req := newRequest(KindSupplierSelection, "Select Supplier: "+product,
		fmt.Sprintf("Please select a supplier for %s:", product))
	for _, s := range suppliers {
		rec := s.SupplierID == recommendedID
		label := s.SupplierName
		if label == "" {
			label = "Unknown"
		}
		if rec {
			label += " (Recommended)"
		}
		req.Options = append(req.Options, Option{
			ID:          s.SupplierID,
			Label:       label,
			Description: fmt.Sprintf("$%.2f/unit, %d days lead time", s.UnitPrice, s.LeadTimeDays),
			Data: map[string]any{
				"supplier_id":    s.SupplierID,
				"supplier_name":  s.SupplierName,
				"unit_price":     s.UnitPrice,
				"lead_time_days": s.LeadTimeDays,
			},
			Recommended: rec,
		})
	}
	req.Data["product_name"] = product
	req.Data["suppliers"] = suppliers
	return req
}

// NewHighValueApproval asks a manager to authorize a PO above threshold.
func NewHighValueApproval(poNumber string, total float64, supplier string, lines []PricedLine, threshold float64) *Request {
	items := make([]string, 0, len(lines))
	for _, l := range lines {
		items = append(items, fmt.Sprintf("  - %s: %d x $%.2f", l.ProductName, l.Quantity, l.UnitPrice))
	}
	msg := "**High-Value Purchase Order Approval Required**\n\n" +
		fmt.Sprintf("PO Number: %s\n", poNumber) +
		fmt.Sprintf("Supplier: %s\n", supplier) +
		fmt.Sprintf("Total Amount: $%s\n", FormatMoney(total)) +
		fmt.Sprintf("Threshold: $%s\n\n", FormatMoney(threshold)) +
		"Line Items:\n" + strings.Join(items, "\n") + "\n\n" +
		"This order exceeds the approval threshold and requires manager authorization."

	req := newRequest(KindHighValueApproval, "High-Value PO Approval: "+poNumber, msg)
	req.TimeoutSeconds = 600
	req.RequireReason = true
	req.Options = []Option{
		{ID: OptionApprove, Label: "Approve", Description: "Authorize this purchase order"},
		{ID: OptionReject, Label: "Reject", Description: "Reject this purchase order"},
		{ID: OptionModify, Label: "Request Modification", Description: "Request changes before approval"},
	}
	req.Data["po_number"] = poNumber
	req.Data["total_amount"] = total
	req.Data["supplier_name"] = supplier
	req.Data["line_items"] = lines
	req.Data["threshold"] = threshold
	return req
}

// NewThresholdAdjustment proposes a new reorder point for a product.
func NewThresholdAdjustment(productID, productName string, current, suggested int, reason string) *Request {
	msg := "**Reorder Threshold Adjustment**\n\n" +
		fmt.Sprintf("Product: %s (%s)\n", productName, productID) +
		fmt.Sprintf("Current Reorder Point: %d units\n", current) +
		fmt.Sprintf("Suggested Reorder Point: %d units\n\n", suggested) +
		fmt.Sprintf("Reason: %s\n\n", reason) +
		"Would you like to apply this change?"

	req := newRequest(KindThresholdAdjustment, "Adjust Threshold: "+productName, msg)
	req.AllowCustomInput = true
	req.RequireReason = true
	req.Options = []Option{
		{ID: OptionApprove, Label: "Apply Change", Description: fmt.Sprintf("Set reorder point to %d", suggested)},
		{ID: OptionReject, Label: "Keep Current", Description: fmt.Sprintf("Keep reorder point at %d", current)},
		{ID: OptionCustom, Label: "Set Custom Value", Description: "Enter a different reorder point"},
	}
	req.Data["product_id"] = productID
	req.Data["product_name"] = productName
	req.Data["current_value"] = current
	req.Data["suggested_value"] = suggested
	return req
}

// NewExceptionHandling asks how to proceed after a failure. With no suggested actions
// the options are retry, skip and abort.
func NewExceptionHandling(excType, excMessage string, details map[string]any, actions []Action) *Request {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ctxLines := make([]string, 0, len(keys))
	for _, k := range keys {
		ctxLines = append(ctxLines, fmt.Sprintf("  - %s: %v", k, details[k]))
	}
	msg := "**Exception Handling Required**\n\n" +
		fmt.Sprintf("Type: %s\n", excType) +
		fmt.Sprintf("Message: %s\n\n", excMessage) +
		"Context:\n" + strings.Join(ctxLines, "\n") + "\n\n" +
		"Please select how to proceed:"

	req := newRequest(KindExceptionHandling, "Handle Exception: "+excType, msg)
	req.AllowCustomInput = true
	for i, a := range actions {
		id, label := a.ID, a.Label
		if id == "" {
			id = "action_" + strconv.Itoa(i)
		}
		if label == "" {
			label = "Unknown Action"
		}
		req.Options = append(req.Options, Option{ID: id, Label: label, Description: a.Description})
	}
	if len(req.Options) == 0 {
		req.Options = []Option{
			{ID: "retry", Label: "Retry", Description: "Retry the failed operation"},
			{ID: "skip", Label: "Skip", Description: "Skip this item and continue"},
			{ID: "abort", Label: "Abort", Description: "Abort the entire workflow"},
		}
	}
	req.Data["exception_type"] = excType
	req.Data["exception_message"] = excMessage
	req.Data["context"] = details
	return req
}

// FormatMoney renders v with two decimals and thousands separators.
func FormatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
