// Package procurement holds the business value types exchanged between workers.
package procurement

// TaxRate is applied to every purchase order subtotal.
const TaxRate = 0.08

// Reorder priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// InventoryItem is one stocked product.
type InventoryItem struct {
	ItemID       string  `json:"item_id" yaml:"item_id"`
	Name         string  `json:"name" yaml:"name"`
	Category     string  `json:"category" yaml:"category"`
	CurrentStock int     `json:"current_stock" yaml:"current_stock"`
	ReorderPoint int     `json:"reorder_point" yaml:"reorder_point"`
	UnitCost     float64 `json:"unit_cost" yaml:"unit_cost"`
}

// NeedsReorder reports whether stock is below the reorder point.
func (i InventoryItem) NeedsReorder() bool {
	return i.CurrentStock < i.ReorderPoint
}

// QuantityNeeded is the shortfall against the reorder point, or zero.
func (i InventoryItem) QuantityNeeded() int {
	if !i.NeedsReorder() {
		return 0
	}
	return i.ReorderPoint - i.CurrentStock
}

// ReorderRecommendation proposes restocking one item.
type ReorderRecommendation struct {
	Item            InventoryItem `json:"item"`
	QuantityToOrder int           `json:"quantity_to_order"`
	Reason          string        `json:"reason"`
	Priority        string        `json:"priority"`
}

// SourcingItem asks the supplier selector to source one product.
type SourcingItem struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	QuantityNeeded int    `json:"quantity_needed"`
}

// SourcingItems converts reorder recommendations into supplier-selection input.
func SourcingItems(recs []ReorderRecommendation) []SourcingItem {
	out := make([]SourcingItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, SourcingItem{
			ProductID:      r.Item.ItemID,
			ProductName:    r.Item.Name,
			QuantityNeeded: r.QuantityToOrder,
		})
	}
	return out
}

// SupplierQuote is one supplier's price for one product.
type SupplierQuote struct {
	SupplierID       string  `json:"supplier_id"`
	SupplierName     string  `json:"supplier_name"`
	ProductID        string  `json:"product_id"`
	ProductName      string  `json:"product_name"`
	UnitPrice        float64 `json:"unit_price"`
	LeadTimeDays     int     `json:"lead_time_days"`
	MinOrderQuantity int     `json:"min_order_quantity"`
	QuantityNeeded   int     `json:"quantity_needed"`
	TotalCost        float64 `json:"total_cost"`
}

// SupplierRecommendation is the chosen supplier for one product.
type SupplierRecommendation struct {
	ProductID               string  `json:"product_id"`
	ProductName             string  `json:"product_name"`
	QuantityNeeded          int     `json:"quantity_needed"`
	RecommendedSupplierID   string  `json:"recommended_supplier_id"`
	RecommendedSupplierName string  `json:"recommended_supplier_name"`
	UnitPrice               float64 `json:"unit_price"`
	TotalCost               float64 `json:"total_cost"`
	LeadTimeDays            int     `json:"lead_time_days"`
	Reason                  string  `json:"reason"`
}

// POLineItem is one line of a purchase order.
type POLineItem struct {
	LineNumber  int     `json:"line_number"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// PurchaseOrder is a generated order for one supplier.
type PurchaseOrder struct {
	PONumber        string       `json:"po_number"`
	DateCreated     string       `json:"date_created"`
	SupplierID      string       `json:"supplier_id"`
	SupplierName    string       `json:"supplier_name"`
	SupplierContact string       `json:"supplier_contact"`
	LineItems       []POLineItem `json:"line_items"`
	Subtotal        float64      `json:"subtotal"`
	TaxRate         float64      `json:"tax_rate"`
	TaxAmount       float64      `json:"tax_amount"`
	TotalAmount     float64      `json:"total_amount"`
	Notes           string       `json:"notes"`
}
