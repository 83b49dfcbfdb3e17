// Package workers provides the reference procurement workers: inventory monitor,
// supplier selector and purchase order generator, each exposed as a worker.Server.
package workers

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/morezero/procurement-assistant/pkg/procurement"
)

const catalogLogPrefix = "workers:catalog"

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogEntry is one supplier's terms for one product.
type CatalogEntry struct {
	ProductName      string  `yaml:"product_name" json:"product_name"`
	UnitPrice        float64 `yaml:"unit_price" json:"unit_price"`
	LeadTimeDays     int     `yaml:"lead_time_days" json:"lead_time_days"`
	MinOrderQuantity int     `yaml:"min_order_quantity" json:"min_order_quantity"`
}

// Supplier is a vendor and the products it carries.
type Supplier struct {
	ID      string                  `yaml:"id" json:"id"`
	Name    string                  `yaml:"name" json:"name"`
	Contact string                  `yaml:"contact" json:"contact"`
	Phone   string                  `yaml:"phone" json:"phone"`
	Catalog map[string]CatalogEntry `yaml:"catalog" json:"catalog"`
}

// Catalog is the data the reference workers operate on. Stock levels may be updated
// concurrently; everything else is read-only after load.
type Catalog struct {
	mu        sync.RWMutex
	inventory []procurement.InventoryItem
	suppliers []Supplier
}

type catalogFile struct {
	Inventory []procurement.InventoryItem `yaml:"inventory"`
	Suppliers []Supplier                  `yaml:"suppliers"`
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s - failed to parse catalog: %w", catalogLogPrefix, err)
	}
	seen := make(map[string]bool, len(f.Inventory))
	for _, it := range f.Inventory {
		if it.ItemID == "" {
			return nil, fmt.Errorf("%s - inventory item %q has no item_id", catalogLogPrefix, it.Name)
		}
		if seen[it.ItemID] {
			return nil, fmt.Errorf("%s - duplicate inventory item %s", catalogLogPrefix, it.ItemID)
		}
		seen[it.ItemID] = true
	}
	for _, s := range f.Suppliers {
		if s.ID == "" {
			return nil, fmt.Errorf("%s - supplier %q has no id", catalogLogPrefix, s.Name)
		}
	}
	return &Catalog{inventory: f.Inventory, suppliers: f.Suppliers}, nil
}

// LoadCatalog reads a catalog file. An empty path loads the embedded default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read %s: %w", catalogLogPrefix, path, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns a fresh copy of the embedded sample catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// Inventory returns a copy of the stocked items.
func (c *Catalog) Inventory() []procurement.InventoryItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]procurement.InventoryItem(nil), c.inventory...)
}

// Item returns the inventory item with id.
func (c *Catalog) Item(id string) (procurement.InventoryItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.inventory {
		if it.ItemID == id {
			return it, true
		}
	}
	return procurement.InventoryItem{}, false
}

// SetStock updates the current stock of id.
func (c *Catalog) SetStock(id string, stock int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.inventory {
		if c.inventory[i].ItemID == id {
			c.inventory[i].CurrentStock = stock
			return true
		}
	}
	return false
}

// Suppliers returns the suppliers in catalog order.
func (c *Catalog) Suppliers() []Supplier {
	return c.suppliers
}

// Supplier returns the supplier with id.
func (c *Catalog) Supplier(id string) (Supplier, bool) {
	for _, s := range c.suppliers {
		if s.ID == id {
			return s, true
		}
	}
	return Supplier{}, false
}

// SupplierContact renders contact details for id.
func (c *Catalog) SupplierContact(id string) string {
	s, ok := c.Supplier(id)
	if !ok || s.Contact == "" {
		return "Contact information not available"
	}
	return s.Contact + " | " + s.Phone
}
