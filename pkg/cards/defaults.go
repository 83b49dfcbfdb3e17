package cards

// Well-known worker ids.
const (
	InventoryMonitor = "inventory_monitor"
	SupplierSelector = "supplier_selector"
	PurchaseOrder    = "purchase_order"
	Orchestrator     = "orchestrator"
)

func objectSchema(props map[string]any) map[string]any {
	return map[string]any{"type": "object", "properties": props}
}

// DefaultCards returns the built-in cards for the procurement workers. Used when no
// card directory is configured.
func DefaultCards() []*AgentCard {
	return []*AgentCard{
		{
			AgentID:      InventoryMonitor,
			Name:         "Inventory Monitor Agent",
			Description:  "Monitors inventory levels and identifies items needing reorder",
			Version:      DefaultVersion,
			Capabilities: []string{"check_inventory", "calculate_reorder_quantities", "get_low_stock_items"},
			CapabilityDetails: map[string]Capability{
				"check_inventory": {
					Name:        "check_inventory",
					Description: "Check stock levels and produce reorder recommendations",
				},
			},
			InputSchema: objectSchema(map[string]any{
				"check_all":   map[string]any{"type": "boolean", "description": "Check all items"},
				"product_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			}),
			OutputSchema: objectSchema(map[string]any{
				"low_stock_items":         map[string]any{"type": "array"},
				"reorder_recommendations": map[string]any{"type": "array"},
			}),
		},
		{
			AgentID:      SupplierSelector,
			Name:         "Supplier Selector Agent",
			Description:  "Queries suppliers and recommends best options based on price and availability",
			Version:      DefaultVersion,
			Capabilities: []string{"select_supplier", "query_suppliers", "compare_suppliers", "get_supplier_quote"},
			CapabilityDetails: map[string]Capability{
				"select_supplier": {
					Name:        "select_supplier",
					Description: "Recommend the best supplier for each item to source",
				},
			},
			InputSchema: objectSchema(map[string]any{
				"items_to_source": map[string]any{"type": "array"},
				"supplier_ids":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			}),
			OutputSchema: objectSchema(map[string]any{
				"recommendations": map[string]any{"type": "array"},
				"quotes":          map[string]any{"type": "array"},
			}),
		},
		{
			AgentID:      PurchaseOrder,
			Name:         "Purchase Order Agent",
			Description:  "Creates and validates purchase order documents",
			Version:      DefaultVersion,
			Capabilities: []string{"generate_purchase_order", "create_po", "validate_po", "save_po"},
			CapabilityDetails: map[string]Capability{
				"generate_purchase_order": {
					Name:        "generate_purchase_order",
					Description: "Group approved recommendations by supplier into validated purchase orders",
				},
			},
			InputSchema: objectSchema(map[string]any{
				"recommendations": map[string]any{"type": "array"},
			}),
			OutputSchema: objectSchema(map[string]any{
				"purchase_orders":    map[string]any{"type": "array"},
				"validation_results": map[string]any{"type": "array"},
			}),
		},
		{
			AgentID:      Orchestrator,
			Name:         "Orchestrator Agent",
			Description:  "Coordinates workflow and handles user interaction",
			Version:      DefaultVersion,
			Capabilities: []string{"parse_user_input", "coordinate_workflow", "generate_response"},
			InputSchema: objectSchema(map[string]any{
				"user_message":         map[string]any{"type": "string"},
				"conversation_history": map[string]any{"type": "array"},
			}),
			OutputSchema: objectSchema(map[string]any{
				"agent_response": map[string]any{"type": "string"},
				"workflow_stage": map[string]any{"type": "string"},
			}),
		},
	}
}
