package procurement

import "testing"

func TestInventoryItem_Reorder(t *testing.T) {
	tests := []struct {
		stock, point int
		needs        bool
		qty          int
	}{
		{5, 20, true, 15},
		{20, 20, false, 0},
		{30, 20, false, 0},
		{0, 1, true, 1},
	}
	for _, tt := range tests {
		item := InventoryItem{CurrentStock: tt.stock, ReorderPoint: tt.point}
		if item.NeedsReorder() != tt.needs || item.QuantityNeeded() != tt.qty {
			t.Errorf("procurement:models_test - stock=%d point=%d: needs=%v qty=%d", tt.stock, tt.point, item.NeedsReorder(), item.QuantityNeeded())
		}
	}
}

func TestSourcingItems(t *testing.T) {
	recs := []ReorderRecommendation{
		{Item: InventoryItem{ItemID: "P001", Name: "Widget"}, QuantityToOrder: 15},
		{Item: InventoryItem{ItemID: "P002", Name: "Gadget"}, QuantityToOrder: 4},
	}
	got := SourcingItems(recs)
	if len(got) != 2 || got[0] != (SourcingItem{ProductID: "P001", ProductName: "Widget", QuantityNeeded: 15}) {
		t.Errorf("procurement:models_test - SourcingItems = %+v", got)
	}
	if len(SourcingItems(nil)) != 0 {
		t.Errorf("procurement:models_test - nil input should give empty output")
	}
}
