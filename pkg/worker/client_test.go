package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/morezero/procurement-assistant/pkg/envelope"
)

type fakeSender struct {
	mu       sync.Mutex
	requests []*envelope.Request
	fail     map[string]bool
	during   func()
}

func (f *fakeSender) Route(_ context.Context, req *envelope.Request) *envelope.Response {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	if f.fail[req.Method] {
		return envelope.NewErrorResponse(req.ID, envelope.CodeAgentUnavailable, "down", nil, "router")
	}
	return envelope.NewResponse(req.ID, map[string]any{"ok": true}, "target")
}

func TestClient_SendWithoutSender(t *testing.T) {
	c := NewClient("orchestrator", nil)
	resp, err := c.Send(context.Background(), "check_inventory", nil, "")
	if resp != nil {
		t.Errorf("worker:client_test - expected nil response")
	}
	info, ok := envelope.AsErrorInfo(err)
	if !ok || info.Code != envelope.CodeInternalError || info.Message != "No router configured" {
		t.Errorf("worker:client_test - err = %v", err)
	}
	c.SendNotification(context.Background(), "check_inventory", nil, "")
}

func TestClient_SendRecordsHistory(t *testing.T) {
	f := &fakeSender{fail: map[string]bool{"select_supplier": true}}
	c := NewClient("orchestrator", f)
	ctx := context.Background()

	resp, err := c.Send(ctx, "check_inventory", map[string]any{"check_all": true}, "inventory_monitor")
	if err != nil || resp.Error != nil {
		t.Fatalf("worker:client_test - Send = %+v, %v", resp, err)
	}
	if f.requests[0].SourceWorker != "orchestrator" || f.requests[0].TargetWorker != "inventory_monitor" {
		t.Errorf("worker:client_test - request = %+v", f.requests[0])
	}
	if resp.ID != f.requests[0].ID {
		t.Errorf("worker:client_test - response id mismatch")
	}

	resp, err = c.Send(ctx, "select_supplier", nil, "")
	if err != nil || resp.Error == nil {
		t.Fatalf("worker:client_test - expected error response, got %+v, %v", resp, err)
	}

	hist := c.History(20, "")
	if len(hist) != 2 || !hist[0].Success || hist[1].Success || hist[1].Error == nil {
		t.Errorf("worker:client_test - history = %+v", hist)
	}
	if got := c.History(20, "select_supplier"); len(got) != 1 {
		t.Errorf("worker:client_test - filtered history = %d", len(got))
	}

	st := c.Stats()
	if st.TotalRequests != 2 || st.Successful != 1 || st.Failed != 1 || st.SuccessRate != 50.0 || st.PendingRequests != 0 {
		t.Errorf("worker:client_test - stats = %+v", st)
	}
}

func TestClient_PendingDuringSend(t *testing.T) {
	f := &fakeSender{}
	c := NewClient("orchestrator", f)
	var seen int
	f.during = func() { seen = len(c.Pending()) }

	if _, err := c.Send(context.Background(), "check_inventory", nil, ""); err != nil {
		t.Fatalf("worker:client_test - Send: %v", err)
	}
	if seen != 1 {
		t.Errorf("worker:client_test - pending during send = %d, want 1", seen)
	}
	if len(c.Pending()) != 0 {
		t.Errorf("worker:client_test - pending after send = %d", len(c.Pending()))
	}
}

func TestClient_Notification(t *testing.T) {
	f := &fakeSender{}
	c := NewClient("orchestrator", f)
	c.SendNotification(context.Background(), "get_low_stock_items", nil, "inventory_monitor")
	if len(f.requests) != 1 || !f.requests[0].IsNotification() {
		t.Fatalf("worker:client_test - notification request = %+v", f.requests)
	}
	if len(c.History(20, "")) != 0 {
		t.Errorf("worker:client_test - notifications should not enter history")
	}
}

func TestClient_HistoryIsBounded(t *testing.T) {
	c := NewClient("orchestrator", &fakeSender{})
	for i := 0; i < HistoryCapacity+10; i++ {
		_, _ = c.Send(context.Background(), "check_inventory", nil, "")
	}
	if st := c.Stats(); st.TotalRequests != HistoryCapacity {
		t.Errorf("worker:client_test - retained = %d, want %d", st.TotalRequests, HistoryCapacity)
	}
}

func TestClientPool(t *testing.T) {
	f := &fakeSender{}
	p := NewClientPool(f)
	a := p.Client("orchestrator")
	if p.Client("orchestrator") != a {
		t.Fatal("worker:client_test - pool should reuse clients")
	}
	_, _ = a.Send(context.Background(), "check_inventory", nil, "")
	_ = p.Client("purchase_order")

	stats := p.Stats()
	if len(stats) != 2 || stats["orchestrator"].TotalRequests != 1 || stats["purchase_order"].TotalRequests != 0 {
		t.Errorf("worker:client_test - pool stats = %+v", stats)
	}
}
