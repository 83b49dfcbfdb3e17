package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestHub_NoConnections(t *testing.T) {
	hub := NewHub()
	if hub.ConnectionCount() != 0 {
		t.Fatalf("events:hub_test - ConnectionCount = %d, want 0", hub.ConnectionCount())
	}
	if err := hub.PublishRoute(context.Background(), &RouteEvent{RequestID: "r"}); err != nil {
		t.Errorf("events:hub_test - PublishRoute with no clients err = %v", err)
	}
	hub.remove(&hubConn{cancel: func() {}})
}

func TestHub_BroadcastToClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("events:hub_test - Dial: %v", err)
	}
	defer client.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ConnectionCount() != 1 {
		t.Fatalf("events:hub_test - ConnectionCount = %d, want 1", hub.ConnectionCount())
	}

	if err := hub.PublishTurn(ctx, &TurnEvent{SessionID: "s1", ToStage: "complete"}); err != nil {
		t.Fatalf("events:hub_test - PublishTurn: %v", err)
	}

	_, data, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("events:hub_test - Read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("events:hub_test - decode: %v", err)
	}
	if env.Kind != KindTurn || env.Turn == nil || env.Turn.ToStage != "complete" {
		t.Errorf("events:hub_test - envelope = %+v", env)
	}
}
