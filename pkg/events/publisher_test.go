package events

import (
	"context"
	"errors"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	if err := pub.PublishRoute(context.Background(), &RouteEvent{Method: "check_inventory"}); err != nil {
		t.Errorf("events:publisher_test - PublishRoute err = %v", err)
	}
	if err := pub.PublishTurn(context.Background(), &TurnEvent{SessionID: "s1"}); err != nil {
		t.Errorf("events:publisher_test - PublishTurn err = %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var route *RouteEvent
	var turn *TurnEvent
	pub := NewCallbackPublisher(
		func(_ context.Context, e *RouteEvent) error { route = e; return nil },
		func(_ context.Context, e *TurnEvent) error { turn = e; return nil },
	)

	_ = pub.PublishRoute(context.Background(), &RouteEvent{RequestID: "r1", TargetWorker: "inventory_monitor", Success: true})
	_ = pub.PublishTurn(context.Background(), &TurnEvent{SessionID: "s1", FromStage: "initial", ToStage: "awaiting_approval"})

	if route == nil || route.RequestID != "r1" {
		t.Errorf("events:publisher_test - route callback got %+v", route)
	}
	if turn == nil || turn.ToStage != "awaiting_approval" {
		t.Errorf("events:publisher_test - turn callback got %+v", turn)
	}

	partial := NewCallbackPublisher(nil, nil)
	if err := partial.PublishRoute(context.Background(), &RouteEvent{}); err != nil {
		t.Errorf("events:publisher_test - nil callback should be skipped, got %v", err)
	}
}

func TestMultiPublisher(t *testing.T) {
	var calls int
	ok := NewCallbackPublisher(func(context.Context, *RouteEvent) error { calls++; return nil }, nil)
	failing := NewCallbackPublisher(func(context.Context, *RouteEvent) error { calls++; return errors.New("boom") }, nil)

	multi := MultiPublisher{ok, nil, failing, ok}
	err := multi.PublishRoute(context.Background(), &RouteEvent{})
	if err == nil {
		t.Fatal("events:publisher_test - expected joined error")
	}
	if calls != 3 {
		t.Errorf("events:publisher_test - calls = %d, want 3 (every publisher attempted)", calls)
	}
	if err := multi.PublishTurn(context.Background(), &TurnEvent{}); err != nil {
		t.Errorf("events:publisher_test - PublishTurn err = %v", err)
	}
}
