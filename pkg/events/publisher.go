package events

import (
	"context"
	"errors"
)

// EventPublisher delivers router and orchestrator events.
type EventPublisher interface {
	PublishRoute(ctx context.Context, event *RouteEvent) error
	PublishTurn(ctx context.Context, event *TurnEvent) error
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

// PublishRoute is a no-op.
func (p *NoOpPublisher) PublishRoute(_ context.Context, _ *RouteEvent) error { return nil }

// PublishTurn is a no-op.
func (p *NoOpPublisher) PublishTurn(_ context.Context, _ *TurnEvent) error { return nil }

// CallbackPublisher forwards events to callbacks (for testing). Nil callbacks are skipped.
type CallbackPublisher struct {
	onRoute func(ctx context.Context, event *RouteEvent) error
	onTurn  func(ctx context.Context, event *TurnEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(onRoute func(context.Context, *RouteEvent) error, onTurn func(context.Context, *TurnEvent) error) *CallbackPublisher {
	return &CallbackPublisher{onRoute: onRoute, onTurn: onTurn}
}

// PublishRoute calls the route callback.
func (p *CallbackPublisher) PublishRoute(ctx context.Context, event *RouteEvent) error {
	if p.onRoute == nil {
		return nil
	}
	return p.onRoute(ctx, event)
}

// PublishTurn calls the turn callback.
func (p *CallbackPublisher) PublishTurn(ctx context.Context, event *TurnEvent) error {
	if p.onTurn == nil {
		return nil
	}
	return p.onTurn(ctx, event)
}

// MultiPublisher fans events out to several publishers. Every publisher is attempted;
// errors are joined.
type MultiPublisher []EventPublisher

// PublishRoute publishes to every member.
func (m MultiPublisher) PublishRoute(ctx context.Context, event *RouteEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishRoute(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishTurn publishes to every member.
func (m MultiPublisher) PublishTurn(ctx context.Context, event *TurnEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishTurn(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
