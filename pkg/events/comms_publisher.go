package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/procurement-assistant/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalSubject overrides the subject every event is also published to (EVENT_SUBJECT).
	GlobalSubject string
}

// CommsPublisher publishes events to NATS: once on a granular subject and once on the
// global subject wrapped in an Envelope.
type CommsPublisher struct {
	nc            *comms.Conn
	globalSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	global := commsutil.SubjectEvents
	if opts != nil && opts.GlobalSubject != "" {
		global = opts.GlobalSubject
	}
	return &CommsPublisher{nc: nc, globalSubject: global}
}

// PublishRoute publishes to procurement.events.route.<target> and the global subject.
func (p *CommsPublisher) PublishRoute(_ context.Context, event *RouteEvent) error {
	return p.publish(commsutil.BuildRouteEventSubject(event.TargetWorker), event, &Envelope{Kind: KindRoute, Route: event})
}

// PublishTurn publishes to procurement.events.turn.<stage> and the global subject.
func (p *CommsPublisher) PublishTurn(_ context.Context, event *TurnEvent) error {
	return p.publish(commsutil.BuildTurnEventSubject(event.ToStage), event, &Envelope{Kind: KindTurn, Turn: event})
}

func (p *CommsPublisher) publish(granular string, event any, env *Envelope) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}
	if err := p.nc.Publish(granular, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granular, err))
		return err
	}

	envData, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%s - failed to encode envelope: %w", commsPublisherLogPrefix, err)
	}
	if err := p.nc.Publish(p.globalSubject, envData); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.globalSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s event on %s", commsPublisherLogPrefix, env.Kind, granular))
	return nil
}
