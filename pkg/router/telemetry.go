package router

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "procurement-assistant/router"

// Metrics holds the router's metric instruments.
type Metrics struct {
	Requests metric.Int64Counter
	Failures metric.Int64Counter
	Duration metric.Float64Histogram
}

// NewMetrics creates router instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}
	var err error

	m.Requests, err = meter.Int64Counter("router.requests",
		metric.WithDescription("Number of routed requests"))
	if err != nil {
		return nil, err
	}

	m.Failures, err = meter.Int64Counter("router.failures",
		metric.WithDescription("Number of routed requests answered with an error"))
	if err != nil {
		return nil, err
	}

	m.Duration, err = meter.Float64Histogram("router.duration_ms",
		metric.WithDescription("Routed request duration in milliseconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) record(ctx context.Context, method, target string, code int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("target", target),
	)
	m.Requests.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, durationMs, attrs)
	if code != 0 {
		m.Failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("target", target),
			attribute.Int("code", code),
		))
	}
}

func startRouteSpan(ctx context.Context, requestID, method, source string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "route",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("request.method", method),
			attribute.String("request.source", source),
		),
	)
}
