// Package router resolves a request's target worker, by explicit id or by declared
// capability, invokes it and wraps the outcome in a response envelope.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/events"
)

const logPrefix = "router:route"

// SourceRouter is the source recorded on responses the router itself produces.
const SourceRouter = "router"

// Handler is the invocable handle a worker exposes to the router.
type Handler interface {
	Invoke(ctx context.Context, req *envelope.Request) (map[string]any, error)
}

// HandlerFunc adapts a params-in, result-out function to Handler.
type HandlerFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// Invoke calls f with the request params.
func (f HandlerFunc) Invoke(ctx context.Context, req *envelope.Request) (map[string]any, error) {
	return f(ctx, req.Params)
}

// Router maps worker ids to cards and handles. Registration happens at startup;
// Route is safe for concurrent use.
type Router struct {
	mu        sync.RWMutex
	cards     *cards.Registry
	handlers  map[string]Handler
	publisher events.EventPublisher
	metrics   *Metrics
}

// NewRouterParams holds dependencies for NewRouter.
type NewRouterParams struct {
	Cards     *cards.Registry
	Publisher events.EventPublisher
	Metrics   *Metrics
}

// NewRouter creates a Router. A nil card registry starts empty and a nil publisher drops events.
func NewRouter(params NewRouterParams) *Router {
	reg := params.Cards
	if reg == nil {
		reg = cards.NewRegistry()
	}
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Router{
		cards:     reg,
		handlers:  make(map[string]Handler),
		publisher: pub,
		metrics:   params.Metrics,
	}
}

// Cards returns the card registry backing the router.
func (r *Router) Cards() *cards.Registry {
	return r.cards
}

// RegisterCard adds a card; capability collisions are rejected.
func (r *Router) RegisterCard(card *cards.AgentCard) error {
	return r.cards.Add(card)
}

// RegisterWorker binds handle to workerID. A missing card is logged but not fatal; such a
// worker is reachable only by explicit target once its card is added.
func (r *Router) RegisterWorker(workerID string, handle Handler) error {
	if workerID == "" {
		return fmt.Errorf("%s - worker id is required", logPrefix)
	}
	if handle == nil {
		return fmt.Errorf("%s - handle for %s is nil", logPrefix, workerID)
	}
	if !r.cards.Has(workerID) {
		slog.Warn(fmt.Sprintf("%s - No agent card for %s; registering handle anyway", logPrefix, workerID))
	}
	r.mu.Lock()
	r.handlers[workerID] = handle
	r.mu.Unlock()
	slog.Info(fmt.Sprintf("%s - Registered worker %s", logPrefix, workerID))
	return nil
}

// UnregisterWorker drops the handle for workerID and reports whether one existed.
func (r *Router) UnregisterWorker(workerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handlers[workerID]
	delete(r.handlers, workerID)
	return ok
}

// Route resolves, invokes and wraps. It never panics and never returns nil.
func (r *Router) Route(ctx context.Context, req *envelope.Request) *envelope.Response {
	if req == nil {
		return envelope.NewErrorResponse("", envelope.CodeInvalidRequest, "Request is required", nil, SourceRouter)
	}

	start := time.Now()
	ctx, span := startRouteSpan(ctx, req.ID, req.Method, req.SourceWorker)
	defer span.End()

	slog.Info(fmt.Sprintf("%s - Routing %s (id=%s)", logPrefix, req.Method, req.ID))

	target, resp := r.resolve(req)
	if resp == nil {
		resp = r.invoke(ctx, target, req)
	}

	span.SetAttributes(attribute.String("request.target", target))
	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
		span.SetStatus(codes.Error, resp.Error.Message)
		span.SetAttributes(attribute.Int("error.code", code))
	}

	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	r.metrics.record(ctx, req.Method, target, code, durationMs)

	event := &events.RouteEvent{
		RequestID:    req.ID,
		Method:       req.Method,
		SourceWorker: req.SourceWorker,
		TargetWorker: target,
		Success:      resp.Error == nil,
		ErrorCode:    code,
		DurationMs:   durationMs,
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.publisher.PublishRoute(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish route event: %v", logPrefix, err))
	}
	return resp
}

// resolve returns the target worker id, or an error response when none can be used.
func (r *Router) resolve(req *envelope.Request) (string, *envelope.Response) {
	if req.TargetWorker != "" {
		if !r.cards.Has(req.TargetWorker) {
			slog.Warn(fmt.Sprintf("%s - Agent not found: %s", logPrefix, req.TargetWorker))
			return req.TargetWorker, envelope.NewErrorResponse(req.ID, envelope.CodeAgentNotFound,
				fmt.Sprintf("Target agent not found: %s", req.TargetWorker), nil, SourceRouter)
		}
	} else {
		owner, ok := r.cards.Owner(req.Method)
		if !ok {
			return "", envelope.NewErrorResponse(req.ID, envelope.CodeMethodNotFound,
				fmt.Sprintf("No agent supports capability: %s", req.Method), nil, SourceRouter)
		}
		req.TargetWorker = owner
	}

	r.mu.RLock()
	_, ok := r.handlers[req.TargetWorker]
	r.mu.RUnlock()
	if !ok {
		return req.TargetWorker, envelope.NewErrorResponse(req.ID, envelope.CodeAgentUnavailable,
			fmt.Sprintf("Agent workflow not registered: %s", req.TargetWorker), nil, SourceRouter)
	}
	return req.TargetWorker, nil
}

func (r *Router) invoke(ctx context.Context, target string, req *envelope.Request) *envelope.Response {
	r.mu.RLock()
	handle := r.handlers[target]
	r.mu.RUnlock()

	slog.Info(fmt.Sprintf("%s - Invoking agent %s", logPrefix, target))
	result, err := safeInvoke(ctx, handle, req)
	if err != nil {
		if info, ok := envelope.AsErrorInfo(err); ok {
			slog.Warn(fmt.Sprintf("%s - Agent %s returned %s: %s", logPrefix, target, envelope.CodeName(info.Code), info.Message))
			return envelope.ErrorResponseFrom(req.ID, info, target)
		}
		slog.Error(fmt.Sprintf("%s - Agent %s failed: %v", logPrefix, target, err))
		return envelope.NewErrorResponse(req.ID, envelope.CodeInternalError,
			fmt.Sprintf("Agent execution failed: %v", err),
			map[string]any{"agent_id": target, "error_type": errorType(err)},
			SourceRouter)
	}

	slog.Info(fmt.Sprintf("%s - Agent %s completed successfully", logPrefix, target))
	return envelope.NewResponse(req.ID, result, target)
}

func safeInvoke(ctx context.Context, handle Handler, req *envelope.Request) (result map[string]any, err error) {
	defer func() {
		if v := recover(); v != nil {
			result, err = nil, &envelope.PanicError{Value: v}
		}
	}()
	return handle.Invoke(ctx, req)
}

func errorType(err error) string {
	var p *envelope.PanicError
	if errors.As(err, &p) {
		return "Panic"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "DeadlineExceeded"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	return fmt.Sprintf("%T", err)
}

// AgentSummary describes one registered card for listings.
type AgentSummary struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	HasHandler   bool     `json:"has_workflow"`
}

// ListAgents summarizes every card, ordered by id.
func (r *Router) ListAgents() []AgentSummary {
	all := r.cards.All()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentSummary, 0, len(all))
	for _, c := range all {
		_, has := r.handlers[c.AgentID]
		out = append(out, AgentSummary{
			AgentID:      c.AgentID,
			Name:         c.Name,
			Description:  c.Description,
			Version:      c.Version,
			Capabilities: c.Capabilities,
			HasHandler:   has,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// AgentInfo returns the card for workerID.
func (r *Router) AgentInfo(workerID string) (*cards.AgentCard, bool) {
	return r.cards.Get(workerID)
}

// HandlerCount returns the number of registered handles.
func (r *Router) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
