// Package worker adapts business logic to the routed request protocol: a Server exposes
// a worker's methods to the Router and a Client issues requests through it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/ringbuf"
)

const serverLogPrefix = "worker:server"

// RequestLogCapacity bounds the per-server request log.
const RequestLogCapacity = 1000

// HandlerStatus controls whether a registered method is callable.
type HandlerStatus string

const (
	StatusActive     HandlerStatus = "active"
	StatusDisabled   HandlerStatus = "disabled"
	StatusDeprecated HandlerStatus = "deprecated"
)

// MethodFunc is the business logic behind one method.
type MethodFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// HandlerOpts describes a method at registration time.
type HandlerOpts struct {
	Description  string
	InputSchema  map[string]any
	OutputSchema map[string]any
}

type registration struct {
	method       string
	fn           MethodFunc
	description  string
	inputSchema  map[string]any
	outputSchema map[string]any
	status       HandlerStatus
	callCount    int64
}

// HandlerInfo is the read-side view of a registered method.
type HandlerInfo struct {
	Method       string         `json:"method"`
	Description  string         `json:"description"`
	Status       HandlerStatus  `json:"status"`
	InputSchema  map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema"`
	CallCount    int64          `json:"call_count"`
}

// LogEntry records one handled request.
type LogEntry struct {
	RequestID    string    `json:"request_id"`
	Method       string    `json:"method"`
	SourceWorker string    `json:"source_agent,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMs   float64   `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorCode    *int      `json:"error_code"`
}

// ServerStats summarizes the request log.
type ServerStats struct {
	WorkerID      string           `json:"agent_id"`
	TotalRequests int              `json:"total_requests"`
	Successful    int              `json:"successful"`
	Failed        int              `json:"failed"`
	SuccessRate   float64          `json:"success_rate"`
	AvgDurationMs float64          `json:"avg_duration_ms"`
	HandlerCalls  map[string]int64 `json:"handler_calls"`
}

// ServerInfo describes the server and its active capabilities.
type ServerInfo struct {
	WorkerID       string   `json:"agent_id"`
	Name           string   `json:"agent_name"`
	Version        string   `json:"version"`
	UptimeSeconds  float64  `json:"uptime_seconds"`
	Capabilities   []string `json:"capabilities"`
	TotalHandlers  int      `json:"total_handlers"`
	ActiveHandlers int      `json:"active_handlers"`
}

// Server is a per-worker method registry with a bounded request log.
type Server struct {
	id        string
	name      string
	version   string
	startedAt time.Time

	mu       sync.Mutex
	handlers map[string]*registration
	log      *ringbuf.Ring[LogEntry]

	calls metric.Int64Counter
}

// NewServer creates a Server for the worker id. An empty version defaults to 1.0.0.
func NewServer(id, name, version string) *Server {
	if version == "" {
		version = "1.0.0"
	}
	s := &Server{
		id:        id,
		name:      name,
		version:   version,
		startedAt: time.Now(),
		handlers:  make(map[string]*registration),
		log:       ringbuf.New[LogEntry](RequestLogCapacity),
	}
	counter, err := otel.Meter("procurement-assistant/worker").Int64Counter("worker.calls",
		metric.WithDescription("Number of handled worker requests"))
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to create call counter: %v", serverLogPrefix, err))
	} else {
		s.calls = counter
	}
	slog.Info(fmt.Sprintf("%s - Server initialized: %s (%s)", serverLogPrefix, name, id))
	return s
}

// ID returns the worker id.
func (s *Server) ID() string { return s.id }

// Name returns the display name.
func (s *Server) Name() string { return s.name }

// Register adds or replaces the handler for method.
func (s *Server) Register(method string, fn MethodFunc, opts HandlerOpts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[method]; ok {
		slog.Warn(fmt.Sprintf("%s - Handler for %s already registered, replacing", serverLogPrefix, method))
	}
	in, out := opts.InputSchema, opts.OutputSchema
	if in == nil {
		in = map[string]any{}
	}
	if out == nil {
		out = map[string]any{}
	}
	s.handlers[method] = &registration{
		method:       method,
		fn:           fn,
		description:  opts.Description,
		inputSchema:  in,
		outputSchema: out,
		status:       StatusActive,
	}
	slog.Debug(fmt.Sprintf("%s - Registered handler %s.%s", serverLogPrefix, s.id, method))
}

// Unregister removes method and reports whether it existed.
func (s *Server) Unregister(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[method]; !ok {
		return false
	}
	delete(s.handlers, method)
	return true
}

// Disable makes method reject with METHOD_NOT_FOUND.
func (s *Server) Disable(method string) bool { return s.setStatus(method, StatusDisabled) }

// Deprecate keeps method callable but logs a warning on each call.
func (s *Server) Deprecate(method string) bool { return s.setStatus(method, StatusDeprecated) }

// Activate restores method to active.
func (s *Server) Activate(method string) bool { return s.setStatus(method, StatusActive) }

func (s *Server) setStatus(method string, status HandlerStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[method]
	if !ok {
		return false
	}
	h.status = status
	slog.Info(fmt.Sprintf("%s - %s.%s is now %s", serverLogPrefix, s.id, method, status))
	return true
}

// Invoke satisfies router.Handler. Protocol errors come back as *envelope.ErrorInfo; handler
// failures and panics come back unwrapped so the router can attach agent context.
func (s *Server) Invoke(ctx context.Context, req *envelope.Request) (map[string]any, error) {
	return s.serve(ctx, req)
}

// HandleRequest dispatches req to its method and wraps the outcome in a response.
func (s *Server) HandleRequest(ctx context.Context, req *envelope.Request) *envelope.Response {
	result, err := s.serve(ctx, req)
	if err == nil {
		return envelope.NewResponse(req.ID, result, s.id)
	}
	if info, ok := envelope.AsErrorInfo(err); ok {
		return envelope.ErrorResponseFrom(req.ID, info, s.id)
	}
	return envelope.NewErrorResponse(req.ID, envelope.CodeInternalError,
		fmt.Sprintf("Handler error: %v", err), nil, s.id)
}

func (s *Server) serve(ctx context.Context, req *envelope.Request) (map[string]any, error) {
	start := time.Now()
	slog.Info(fmt.Sprintf("%s - [%s] Handling request: %s (id=%s)", serverLogPrefix, s.id, req.Method, req.ID))

	result, err := s.dispatch(ctx, req)
	s.record(req, err, start)

	if s.calls != nil {
		s.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("worker", s.id),
			attribute.String("method", req.Method),
			attribute.Bool("success", err == nil),
		))
	}
	return result, err
}

func (s *Server) dispatch(ctx context.Context, req *envelope.Request) (map[string]any, error) {
	s.mu.Lock()
	h, ok := s.handlers[req.Method]
	if !ok {
		available := s.methodsLocked(false)
		s.mu.Unlock()
		slog.Warn(fmt.Sprintf("%s - [%s] No handler for method: %s", serverLogPrefix, s.id, req.Method))
		return nil, envelope.NewError(envelope.CodeMethodNotFound,
			fmt.Sprintf("Method not found: %s", req.Method),
			map[string]any{"available_methods": available})
	}
	switch h.status {
	case StatusDisabled:
		s.mu.Unlock()
		slog.Warn(fmt.Sprintf("%s - [%s] Handler %s is disabled", serverLogPrefix, s.id, req.Method))
		return nil, envelope.NewError(envelope.CodeMethodNotFound,
			fmt.Sprintf("Method is disabled: %s", req.Method), nil)
	case StatusDeprecated:
		slog.Warn(fmt.Sprintf("%s - [%s] Handler %s is deprecated", serverLogPrefix, s.id, req.Method))
	}
	h.callCount++
	fn := h.fn
	s.mu.Unlock()

	result, err := callMethod(ctx, fn, req.Params)
	if err != nil {
		if _, ok := envelope.AsErrorInfo(err); !ok {
			slog.Error(fmt.Sprintf("%s - [%s] Handler error: %v", serverLogPrefix, s.id, err))
		}
		return nil, err
	}

	slog.Info(fmt.Sprintf("%s - [%s] Request %s handled successfully", serverLogPrefix, s.id, req.ID))
	return result, nil
}

func callMethod(ctx context.Context, fn MethodFunc, params map[string]any) (result map[string]any, err error) {
	defer func() {
		if v := recover(); v != nil {
			result, err = nil, &envelope.PanicError{Value: v}
		}
	}()
	return fn(ctx, params)
}

func (s *Server) record(req *envelope.Request, err error, start time.Time) {
	entry := LogEntry{
		RequestID:    req.ID,
		Method:       req.Method,
		SourceWorker: req.SourceWorker,
		Timestamp:    start.UTC(),
		DurationMs:   round(float64(time.Since(start).Microseconds())/1000.0, 2),
		Success:      err == nil,
	}
	if err != nil {
		code := envelope.CodeInternalError
		if info, ok := envelope.AsErrorInfo(err); ok {
			code = info.Code
		}
		entry.ErrorCode = &code
	}
	s.mu.Lock()
	s.log.Push(entry)
	s.mu.Unlock()
}

// Capabilities lists the active methods, sorted.
func (s *Server) Capabilities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.methodsLocked(true)
}

func (s *Server) methodsLocked(activeOnly bool) []string {
	out := make([]string, 0, len(s.handlers))
	for m, h := range s.handlers {
		if activeOnly && h.status != StatusActive {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// HandlerInfo returns the registration for method.
func (s *Server) HandlerInfo(method string) (*HandlerInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[method]
	if !ok {
		return nil, false
	}
	return &HandlerInfo{
		Method:       h.method,
		Description:  h.description,
		Status:       h.status,
		InputSchema:  h.inputSchema,
		OutputSchema: h.outputSchema,
		CallCount:    h.callCount,
	}, true
}

// Info describes the server.
func (s *Server) Info() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.methodsLocked(true)
	return ServerInfo{
		WorkerID:       s.id,
		Name:           s.name,
		Version:        s.version,
		UptimeSeconds:  round(time.Since(s.startedAt).Seconds(), 1),
		Capabilities:   active,
		TotalHandlers:  len(s.handlers),
		ActiveHandlers: len(active),
	}
}

// Stats summarizes the retained request log.
func (s *Server) Stats() ServerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ServerStats{WorkerID: s.id, HandlerCalls: make(map[string]int64, len(s.handlers))}
	var totalMs float64
	for _, e := range s.log.Items() {
		st.TotalRequests++
		if e.Success {
			st.Successful++
		}
		totalMs += e.DurationMs
	}
	st.Failed = st.TotalRequests - st.Successful
	if st.TotalRequests > 0 {
		st.SuccessRate = round(float64(st.Successful)/float64(st.TotalRequests)*100, 1)
		st.AvgDurationMs = round(totalMs/float64(st.TotalRequests), 2)
	}
	for m, h := range s.handlers {
		st.HandlerCalls[m] = h.callCount
	}
	return st
}

// RecentRequests returns up to limit of the newest log entries, oldest first. An empty
// method matches every method.
func (s *Server) RecentRequests(limit int, method string, errorsOnly bool) []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Last(limit, func(e LogEntry) bool {
		if method != "" && e.Method != method {
			return false
		}
		return !errorsOnly || !e.Success
	})
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
