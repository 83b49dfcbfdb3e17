package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/morezero/procurement-assistant/pkg/envelope"
	"github.com/morezero/procurement-assistant/pkg/ringbuf"
)

const clientLogPrefix = "worker:client"

// HistoryCapacity bounds the per-client call history.
const HistoryCapacity = 100

// Sender routes a request to its worker. *router.Router satisfies it.
type Sender interface {
	Route(ctx context.Context, req *envelope.Request) *envelope.Response
}

// HistoryEntry records one sent request.
type HistoryEntry struct {
	RequestID    string              `json:"request_id"`
	Method       string              `json:"method"`
	TargetWorker string              `json:"target_agent,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
	Success      bool                `json:"success"`
	Error        *envelope.ErrorInfo `json:"error,omitempty"`
}

// ClientStats summarizes the call history.
type ClientStats struct {
	SourceWorker    string  `json:"source_agent"`
	TotalRequests   int     `json:"total_requests"`
	Successful      int     `json:"successful"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"success_rate"`
	PendingRequests int     `json:"pending_requests"`
}

// Client sends requests on behalf of one worker through a shared Sender.
type Client struct {
	source string

	mu      sync.Mutex
	sender  Sender
	pending map[string]*envelope.Request
	history *ringbuf.Ring[HistoryEntry]
}

// NewClient creates a Client for source. sender may be nil and set later.
func NewClient(source string, sender Sender) *Client {
	return &Client{
		source:  source,
		sender:  sender,
		pending: make(map[string]*envelope.Request),
		history: ringbuf.New[HistoryEntry](HistoryCapacity),
	}
}

// Source returns the worker id this client sends as.
func (c *Client) Source() string { return c.source }

// SetSender replaces the Sender.
func (c *Client) SetSender(sender Sender) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()
}

// Send routes a request and returns its response. An empty target routes by capability.
// The only error is a missing Sender; worker failures come back inside the Response.
func (c *Client) Send(ctx context.Context, method string, params map[string]any, target string) (*envelope.Response, error) {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender == nil {
		return nil, envelope.NewError(envelope.CodeInternalError, "No router configured", nil)
	}

	req := envelope.NewRequest(method, params, c.source, target)
	slog.Info(fmt.Sprintf("%s - [%s] Sending request: %s (id=%s)", clientLogPrefix, c.source, method, req.ID))

	c.mu.Lock()
	c.pending[req.ID] = req
	c.mu.Unlock()

	resp := sender.Route(ctx, req)

	c.mu.Lock()
	delete(c.pending, req.ID)
	c.history.Push(HistoryEntry{
		RequestID:    req.ID,
		Method:       method,
		TargetWorker: target,
		Timestamp:    time.Now().UTC(),
		Success:      resp.Error == nil,
		Error:        resp.Error,
	})
	c.mu.Unlock()

	if resp.Error != nil {
		slog.Warn(fmt.Sprintf("%s - [%s] Request %s failed: %s", clientLogPrefix, c.source, req.ID, resp.Error.Message))
	} else {
		slog.Info(fmt.Sprintf("%s - [%s] Request %s completed successfully", clientLogPrefix, c.source, req.ID))
	}
	return resp, nil
}

// SendNotification routes a request without an id and discards the response.
func (c *Client) SendNotification(ctx context.Context, method string, params map[string]any, target string) {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender == nil {
		slog.Warn(fmt.Sprintf("%s - [%s] No router configured, notification not sent", clientLogPrefix, c.source))
		return
	}
	slog.Info(fmt.Sprintf("%s - [%s] Sending notification: %s", clientLogPrefix, c.source, method))
	_ = sender.Route(ctx, envelope.NewNotification(method, params, c.source, target))
}

// Pending returns the in-flight requests ordered by id.
func (c *Client) Pending() []*envelope.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*envelope.Request, 0, len(c.pending))
	for _, r := range c.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// History returns up to limit of the newest entries, oldest first. An empty method
// matches every method.
func (c *Client) History(limit int, method string) []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Last(limit, func(e HistoryEntry) bool {
		return method == "" || e.Method == method
	})
}

// Stats summarizes the retained history.
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := ClientStats{SourceWorker: c.source, PendingRequests: len(c.pending)}
	for _, e := range c.history.Items() {
		st.TotalRequests++
		if e.Success {
			st.Successful++
		}
	}
	st.Failed = st.TotalRequests - st.Successful
	if st.TotalRequests > 0 {
		st.SuccessRate = round(float64(st.Successful)/float64(st.TotalRequests)*100, 1)
	}
	return st
}
