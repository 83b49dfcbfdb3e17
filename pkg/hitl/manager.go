package hitl

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/morezero/procurement-assistant/pkg/ringbuf"
)

const logPrefix = "hitl:manager"

// ResponseRetention bounds how many resolved responses a Manager keeps.
const ResponseRetention = 100

// Manager tracks the open and resolved gates of one session.
type Manager struct {
	mu        sync.Mutex
	pending   map[string]*Request
	responses map[string]*Response
	resolved  *ringbuf.Ring[string]
	configs   map[Kind]GateConfig
}

// NewManager creates a Manager with DefaultConfigs.
func NewManager() *Manager {
	return &Manager{
		pending:   make(map[string]*Request),
		responses: make(map[string]*Response),
		resolved:  ringbuf.New[string](ResponseRetention),
		configs:   DefaultConfigs(),
	}
}

// SetConfig overrides the configuration for kind.
func (m *Manager) SetConfig(kind Kind, cfg GateConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[kind] = cfg
}

// Config returns the configuration for kind.
func (m *Manager) Config(kind Kind) GateConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[kind]
}

// IsEnabled reports whether gates of kind should be raised. Unknown kinds are enabled.
func (m *Manager) IsEnabled(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[kind]
	return !ok || cfg.Enabled
}

// Open registers req as pending and applies the kind's timeout hint.
func (m *Manager) Open(req *Request) *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.configs[req.Kind]; ok && cfg.TimeoutSeconds > 0 {
		req.TimeoutSeconds = cfg.TimeoutSeconds
	}
	m.pending[req.ID] = req
	slog.Info(fmt.Sprintf("%s - Opened %s gate %s", logPrefix, req.Kind, req.ID))
	return req
}

// HighValueApproval opens a high-value gate using the configured threshold.
func (m *Manager) HighValueApproval(poNumber string, total float64, supplier string, lines []PricedLine) *Request {
	return m.Open(NewHighValueApproval(poNumber, total, supplier, lines, m.Config(KindHighValueApproval).Threshold))
}

// Get returns the pending request id.
func (m *Manager) Get(id string) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.pending[id]
	return req, ok
}

// Pending returns open requests, oldest first.
func (m *Manager) Pending() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, 0, len(m.pending))
	for _, r := range m.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Response returns the stored resolution of id.
func (m *Manager) Response(id string) (*Response, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.responses[id]
	return resp, ok
}

// ProcessResponse resolves pending request id from the user's reply. Unknown or
// already-resolved ids yield CANCELLED without side effects. A reply that cannot be
// interpreted on a gate without custom input yields PENDING and the gate stays open.
func (m *Manager) ProcessResponse(id, input, reason string) *Response {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.pending[id]
	if !ok {
		slog.Warn(fmt.Sprintf("%s - Request %s not found", logPrefix, id))
		return &Response{RequestID: id, Status: StatusCancelled, Reason: "Request not found", RespondedAt: time.Now().UTC()}
	}

	resp := &Response{RequestID: id, Reason: reason, RespondedAt: time.Now().UTC()}
	c := ClassifyDecision(input, req.Options)
	switch c.Decision {
	case Approve:
		resp.Status, resp.SelectedOption = StatusApproved, OptionApprove
	case Reject:
		resp.Status, resp.SelectedOption = StatusRejected, OptionReject
	case Custom:
		resp.SelectedOption = c.Option.ID
		resp.Status = optionStatus(req.Kind, c.Option.ID)
		if c.Option.ID == OptionCustom {
			resp.CustomInput = input
		}
	default:
		if !req.AllowCustomInput {
			slog.Info(fmt.Sprintf("%s - Unclear reply for %s; gate stays open", logPrefix, id))
			resp.Status = StatusPending
			return resp
		}
		resp.Status, resp.SelectedOption, resp.CustomInput = StatusModified, OptionCustom, input
	}
	if c.Option != nil && c.Decision != Custom {
		resp.SelectedOption = c.Option.ID
	}

	delete(m.pending, id)
	m.storeResponse(resp)
	slog.Info(fmt.Sprintf("%s - Processed response for %s: %s", logPrefix, id, resp.Status))
	return resp
}

// optionStatus maps an option that is neither approve nor reject. Picking a supplier
// is a selection and counts as approval; any other option is a modification.
func optionStatus(kind Kind, optionID string) Status {
	switch strings.ToLower(optionID) {
	case OptionModify, OptionCustom:
		return StatusModified
	}
	if kind == KindSupplierSelection {
		return StatusApproved
	}
	return StatusModified
}

// CancelRequest closes a pending request as CANCELLED.
func (m *Manager) CancelRequest(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[id]; !ok {
		return false
	}
	delete(m.pending, id)
	m.storeResponse(&Response{RequestID: id, Status: StatusCancelled, Reason: "Cancelled by user", RespondedAt: time.Now().UTC()})
	slog.Info(fmt.Sprintf("%s - Cancelled request %s", logPrefix, id))
	return true
}

// ExpireStale closes every pending request older than its timeout hint as TIMEOUT and
// returns the expired ids.
func (m *Manager) ExpireStale(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, req := range m.pending {
		if req.TimeoutSeconds <= 0 {
			continue
		}
		if now.Sub(req.CreatedAt) > time.Duration(req.TimeoutSeconds)*time.Second {
			delete(m.pending, id)
			m.storeResponse(&Response{RequestID: id, Status: StatusTimeout, Reason: "Timed out", RespondedAt: now.UTC()})
			expired = append(expired, id)
		}
	}
	sort.Strings(expired)
	return expired
}

// storeResponse records resp, dropping the oldest response once ResponseRetention is
// reached. Callers hold m.mu.
func (m *Manager) storeResponse(resp *Response) {
	if m.resolved.Len() == m.resolved.Cap() {
		delete(m.responses, m.resolved.At(0))
	}
	m.resolved.Push(resp.RequestID)
	m.responses[resp.RequestID] = resp
}

// CheckHighValueThreshold reports whether amount exceeds the high-value threshold.
func (m *Manager) CheckHighValueThreshold(amount float64) bool {
	return amount > m.Config(KindHighValueApproval).Threshold
}
