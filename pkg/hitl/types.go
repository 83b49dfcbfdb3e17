// Package hitl models human approval gates: typed gate requests, their builders, a
// per-session Manager that resolves free-text replies, and a single decision classifier.
package hitl

import "time"

// Kind identifies a gate type.
type Kind string

const (
	KindPOCreation          Kind = "po_creation"
	KindSupplierSelection   Kind = "supplier_selection"
	KindHighValueApproval   Kind = "high_value_approval"
	KindThresholdAdjustment Kind = "threshold_adjustment"
	KindExceptionHandling   Kind = "exception_handling"
)

// Kinds lists every gate kind.
var Kinds = []Kind{
	KindPOCreation,
	KindSupplierSelection,
	KindHighValueApproval,
	KindThresholdAdjustment,
	KindExceptionHandling,
}

// Status is the resolution state of a gate.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusModified  Status = "modified"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Well-known option ids.
const (
	OptionApprove = "approve"
	OptionReject  = "reject"
	OptionModify  = "modify"
	OptionCustom  = "custom"
)

// DefaultTimeoutSeconds is the timeout hint for every kind except high-value approval.
const DefaultTimeoutSeconds = 300

// Option is one choice offered by a gate.
type Option struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Recommended bool           `json:"recommended"`
}

// Request is an open question put to the user.
type Request struct {
	ID               string         `json:"request_id"`
	Kind             Kind           `json:"gate_type"`
	Title            string         `json:"title"`
	Message          string         `json:"message"`
	Options          []Option       `json:"options"`
	Data             map[string]any `json:"data"`
	CreatedAt        time.Time      `json:"created_at"`
	TimeoutSeconds   int            `json:"timeout_seconds"`
	AllowCustomInput bool           `json:"allow_custom_input"`
	RequireReason    bool           `json:"require_reason"`
}

// Response records how a gate was resolved.
type Response struct {
	RequestID      string    `json:"request_id"`
	Status         Status    `json:"status"`
	SelectedOption string    `json:"selected_option,omitempty"`
	CustomInput    string    `json:"custom_input,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RespondedAt    time.Time `json:"responded_at"`
}

// Resolved reports whether the response closed the gate.
func (r *Response) Resolved() bool {
	return r.Status != StatusPending
}

// GateConfig tunes one gate kind.
type GateConfig struct {
	Enabled        bool    `json:"enabled"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	Threshold      float64 `json:"threshold,omitempty"`
}

// DefaultHighValueThreshold is the amount above which a PO needs high-value approval.
const DefaultHighValueThreshold = 10000.0

// DefaultConfigs returns the per-kind defaults.
func DefaultConfigs() map[Kind]GateConfig {
	return map[Kind]GateConfig{
		KindPOCreation:          {Enabled: true, TimeoutSeconds: DefaultTimeoutSeconds},
		KindSupplierSelection:   {Enabled: true, TimeoutSeconds: DefaultTimeoutSeconds},
		KindHighValueApproval:   {Enabled: true, TimeoutSeconds: 600, Threshold: DefaultHighValueThreshold},
		KindThresholdAdjustment: {Enabled: true, TimeoutSeconds: DefaultTimeoutSeconds},
		KindExceptionHandling:   {Enabled: true, TimeoutSeconds: DefaultTimeoutSeconds},
	}
}
