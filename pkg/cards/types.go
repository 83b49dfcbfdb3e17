// Package cards provides the agent card capability registry: static per-worker
// declarations of identity and capabilities used for discovery and routing.
package cards

import "fmt"

// Capability describes one named operation a worker can perform.
type Capability struct {
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
}

// AgentCard is the capability declaration for one worker.
type AgentCard struct {
	AgentID           string                `json:"agent_id" yaml:"agent_id"`
	Name              string                `json:"name" yaml:"name"`
	Description       string                `json:"description,omitempty" yaml:"description,omitempty"`
	Version           string                `json:"version" yaml:"version"`
	Capabilities      []string              `json:"capabilities" yaml:"capabilities"`
	CapabilityDetails map[string]Capability `json:"capability_details,omitempty" yaml:"capability_details,omitempty"`
	InputSchema       map[string]any        `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema      map[string]any        `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
	Metadata          map[string]any        `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DefaultVersion is assigned to cards that omit a version.
const DefaultVersion = "1.0.0"

// HasCapability reports whether the card declares name.
func (c *AgentCard) HasCapability(name string) bool {
	for _, cp := range c.Capabilities {
		if cp == name {
			return true
		}
	}
	return false
}

// Detail returns the detailed declaration for a capability, falling back to a bare
// Capability carrying only the name.
func (c *AgentCard) Detail(name string) Capability {
	if d, ok := c.CapabilityDetails[name]; ok {
		if d.Name == "" {
			d.Name = name
		}
		return d
	}
	return Capability{Name: name}
}

func (c *AgentCard) clone() *AgentCard {
	out := *c
	out.Capabilities = append([]string(nil), c.Capabilities...)
	if c.CapabilityDetails != nil {
		out.CapabilityDetails = make(map[string]Capability, len(c.CapabilityDetails))
		for k, v := range c.CapabilityDetails {
			out.CapabilityDetails[k] = v
		}
	}
	return &out
}

// Error codes for CardError.
const (
	ErrCodeInvalidCard        = "INVALID_CARD"
	ErrCodeCapabilityConflict = "CAPABILITY_CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeVersionMismatch    = "VERSION_MISMATCH"
)

// CardError is a structured error from the card registry.
type CardError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *CardError) Error() string {
	return e.Code + ": " + e.Message
}

func newCardError(code, format string, args ...any) *CardError {
	return &CardError{Code: code, Message: fmt.Sprintf(format, args...)}
}
