package cards

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

const logPrefix = "cards:registry"

// Registry indexes agent cards by worker id and by capability name. A capability may be
// declared by at most one worker; Add rejects collisions.
type Registry struct {
	mu       sync.RWMutex
	cards    map[string]*AgentCard
	capOwner map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		cards:    make(map[string]*AgentCard),
		capOwner: make(map[string]string),
	}
}

// NewDefaultRegistry creates a registry holding DefaultCards.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, c := range DefaultCards() {
		if err := r.Add(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Validate normalizes and checks a card before registration.
func Validate(card *AgentCard) error {
	if card == nil {
		return newCardError(ErrCodeInvalidCard, "card is nil")
	}
	card.AgentID = strings.TrimSpace(card.AgentID)
	if card.AgentID == "" {
		return newCardError(ErrCodeInvalidCard, "agent_id is required")
	}
	if strings.TrimSpace(card.Name) == "" {
		return newCardError(ErrCodeInvalidCard, "name is required for %s", card.AgentID)
	}
	if card.Version == "" {
		card.Version = DefaultVersion
	}
	if err := ValidateVersion(card.Version); err != nil {
		return &CardError{Code: ErrCodeInvalidCard, Message: err.Error(), Details: map[string]any{"agent_id": card.AgentID}}
	}
	seen := make(map[string]bool, len(card.Capabilities))
	for _, name := range card.Capabilities {
		if !ValidateCapabilityName(name) {
			return newCardError(ErrCodeInvalidCard, "invalid capability %q on %s", name, card.AgentID)
		}
		if seen[name] {
			return newCardError(ErrCodeInvalidCard, "capability %q declared twice on %s", name, card.AgentID)
		}
		seen[name] = true
	}
	for name := range card.CapabilityDetails {
		if !seen[name] {
			return newCardError(ErrCodeInvalidCard, "capability_details entry %q not listed in capabilities of %s", name, card.AgentID)
		}
	}
	return nil
}

// Add registers a card. Re-adding an existing agent_id replaces it. A capability already
// owned by a different worker is a CAPABILITY_CONFLICT and nothing is changed.
func (r *Registry) Add(card *AgentCard) error {
	if err := Validate(card); err != nil {
		return err
	}
	c := card.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range c.Capabilities {
		if owner, ok := r.capOwner[name]; ok && owner != c.AgentID {
			return &CardError{
				Code:    ErrCodeCapabilityConflict,
				Message: fmt.Sprintf("capability %q is already declared by %s", name, owner),
				Details: map[string]any{"capability": name, "owner": owner, "agent_id": c.AgentID},
			}
		}
	}

	if old, ok := r.cards[c.AgentID]; ok {
		for _, name := range old.Capabilities {
			delete(r.capOwner, name)
		}
	}
	r.cards[c.AgentID] = c
	for _, name := range c.Capabilities {
		r.capOwner[name] = c.AgentID
	}

	slog.Debug(fmt.Sprintf("%s - Added card %s (%d capabilities)", logPrefix, c.AgentID, len(c.Capabilities)))
	return nil
}

// Remove deletes a card. It reports whether the card existed.
func (r *Registry) Remove(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.cards[agentID]
	if !ok {
		return false
	}
	for _, name := range c.Capabilities {
		if r.capOwner[name] == agentID {
			delete(r.capOwner, name)
		}
	}
	delete(r.cards, agentID)
	slog.Info(fmt.Sprintf("%s - Removed card %s", logPrefix, agentID))
	return true
}

// Get returns a copy of the card for agentID.
func (r *Registry) Get(agentID string) (*AgentCard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[agentID]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// Has reports whether a card is registered for agentID.
func (r *Registry) Has(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cards[agentID]
	return ok
}

// Owner returns the worker id declaring capability.
func (r *Registry) Owner(capability string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.capOwner[capability]
	return id, ok
}

// FindByCapability returns every card declaring capability.
func (r *Registry) FindByCapability(capability string) []*AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*AgentCard
	for _, id := range r.sortedIDs() {
		c := r.cards[id]
		if c.HasCapability(capability) {
			out = append(out, c.clone())
		}
	}
	return out
}

// ListCapabilities maps each worker id to its declared capabilities.
func (r *Registry) ListCapabilities() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.cards))
	for id, c := range r.cards {
		out[id] = append([]string(nil), c.Capabilities...)
	}
	return out
}

// All returns copies of every card ordered by agent_id.
func (r *Registry) All() []*AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AgentCard, 0, len(r.cards))
	for _, id := range r.sortedIDs() {
		out = append(out, r.cards[id].clone())
	}
	return out
}

// Len returns the number of registered cards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}

// Resolve finds the card for a capability reference such as "select_supplier@^1".
func (r *Registry) Resolve(ref string) (*AgentCard, error) {
	parsed, err := ParseCapabilityRef(ref)
	if err != nil {
		return nil, &CardError{Code: ErrCodeInvalidCard, Message: err.Error()}
	}
	owner, ok := r.Owner(parsed.Name)
	if !ok {
		return nil, newCardError(ErrCodeNotFound, "no card declares capability %s", parsed.Name)
	}
	card, ok := r.Get(owner)
	if !ok {
		return nil, newCardError(ErrCodeNotFound, "card %s removed during lookup", owner)
	}
	match, err := Satisfies(card.Version, parsed.Constraint)
	if err != nil {
		return nil, &CardError{Code: ErrCodeInvalidCard, Message: err.Error()}
	}
	if !match {
		return nil, &CardError{
			Code:    ErrCodeVersionMismatch,
			Message: fmt.Sprintf("%s@%s does not satisfy %s", card.AgentID, card.Version, parsed.Constraint),
			Details: map[string]any{"agent_id": card.AgentID, "version": card.Version, "constraint": parsed.Constraint},
		}
	}
	return card, nil
}

func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.cards))
	for id := range r.cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
