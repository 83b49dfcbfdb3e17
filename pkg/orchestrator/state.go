// Package orchestrator drives the procurement conversation: it interprets each user
// turn, sequences the inventory, supplier and purchase order workers through the
// router, runs the per-product approval loop and renders the reply.
package orchestrator

import (
	"github.com/morezero/procurement-assistant/pkg/procurement"
)

// Stage is the orchestrator's position in the approval sequence.
type Stage string

const (
	StageInitial                 Stage = "initial"
	StageAwaitingApproval        Stage = "awaiting_approval"
	StageApproved                Stage = "approved"
	StageAwaitingProductApproval Stage = "awaiting_product_approval"
	StageSupplierApproved        Stage = "supplier_approved"
	StageRejected                Stage = "rejected"
	StageComplete                Stage = "complete"
	StageError                   Stage = "error"
)

// Stages lists every stage.
var Stages = []Stage{
	StageInitial, StageAwaitingApproval, StageApproved, StageAwaitingProductApproval,
	StageSupplierApproved, StageRejected, StageComplete, StageError,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// AwaitsDecision reports whether the stage is waiting on a yes/no from the user.
func (s Stage) AwaitsDecision() bool {
	return s == StageAwaitingApproval || s == StageAwaitingProductApproval
}

// WorkflowState is everything the orchestrator needs to resume a conversation. The
// caller owns it; the orchestrator only reads it and returns a new one.
type WorkflowState struct {
	Stage Stage `json:"workflow_stage"`

	ReorderRecommendations []procurement.ReorderRecommendation `json:"reorder_recommendations"`
	InventorySummary       string                              `json:"inventory_summary"`

	SupplierRecommendations []procurement.SupplierRecommendation `json:"supplier_recommendations"`
	SupplierSummary         string                               `json:"supplier_summary"`
	ProductIndex            int                                  `json:"current_product_index"`
	ApprovedProducts        []procurement.SupplierRecommendation `json:"approved_products"`

	PurchaseOrders []procurement.PurchaseOrder `json:"purchase_orders"`
	POSummary      string                      `json:"po_summary"`

	// Notice is a one-turn message shown ahead of the rendered stage.
	Notice string `json:"notice,omitempty"`
	// PendingGateID is the approval gate opened for the current prompt.
	PendingGateID string `json:"pending_gate_id,omitempty"`
}

// NewState returns the state of a fresh conversation.
func NewState() *WorkflowState {
	return &WorkflowState{Stage: StageInitial}
}

// Clone returns a deep copy of s.
func (s *WorkflowState) Clone() *WorkflowState {
	if s == nil {
		return NewState()
	}
	c := *s
	c.ReorderRecommendations = append([]procurement.ReorderRecommendation(nil), s.ReorderRecommendations...)
	c.SupplierRecommendations = append([]procurement.SupplierRecommendation(nil), s.SupplierRecommendations...)
	c.ApprovedProducts = append([]procurement.SupplierRecommendation(nil), s.ApprovedProducts...)
	c.PurchaseOrders = append([]procurement.PurchaseOrder(nil), s.PurchaseOrders...)
	return &c
}

// CurrentProduct returns the recommendation awaiting a decision.
func (s *WorkflowState) CurrentProduct() (procurement.SupplierRecommendation, bool) {
	if s.ProductIndex < 0 || s.ProductIndex >= len(s.SupplierRecommendations) {
		return procurement.SupplierRecommendation{}, false
	}
	return s.SupplierRecommendations[s.ProductIndex], true
}

// resetApproval clears everything produced after the inventory check.
func (s *WorkflowState) resetApproval() {
	s.SupplierRecommendations = nil
	s.SupplierSummary = ""
	s.ProductIndex = 0
	s.ApprovedProducts = nil
	s.PurchaseOrders = nil
	s.POSummary = ""
}
