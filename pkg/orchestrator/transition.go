package orchestrator

import (
	"github.com/morezero/procurement-assistant/pkg/hitl"
	"github.com/morezero/procurement-assistant/pkg/procurement"
)

// Intent is what a user turn asks the orchestrator to do.
type Intent int

const (
	IntentNone Intent = iota
	IntentApprove
	IntentReject
	IntentCheckInventory
)

func (i Intent) String() string {
	switch i {
	case IntentApprove:
		return "approve"
	case IntentReject:
		return "reject"
	case IntentCheckInventory:
		return "check_inventory"
	default:
		return "none"
	}
}

var inventoryKeywords = []string{"check inventory", "inventory", "stock"}

// Classify interprets text for stage. Approve and reject are only recognised while the
// stage awaits a decision; elsewhere they fall through like any other text.
func Classify(text string, stage Stage) Intent {
	if stage.AwaitsDecision() {
		switch hitl.ClassifyDecision(text, nil).Decision {
		case hitl.Approve:
			return IntentApprove
		case hitl.Reject:
			return IntentReject
		}
	}
	if hitl.ContainsKeyword(text, inventoryKeywords...) {
		return IntentCheckInventory
	}
	return IntentNone
}

// Advance applies intent to state and returns the next state. It never calls a worker
// and does not modify state.
func Advance(state *WorkflowState, intent Intent) *WorkflowState {
	next := state.Clone()
	next.Notice = ""

	switch state.Stage {
	case StageAwaitingApproval:
		switch intent {
		case IntentApprove:
			next.Stage = StageApproved
		case IntentReject:
			next.Stage = StageRejected
		case IntentCheckInventory:
			restart(next)
		}

	case StageAwaitingProductApproval:
		if intent == IntentApprove || intent == IntentReject {
			decideProduct(next, intent == IntentApprove)
		}

	case StageApproved, StageSupplierApproved:
		// resumed mid-execution; Execute picks it up

	default:
		restart(next)
	}
	return next
}

func restart(s *WorkflowState) {
	s.Stage = StageInitial
	s.resetApproval()
}

// decideProduct records the decision on the current product and moves the loop on.
func decideProduct(s *WorkflowState, approve bool) {
	if current, ok := s.CurrentProduct(); ok {
		if approve {
			s.ApprovedProducts = append(s.ApprovedProducts, current)
		}
		s.ProductIndex++
	}
	if s.ProductIndex < len(s.SupplierRecommendations) {
		s.Stage = StageAwaitingProductApproval
		return
	}
	if len(s.ApprovedProducts) == 0 {
		s.Stage = StageRejected
		return
	}
	s.Stage = StageSupplierApproved
	s.SupplierRecommendations = append([]procurement.SupplierRecommendation(nil), s.ApprovedProducts...)
}
