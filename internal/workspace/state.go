// Package workspace holds per-project conversation state and its lifecycle.
package workspace

import "fmt"

// PlanStatus is the approval stage of the workspace plan.
type PlanStatus string

const (
	PlanNone     PlanStatus = "none"
	PlanProposed PlanStatus = "proposed"
	PlanApproved PlanStatus = "approved"
)

// Plan is the structured proposal the agent emits before writing code.
// It is immutable once created; an edit-plan turn replaces it wholesale.
type Plan struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps"`
}

// State is the conversation state for one workspace. One instance exists per
// active project conversation; turns on the same workspace are serialized by
// the engine.
type State struct {
	ID          string     `json:"id"`
	CurrentPlan *Plan      `json:"currentPlan"`
	PlanStatus  PlanStatus `json:"planStatus"`
}

// New returns the initial state for a freshly opened workspace.
func New(id string) State {
	return State{ID: id, PlanStatus: PlanNone}
}

// Propose installs a new plan proposal. Proposing is the only transition that
// may move the status backward from approved.
func (s *State) Propose(p Plan) {
	plan := p
	s.CurrentPlan = &plan
	s.PlanStatus = PlanProposed
}

// Approve marks the current plan approved. It fails when no plan exists:
// approval of a non-existent plan must not unlock code generation.
func (s *State) Approve() error {
	if s.CurrentPlan == nil {
		return fmt.Errorf("workspace %s: no plan to approve", s.ID)
	}
	s.PlanStatus = PlanApproved
	return nil
}

// Approved reports whether the workspace has an approved plan.
func (s State) Approved() bool {
	return s.PlanStatus == PlanApproved && s.CurrentPlan != nil
}
