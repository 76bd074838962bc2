// Package conv resolves conversation intents into agent operating modes and
// produces the prose-side artifacts of a turn: mode-specific system prompts,
// canned replies for non-generating intents, and plan extraction from
// planning-mode responses.
package conv

import (
	"github.com/atelierhq/atelier/internal/intent"
	"github.com/atelierhq/atelier/internal/workspace"
)

// ModeType is the agent's operating stance for a turn.
type ModeType string

const (
	ModeDiscussion ModeType = "discussion"
	ModePlanning   ModeType = "planning"
	ModeBuilding   ModeType = "building"
)

// Mode pairs the stance with the code-generation gate. It is derived on every
// message from (intent, workspace state) and never stored.
type Mode struct {
	Type            ModeType `json:"type"`
	CanGenerateCode bool     `json:"canGenerateCode"`
}

// Resolve maps a classified intent and the current workspace state to a mode.
//
// A code request only generates when the plan is approved; an approval only
// generates when a plan exists at all. Intent alone cannot distinguish
// "approved plan exists" from "no plan yet", which is why the gate is a
// derived boolean rather than a property of the intent.
func Resolve(in intent.Intent, state workspace.State) Mode {
	switch in {
	case intent.Greeting, intent.Question:
		return Mode{Type: ModeDiscussion}
	case intent.PlanRequest, intent.EditPlan:
		return Mode{Type: ModePlanning}
	case intent.CodeRequest:
		return Mode{
			Type:            ModeBuilding,
			CanGenerateCode: state.Approved(),
		}
	case intent.Approval:
		return Mode{
			Type:            ModeBuilding,
			CanGenerateCode: state.CurrentPlan != nil,
		}
	default:
		return Mode{Type: ModeDiscussion}
	}
}
