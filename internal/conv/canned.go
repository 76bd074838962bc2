package conv

import "github.com/atelierhq/atelier/internal/intent"

// CannedReply returns the short-circuit chat response for a turn that never
// reaches the model. Greetings and plain questions are answered locally; a
// gated intent that failed its generation check gets an approval nudge.
func CannedReply(in intent.Intent) string {
	switch in {
	case intent.Greeting:
		return "Hello! I'm your Atelier workspace assistant. Describe what you want to build and I'll propose a plan."
	case intent.Question:
		return "Happy to help. For building projects, describe what you want to create and I'll propose a plan first."
	case intent.PlanRequest:
		return "Great, I'll put together a plan for your project and propose a structured approach."
	case intent.EditPlan:
		return "I can adjust the current plan. What would you like to change?"
	default:
		return "I'm here to help you build projects. Describe what you'd like to create!"
	}
}

// ApprovalRequiredReply is the benign response for a code request arriving
// before the plan is approved. It is a chat message, never an error.
const ApprovalRequiredReply = "I need an approved plan before writing any files. Describe what you want to build and I'll propose one, or approve the current plan to proceed."
