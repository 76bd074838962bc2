// Package intent classifies user messages into conversation intents.
//
// Classification is pure pattern matching: no model call, no state, no
// failure mode. Pattern groups are evaluated in a fixed order that encodes
// priority; a message matching several groups gets the first match.
package intent

import "strings"

// Intent is the classified purpose of a single user message.
type Intent string

const (
	Greeting    Intent = "GREETING"
	Question    Intent = "QUESTION"
	PlanRequest Intent = "PLAN_REQUEST"
	CodeRequest Intent = "CODE_REQUEST"
	Approval    Intent = "APPROVAL"
	EditPlan    Intent = "EDIT_PLAN"
)

// String returns the string representation of the intent.
func (i Intent) String() string {
	return string(i)
}

// greetingMaxLen bounds greeting classification to short messages so a long
// request that happens to contain "hi" is not swallowed as small talk. The
// value is a tuning policy, not a correctness boundary.
const greetingMaxLen = 50

var greetingPatterns = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"howdy", "greetings", "sup", "yo", "what's up", "how are you",
}

var approvalPatterns = []string{
	"yes", "go ahead", "proceed", "approved", "looks good", "let's do it",
	"execute", "run it", "start", "begin", "okay", "ok", "sure",
}

var codePatterns = []string{
	"build this", "create this", "make this", "code this", "implement",
	"generate", "write the code", "code it", "build me", "create me",
}

var planPatterns = []string{
	"i want to build", "i need to create", "let's build", "plan for",
	"i want a", "i need a", "build a", "create a", "make a",
}

var editPatterns = []string{
	"change the plan", "modify the plan", "update the plan", "revise",
	"add to the plan", "remove from", "instead of",
}

// Classify maps a raw user message to an intent. It is deterministic,
// case-insensitive, and trims surrounding whitespace before matching.
// Unmatched messages default to Question.
func Classify(message string) Intent {
	msg := strings.ToLower(strings.TrimSpace(message))

	if len(msg) < greetingMaxLen && matchAny(msg, greetingPatterns) {
		return Greeting
	}
	if matchAny(msg, approvalPatterns) {
		return Approval
	}
	if matchAny(msg, codePatterns) {
		return CodeRequest
	}
	if matchAny(msg, planPatterns) {
		return PlanRequest
	}
	if matchAny(msg, editPatterns) {
		return EditPlan
	}
	return Question
}

// ShouldModifyFiles reports whether the intent may reach the generation and
// execution path. This is the single hard gate: every other intent gets a
// chat-only turn.
func ShouldModifyFiles(i Intent) bool {
	return i == CodeRequest || i == Approval
}

func matchAny(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
