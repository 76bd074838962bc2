package conv

import (
	"regexp"
	"strings"

	"github.com/atelierhq/atelier/internal/workspace"
)

// Plan responses are markdown with stage headers and numbered or bulleted
// step lists. The markers here match the shapes the planning prompt asks
// for; prose without any of them is an ordinary chat reply.
var (
	stageHeaderRe = regexp.MustCompile(`(?m)^#{1,3}\s*(?:Stage\s+\d+[:.]?\s*)?(.+)$`)
	planMarkerRe  = regexp.MustCompile(`(?mi)^#{1,3}\s*(stage\s+\d+|plan\b|planning\b)`)
	stepLineRe    = regexp.MustCompile(`(?m)^\s*(?:\d+\.|[-*])\s+(.+)$`)
)

// LooksLikePlan reports whether a prose model response carries a plan
// proposal rather than plain conversation.
func LooksLikePlan(text string) bool {
	return planMarkerRe.MatchString(text)
}

// ExtractPlan builds a Plan from a planning-mode model response. The summary
// is the first heading (or first non-empty line when the response has no
// headings); the steps are every numbered or bulleted list entry, in order.
// Returns false when the text carries no recognizable plan structure.
func ExtractPlan(text string) (workspace.Plan, bool) {
	if !LooksLikePlan(text) {
		return workspace.Plan{}, false
	}

	var plan workspace.Plan
	if m := stageHeaderRe.FindStringSubmatch(text); m != nil {
		plan.Summary = strings.TrimSpace(m[1])
	}
	if plan.Summary == "" {
		for _, line := range strings.Split(text, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				plan.Summary = s
				break
			}
		}
	}

	for _, m := range stepLineRe.FindAllStringSubmatch(text, -1) {
		step := strings.TrimSpace(m[1])
		if step != "" {
			plan.Steps = append(plan.Steps, step)
		}
	}

	return plan, true
}
