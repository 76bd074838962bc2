// Package engine runs one conversational turn end to end: classify the
// message, resolve the mode, invoke the model when permitted, normalize the
// output, parse actions, and commit the workspace atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atelierhq/atelier/internal/action"
	"github.com/atelierhq/atelier/internal/conv"
	"github.com/atelierhq/atelier/internal/intent"
	"github.com/atelierhq/atelier/internal/logging"
	"github.com/atelierhq/atelier/internal/normalize"
	"github.com/atelierhq/atelier/internal/provider"
	"github.com/atelierhq/atelier/internal/workspace"
)

// CostClass reports which billing branch a turn took. The serving layer maps
// it to an actual debit; the engine only classifies.
type CostClass string

const (
	CostNone  CostClass = "none"
	CostCode  CostClass = "code"
	CostImage CostClass = "image"
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	// Model is the model id passed through to the invoker and used for cost
	// classification.
	Model string

	// CodeCost and ImageCost are the per-generation debits recorded on the
	// turn row. Chat turns cost nothing.
	CodeCost  int
	ImageCost int

	// DefaultCredits is the balance a workspace starts with when the engine
	// creates it on first use.
	DefaultCredits int
}

const (
	defaultCodeCost  = 5
	defaultImageCost = 50
	defaultCredits   = 100
)

// Request is one user turn.
type Request struct {
	WorkspaceID string
	Message     string
}

// Response is the outcome of one committed turn.
type Response struct {
	Intent            intent.Intent
	Mode              conv.Mode
	ShouldModifyFiles bool
	Reply             string
	Actions           []action.Action
	Events            []action.Event
	Files             []workspace.FileRecord
	State             workspace.State
	Provider          string
	FailedOver        bool
	CostClass         CostClass
	Cost              int
}

// Engine wires the turn pipeline over a store, a locker, and a provider.
type Engine struct {
	store   *workspace.Store
	locker  *workspace.Locker
	invoker provider.Invoker
	cfg     Config
}

// New constructs an engine. The invoker is typically a provider.Chain.
func New(store *workspace.Store, locker *workspace.Locker, invoker provider.Invoker, cfg Config) *Engine {
	if cfg.CodeCost == 0 {
		cfg.CodeCost = defaultCodeCost
	}
	if cfg.ImageCost == 0 {
		cfg.ImageCost = defaultImageCost
	}
	if cfg.DefaultCredits == 0 {
		cfg.DefaultCredits = defaultCredits
	}
	return &Engine{store: store, locker: locker, invoker: invoker, cfg: cfg}
}

// Generate runs one turn. The workspace lock is held from state read through
// commit, so turns on the same workspace serialize; fatal errors (model
// invocation, output validation) commit nothing and charge nothing.
func (e *Engine) Generate(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.WorkspaceID) == "" {
		return nil, fmt.Errorf("workspace id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}

	e.locker.Lock(req.WorkspaceID)
	defer e.locker.Unlock(req.WorkspaceID)

	rec, err := e.store.Get(ctx, req.WorkspaceID)
	if errors.Is(err, workspace.ErrNotFound) {
		if err := e.store.Create(ctx, req.WorkspaceID, e.cfg.DefaultCredits); err != nil {
			return nil, err
		}
		rec, err = e.store.Get(ctx, req.WorkspaceID)
	}
	if err != nil {
		return nil, err
	}

	in := intent.Classify(req.Message)
	mode := conv.Resolve(in, rec.State)

	log.Debug().
		Str("workspace", req.WorkspaceID).
		Str("intent", string(in)).
		Str("mode", string(mode.Type)).
		Bool("can_generate", mode.CanGenerateCode).
		Msg("turn classified")

	resp := &Response{
		Intent:            in,
		Mode:              mode,
		ShouldModifyFiles: intent.ShouldModifyFiles(in) && mode.CanGenerateCode,
		State:             rec.State,
		Files:             rec.Files,
		CostClass:         CostNone,
	}

	switch {
	case in == intent.Greeting:
		resp.Reply = conv.CannedReply(in)

	case intent.ShouldModifyFiles(in):
		if err := gate(mode); err != nil {
			// Benign refusal, not a system error. The model is never invoked.
			log.Debug().Str("workspace", req.WorkspaceID).Msg("generation refused, plan not approved")
			resp.Reply = conv.ApprovalRequiredReply
			break
		}
		if err := e.buildTurn(ctx, req, rec, resp); err != nil {
			return nil, err
		}

	default:
		if err := e.chatTurn(ctx, req, rec, resp); err != nil {
			return nil, err
		}
	}

	turn := workspace.TurnRecord{
		ID:          uuid.NewString(),
		WorkspaceID: req.WorkspaceID,
		Message:     req.Message,
		Intent:      string(in),
		Mode:        string(mode.Type),
		Provider:    resp.Provider,
		FailedOver:  resp.FailedOver,
		IsPlan:      resp.State.PlanStatus == workspace.PlanProposed && rec.State.PlanStatus != workspace.PlanProposed,
		FileCount:   len(resp.Actions),
		Cost:        resp.Cost,
		Reply:       resp.Reply,
	}

	var files []workspace.FileRecord
	if len(resp.Actions) > 0 {
		files = resp.Files
	}
	if err := e.store.CommitTurn(ctx, resp.State, files, turn); err != nil {
		return nil, err
	}
	return resp, nil
}

func gate(mode conv.Mode) error {
	if mode.CanGenerateCode {
		return nil
	}
	return ErrGenerationNotPermitted
}

// chatTurn handles discussion and planning intents: the model answers in
// prose, and a planning response that reads like a plan is proposed on the
// workspace.
func (e *Engine) chatTurn(ctx context.Context, req Request, rec *workspace.Record, resp *Response) error {
	invResp, err := e.invoker.Invoke(ctx, provider.Request{
		Instructions: conv.SystemPrompt(resp.Mode, fileContext(rec.Files)),
		Input:        req.Message,
	})
	if err != nil {
		return err
	}
	resp.Provider = invResp.Provider
	resp.FailedOver = invResp.FailedOver

	result := normalize.Normalize(invResp.Text)
	if result.Conversation == nil {
		// A file map in chat mode is unexpected but harmless; relay the raw
		// text and change nothing.
		resp.Reply = invResp.Text
		return nil
	}

	resp.Reply = result.Conversation.Message
	if resp.Mode.Type == conv.ModePlanning && result.Conversation.IsPlan {
		if plan, ok := conv.ExtractPlan(result.Conversation.Message); ok {
			resp.State.Propose(plan)
			log.Info().
				Str("workspace", req.WorkspaceID).
				Str("summary", plan.Summary).
				Int("steps", len(plan.Steps)).
				Msg("plan proposed")
		}
	}
	return nil
}

// buildTurn handles gated code-request and approval intents: an approval
// promotes the proposed plan first, then the model is asked for a file map,
// which is parsed into actions and merged into the workspace files.
func (e *Engine) buildTurn(ctx context.Context, req Request, rec *workspace.Record, resp *Response) error {
	if resp.Intent == intent.Approval && !resp.State.Approved() {
		if err := resp.State.Approve(); err != nil {
			return err
		}
		log.Info().Str("workspace", req.WorkspaceID).Msg("plan approved")
	}

	input := req.Message
	if plan := resp.State.CurrentPlan; plan != nil {
		input = planPreamble(*plan) + input
	}

	invResp, err := e.invoker.Invoke(ctx, provider.Request{
		Instructions: conv.SystemPrompt(resp.Mode, fileContext(rec.Files)),
		Input:        input,
	})
	if err != nil {
		return err
	}
	resp.Provider = invResp.Provider
	resp.FailedOver = invResp.FailedOver

	fm, err := normalize.RequireFileMap(invResp.Text)
	if err != nil {
		log.Error().Err(err).
			Str("workspace", req.WorkspaceID).
			Str("snippet", logging.Snippet(invResp.Text, 240)).
			Msg("model output did not normalize to a file map")
		return err
	}

	resp.Actions, resp.Events = action.Parse(fm)
	resp.Files = mergeFiles(rec.Files, fm)
	resp.CostClass = costClass(e.cfg.Model)
	resp.Cost = e.costFor(resp.CostClass)
	resp.Reply = fmt.Sprintf("Generated %d files.", fm.Len())
	return nil
}

func (e *Engine) costFor(class CostClass) int {
	switch class {
	case CostCode:
		return e.cfg.CodeCost
	case CostImage:
		return e.cfg.ImageCost
	default:
		return 0
	}
}

func costClass(model string) CostClass {
	m := strings.ToLower(model)
	if strings.Contains(m, "image") || strings.Contains(m, "dall-e") {
		return CostImage
	}
	return CostCode
}

// mergeFiles applies a generated file map onto the existing tree: existing
// paths are updated in place, new paths are appended in generation order.
func mergeFiles(existing []workspace.FileRecord, fm *normalize.FileMap) []workspace.FileRecord {
	merged := make([]workspace.FileRecord, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, f := range merged {
		index[f.Path] = i
	}

	for _, entry := range fm.Entries() {
		if i, ok := index[entry.Path]; ok {
			merged[i].Content = entry.Content
			continue
		}
		index[entry.Path] = len(merged)
		merged = append(merged, workspace.FileRecord{Path: entry.Path, Content: entry.Content})
	}
	return merged
}

func planPreamble(plan workspace.Plan) string {
	var b strings.Builder
	b.WriteString("Approved plan: ")
	b.WriteString(plan.Summary)
	b.WriteString("\n")
	for i, step := range plan.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\nUser message: ")
	return b.String()
}

func fileContext(files []workspace.FileRecord) string {
	if len(files) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Current project files:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", f.Path, f.Content)
	}
	return b.String()
}
