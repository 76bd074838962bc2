package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/action"
	"github.com/atelierhq/atelier/internal/conv"
	internaldb "github.com/atelierhq/atelier/internal/db"
	"github.com/atelierhq/atelier/internal/intent"
	"github.com/atelierhq/atelier/internal/normalize"
	"github.com/atelierhq/atelier/internal/provider"
	"github.com/atelierhq/atelier/internal/workspace"
)

func newTestStore(t *testing.T) *workspace.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "atelier.db")
	database, err := internaldb.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return workspace.NewStore(database)
}

func newTestEngine(t *testing.T, invoker provider.Invoker) (*Engine, *workspace.Store) {
	t.Helper()
	store := newTestStore(t)
	eng := New(store, workspace.NewLocker(), invoker, Config{Model: "gpt-5"})
	return eng, store
}

func seedProposedPlan(t *testing.T, store *workspace.Store, id string) {
	t.Helper()
	ctx := context.Background()
	if err := store.Create(ctx, id, 100); err != nil {
		t.Fatalf("Create: %v", err)
	}
	state := workspace.New(id)
	state.Propose(workspace.Plan{Summary: "todo app", Steps: []string{"scaffold", "wire state"}})
	if err := store.CommitTurn(ctx, state, nil, workspace.TurnRecord{ID: "seed", WorkspaceID: id}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
}

func TestGenerateGreetingShortCircuits(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScripted("scripted")
	eng, store := newTestEngine(t, scripted)

	resp, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "hey"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Intent != intent.Greeting {
		t.Fatalf("intent: %q", resp.Intent)
	}
	if resp.Mode.Type != conv.ModeDiscussion || resp.Mode.CanGenerateCode {
		t.Fatalf("mode: %+v", resp.Mode)
	}
	if resp.Reply == "" {
		t.Fatal("greeting produced no reply")
	}
	if len(scripted.Calls()) != 0 {
		t.Fatal("greeting invoked the model")
	}
	if resp.Cost != 0 || resp.CostClass != CostNone {
		t.Fatalf("greeting charged: %+v", resp)
	}
	if got, err := store.Credits(context.Background(), "ws-1"); err != nil || got != 100 {
		t.Fatalf("credits: %d err %v", got, err)
	}
}

func TestGenerateCodeRequestWithoutApprovalRefuses(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScripted("scripted")
	eng, _ := newTestEngine(t, scripted)

	resp, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "implement the dashboard"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Intent != intent.CodeRequest {
		t.Fatalf("intent: %q", resp.Intent)
	}
	if len(resp.Actions) != 0 {
		t.Fatalf("refused turn produced actions: %v", resp.Actions)
	}
	if len(scripted.Calls()) != 0 {
		t.Fatal("refused turn invoked the model")
	}
	if resp.Reply != conv.ApprovalRequiredReply {
		t.Fatalf("reply: %q", resp.Reply)
	}
	if resp.ShouldModifyFiles {
		t.Fatal("refused turn reported ShouldModifyFiles")
	}
}

func TestGenerateApprovalBuildsFromProposedPlan(t *testing.T) {
	t.Parallel()

	fileMap := `{"App.tsx":"export default function App() {}","package.json":"{\"dependencies\":{\"react\":\"^18\"}}"}`
	scripted := provider.NewScripted("scripted", provider.ScriptedReply{Text: fileMap})
	eng, store := newTestEngine(t, scripted)
	seedProposedPlan(t, store, "ws-1")

	resp, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "yes, proceed"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Intent != intent.Approval {
		t.Fatalf("intent: %q", resp.Intent)
	}
	if !resp.ShouldModifyFiles {
		t.Fatal("approval with plan must modify files")
	}
	if resp.State.PlanStatus != workspace.PlanApproved {
		t.Fatalf("plan status: %q", resp.State.PlanStatus)
	}

	if len(resp.Actions) < 3 {
		t.Fatalf("expected writes plus install, got %d actions", len(resp.Actions))
	}
	if resp.Actions[0].Type != action.TypeWriteFile || resp.Actions[0].Path != "App.tsx" {
		t.Fatalf("action 0: %+v", resp.Actions[0])
	}
	if resp.Actions[1].Type != action.TypeWriteFile || resp.Actions[1].Path != "package.json" {
		t.Fatalf("action 1: %+v", resp.Actions[1])
	}
	install := resp.Actions[2]
	if install.Type != action.TypeInstall || len(install.Packages) != 1 || install.Packages[0] != "react" {
		t.Fatalf("install action: %+v", install)
	}

	if resp.CostClass != CostCode || resp.Cost != 5 {
		t.Fatalf("cost: %s %d", resp.CostClass, resp.Cost)
	}

	rec, err := store.Get(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Credits != 95 {
		t.Fatalf("credits after build: %d", rec.Credits)
	}
	if rec.State.PlanStatus != workspace.PlanApproved {
		t.Fatalf("persisted plan status: %q", rec.State.PlanStatus)
	}
	if len(rec.Files) != 2 || rec.Files[0].Path != "App.tsx" {
		t.Fatalf("persisted files: %v", rec.Files)
	}
}

func TestGenerateInvocationFailureCommitsNothing(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScripted("scripted",
		provider.ScriptedReply{Err: errors.New("provider down")},
	)
	chain := provider.NewChain(provider.ChainConfig{
		RetryMaxAttempts:       1,
		RetryInitialDelay:      time.Millisecond,
		RetryBackoffMultiplier: 1.0,
	}, scripted)
	eng, store := newTestEngine(t, chain)
	seedProposedPlan(t, store, "ws-1")

	_, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "yes, proceed"})
	var invErr *provider.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected *InvocationError, got %v", err)
	}

	rec, getErr := store.Get(context.Background(), "ws-1")
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if rec.Credits != 100 {
		t.Fatalf("failed turn charged credits: %d", rec.Credits)
	}
	if rec.State.PlanStatus != workspace.PlanProposed {
		t.Fatalf("failed turn mutated state: %q", rec.State.PlanStatus)
	}
}

func TestGenerateUnrepairableOutputCommitsNothing(t *testing.T) {
	t.Parallel()

	scripted := provider.NewScripted("scripted", provider.ScriptedReply{Text: "$$$ not even close"})
	eng, store := newTestEngine(t, scripted)
	seedProposedPlan(t, store, "ws-1")

	_, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "yes, proceed"})
	var valErr *normalize.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}

	rec, getErr := store.Get(context.Background(), "ws-1")
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if rec.Credits != 100 || len(rec.Files) != 0 {
		t.Fatalf("failed turn left side effects: credits %d files %v", rec.Credits, rec.Files)
	}
}

func TestGeneratePlanningTurnProposesPlan(t *testing.T) {
	t.Parallel()

	planText := "## Stage 1: Understanding the Task\n1. Review requirements\n2. Sketch the data model\n"
	scripted := provider.NewScripted("scripted", provider.ScriptedReply{Text: planText})
	eng, store := newTestEngine(t, scripted)

	resp, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "i want to build a todo app"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Intent != intent.PlanRequest {
		t.Fatalf("intent: %q", resp.Intent)
	}
	if resp.Mode.Type != conv.ModePlanning {
		t.Fatalf("mode: %+v", resp.Mode)
	}
	if resp.State.PlanStatus != workspace.PlanProposed || resp.State.CurrentPlan == nil {
		t.Fatalf("plan not proposed: %+v", resp.State)
	}

	rec, err := store.Get(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.State.PlanStatus != workspace.PlanProposed {
		t.Fatalf("persisted plan status: %q", rec.State.PlanStatus)
	}
	turns, err := store.Turns(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 1 || !turns[0].IsPlan {
		t.Fatalf("turn history: %+v", turns)
	}
}

func TestGenerateSurfacesFailover(t *testing.T) {
	t.Parallel()

	fileMap := `{"index.html":"<html></html>"}`
	primary := provider.NewScripted("primary", provider.ScriptedReply{Err: errors.New("down")})
	backup := provider.NewScripted("backup", provider.ScriptedReply{Text: fileMap})
	chain := provider.NewChain(provider.ChainConfig{
		RetryMaxAttempts:       1,
		RetryInitialDelay:      time.Millisecond,
		RetryBackoffMultiplier: 1.0,
	}, primary, backup)
	eng, store := newTestEngine(t, chain)
	seedProposedPlan(t, store, "ws-1")

	resp, err := eng.Generate(context.Background(), Request{WorkspaceID: "ws-1", Message: "yes, proceed"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !resp.FailedOver {
		t.Fatal("failover not surfaced")
	}
	if resp.Provider != "backup" {
		t.Fatalf("provider: %q", resp.Provider)
	}

	turns, err := store.Turns(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	last := turns[len(turns)-1]
	if !last.FailedOver {
		t.Fatal("failover not recorded on turn row")
	}
}
