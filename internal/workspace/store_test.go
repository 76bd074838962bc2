package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	internaldb "github.com/atelierhq/atelier/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "atelier.db")
	database, err := internaldb.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	if err := store.Create(ctx, "ws-1", 100); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := store.Get(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Credits != 100 {
		t.Fatalf("credits: got %d, want 100", rec.Credits)
	}
	if rec.State.PlanStatus != PlanNone || rec.State.CurrentPlan != nil {
		t.Fatalf("fresh workspace state: %+v", rec.State)
	}
	if len(rec.Files) != 0 {
		t.Fatalf("fresh workspace has files: %v", rec.Files)
	}
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreCommitTurnPersistsEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	if err := store.Create(ctx, "ws-1", 100); err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := New("ws-1")
	state.Propose(Plan{Summary: "Build it", Steps: []string{"scaffold", "wire"}})
	if err := state.Approve(); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	files := []FileRecord{
		{Path: "src/app.ts", Content: "export {}"},
		{Path: "package.json", Content: "{}"},
	}
	turn := TurnRecord{
		ID:          "turn-1",
		WorkspaceID: "ws-1",
		Message:     "yes, build it",
		Intent:      "APPROVAL",
		Mode:        "building",
		Provider:    "openai",
		FileCount:   2,
		Cost:        5,
		Reply:       "done",
	}
	if err := store.CommitTurn(ctx, state, files, turn); err != nil {
		t.Fatalf("CommitTurn: %v", err)
	}

	rec, err := store.Get(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Credits != 95 {
		t.Fatalf("credits after debit: got %d, want 95", rec.Credits)
	}
	if rec.State.PlanStatus != PlanApproved {
		t.Fatalf("plan status: got %q", rec.State.PlanStatus)
	}
	if len(rec.Files) != 2 || rec.Files[0].Path != "src/app.ts" {
		t.Fatalf("files not persisted in order: %v", rec.Files)
	}

	turns, err := store.Turns(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Cost != 5 || turns[0].Intent != "APPROVAL" {
		t.Fatalf("turn history: %+v", turns)
	}
}

func TestStoreCommitTurnInsufficientCredits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	if err := store.Create(ctx, "ws-1", 3); err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := New("ws-1")
	err := store.CommitTurn(ctx, state, nil, TurnRecord{
		ID: "turn-1", WorkspaceID: "ws-1", Cost: 5,
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	// Nothing from the failed turn may be visible.
	if got, err := store.Credits(ctx, "ws-1"); err != nil || got != 3 {
		t.Fatalf("credits after failed commit: got %d err %v", got, err)
	}
	turns, err := store.Turns(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("failed turn was recorded: %+v", turns)
	}
}

func TestStoreCommitTurnNilFilesKeepsExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	if err := store.Create(ctx, "ws-1", 100); err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := New("ws-1")
	files := []FileRecord{{Path: "index.html", Content: "<html></html>"}}
	if err := store.CommitTurn(ctx, state, files, TurnRecord{ID: "t1", WorkspaceID: "ws-1"}); err != nil {
		t.Fatalf("CommitTurn: %v", err)
	}

	// A chat-only turn leaves the file tree alone.
	if err := store.CommitTurn(ctx, state, nil, TurnRecord{ID: "t2", WorkspaceID: "ws-1"}); err != nil {
		t.Fatalf("CommitTurn: %v", err)
	}

	rec, err := store.Get(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec.Files) != 1 || rec.Files[0].Path != "index.html" {
		t.Fatalf("files changed by nil-files commit: %v", rec.Files)
	}
}
