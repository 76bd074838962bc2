package workspace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a workspace id has no row.
var ErrNotFound = errors.New("workspace not found")

// ErrInsufficientCredits is returned when a debit would take the balance
// below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// FileRecord is one persisted workspace file. Files are stored as an ordered
// array so the on-disk layout follows generation order.
type FileRecord struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Record is a workspace row: conversation state plus files and balance.
type Record struct {
	State     State
	Credits   int
	Files     []FileRecord
	CreatedAt string
	UpdatedAt string
}

// TurnRecord is one committed conversation turn.
type TurnRecord struct {
	ID          string
	WorkspaceID string
	Message     string
	Intent      string
	Mode        string
	Provider    string
	FailedOver  bool
	IsPlan      bool
	FileCount   int
	Cost        int
	Reply       string
}

// Store persists workspaces and turns.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new workspace with a starting credit balance.
func (s *Store) Create(ctx context.Context, id string, credits int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	state := New(id)
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO workspaces(workspace_id, created_at, updated_at, credits, plan_status, state_json, files_json)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		id, now, now, credits, string(PlanNone), string(stateJSON), "[]"); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// Get loads a workspace row.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT created_at, updated_at, credits, state_json, files_json
		FROM workspaces WHERE workspace_id = ?`, id)

	var rec Record
	var stateJSON, filesJSON string
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt, &rec.Credits, &stateJSON, &filesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("workspace %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return nil, fmt.Errorf("decode workspace state: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
		return nil, fmt.Errorf("decode workspace files: %w", err)
	}
	rec.State.ID = id
	return &rec, nil
}

// CommitTurn persists the outcome of one completed turn in a single
// transaction: updated state, updated files, the credit debit, and the turn
// row. A failed turn commits nothing, so a partial commit is never visible.
func (s *Store) CommitTurn(ctx context.Context, state State, files []FileRecord, turn TurnRecord) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit turn: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if turn.Cost > 0 {
		var balance int
		if err := tx.QueryRowContext(ctx, `SELECT credits FROM workspaces WHERE workspace_id = ?`, state.ID).Scan(&balance); err != nil {
			_ = tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("workspace %q: %w", state.ID, ErrNotFound)
			}
			return fmt.Errorf("read credits: %w", err)
		}
		if balance < turn.Cost {
			_ = tx.Rollback()
			return fmt.Errorf("workspace %q has %d credits, turn costs %d: %w",
				state.ID, balance, turn.Cost, ErrInsufficientCredits)
		}
	}

	set := `UPDATE workspaces SET updated_at=?, credits=credits-?, plan_status=?, state_json=?`
	args := []any{now, turn.Cost, string(state.PlanStatus), string(stateJSON)}
	if files != nil {
		filesJSON, err := json.Marshal(files)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal files: %w", err)
		}
		set += `, files_json=?`
		args = append(args, string(filesJSON))
	}
	set += ` WHERE workspace_id=?`
	args = append(args, state.ID)

	res, err := tx.ExecContext(ctx, set, args...)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("workspace %q: %w", state.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO turns(turn_id, workspace_id, created_at, message, intent, mode, provider, failed_over, is_plan, file_count, cost, reply)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.WorkspaceID, now, turn.Message, turn.Intent, turn.Mode, turn.Provider,
		boolToInt(turn.FailedOver), boolToInt(turn.IsPlan), turn.FileCount, turn.Cost, turn.Reply); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}
	return nil
}

// Turns returns a workspace's turn history, oldest first.
func (s *Store) Turns(ctx context.Context, workspaceID string) ([]TurnRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT turn_id, workspace_id, message, intent, mode, provider, failed_over, is_plan, file_count, cost, reply
		FROM turns WHERE workspace_id = ? ORDER BY created_at, turn_id`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []TurnRecord
	for rows.Next() {
		var t TurnRecord
		var failedOver, isPlan int
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Message, &t.Intent, &t.Mode, &t.Provider,
			&failedOver, &isPlan, &t.FileCount, &t.Cost, &t.Reply); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.FailedOver = failedOver != 0
		t.IsPlan = isPlan != 0
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// Credits returns the current balance.
func (s *Store) Credits(ctx context.Context, workspaceID string) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `SELECT credits FROM workspaces WHERE workspace_id = ?`, workspaceID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("workspace %q: %w", workspaceID, ErrNotFound)
		}
		return 0, fmt.Errorf("read credits: %w", err)
	}
	return balance, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
